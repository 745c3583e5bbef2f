// Package ethercat implements the EtherCAT bus primitive (slave
// enumeration, NV-memory access, process-data exchange, state transitions)
// and the setup sequence that brings a bus from discovery to operational.
package ethercat

import "context"

// SlaveState is one of the EtherCAT application layer states relevant to
// setup and recovery.
type SlaveState int

const (
	StateInit SlaveState = iota
	StatePreOp
	StateSafeOp
	StateOp
)

// SlaveAddr is a subdevice's fixed station address on the bus.
type SlaveAddr uint16

// SlaveInfo is what enumeration reports about one subdevice before any
// identification has happened.
type SlaveInfo struct {
	Addr      SlaveAddr
	VendorID  uint32
	ProductID uint32
	Revision  uint32
}

// Transport is the bus primitive every setup and real-time operation is
// built on. A production transport exchanges real EtherCAT frames; tests
// substitute an in-memory fake.
type Transport interface {
	EnumerateSlaves(ctx context.Context) ([]SlaveInfo, error)

	ReadNV(ctx context.Context, addr SlaveAddr, word uint16) (uint16, error)
	WriteNV(ctx context.Context, addr SlaveAddr, word uint16, value uint16) error

	// ToPreOp, ToSafeOp, ToOp drive the whole bus through the named state
	// transition. Run wraps a failure as errcode.StateTransition.
	ToPreOp(ctx context.Context) error
	ToSafeOp(ctx context.Context) error
	ToOp(ctx context.Context) error

	// TxRx exchanges one process-data frame. Called once per real-time
	// cycle; the cycle counts a failure toward the watchdog rather than
	// aborting, and wraps it as errcode.TxRx when the watchdog trips.
	TxRx(ctx context.Context) error

	// InputsRaw/OutputsRawMut expose the current cycle's process-data
	// image for one slave, addressed by its enumeration order (not its
	// fixed station address).
	InputsRaw(slave int) []byte
	OutputsRawMut(slave int) []byte

	SlaveCount() int
}
