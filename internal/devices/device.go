// Package devices implements EtherCAT subdevice drivers: the PDO-level
// contract between raw process-data bytes and typed port accessors.
package devices

import (
	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/x/bitbuf"
)

// IdentityTuple is a subdevice's (vendor, product, revision) triple, read
// from its EtherCAT object dictionary at enumeration time.
type IdentityTuple struct {
	VendorID  uint32
	ProductID uint32
	Revision  uint32
}

// Device is the contract every subdevice driver implements. Input/Output
// operate on the slave's raw PDI bytes each real-time cycle; PostProcess
// hooks run once per cycle, after Input decode and before Output encode,
// for drivers that need to derive state (e.g. analog scaling) rather than
// simply mirror bits.
type Device interface {
	InputLen() int
	OutputLen() int

	// Input decodes this cycle's inbound process data. v is at least
	// InputLen() bits long (errcode.ShortBuffer otherwise) and may be
	// longer; devices with no input return immediately.
	Input(v bitbuf.View) error
	// Output encodes this cycle's outbound process data into mv, which is
	// at least OutputLen() bits long (errcode.ShortBuffer otherwise).
	Output(mv bitbuf.MutView) error

	InputPostProcess() error
	OutputPreProcess() error

	IsUsed() bool
	SetUsed(bool)

	// IsModule reports whether this device exposes child modules behind a
	// bus coupler (see Module / EnumerateModules).
	IsModule() bool
}

// ModuleHost is implemented by coupler devices (e.g. Wago 750-354) that
// host addressable child modules behind a single EtherCAT station. EK1100
// does not implement it.
type ModuleHost interface {
	EnumerateModules() ([]Module, error)
}

// Module describes one child module behind a bus coupler, addressed by
// slot position rather than by its own EtherCAT station address.
type Module struct {
	Slot         int
	BelongsToAddr uint16
	HasTx        bool
	HasRx        bool
	VendorID     uint32
	ProductID    uint32
	TxOffset     int
	RxOffset     int
}

func checkLen(got, want int) error {
	if got < want {
		return errcode.ShortBuffer
	}
	return nil
}

// used is embedded by every concrete driver for the shared is_used flag.
// The spec requires exactly one false->true transition per device per bus
// lifetime; devices never reset it back to false themselves.
type used struct{ v bool }

func (u *used) IsUsed() bool    { return u.v }
func (u *used) SetUsed(b bool)  { u.v = b }
func (u *used) IsModule() bool  { return false }
