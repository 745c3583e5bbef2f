package devices

import "github.com/runtimevic/fieldbusd/x/bitbuf"

// EL1008Port names one of the 8 digital input channels on an EL1008.
type EL1008Port int

const (
	EL1008DI1 EL1008Port = iota
	EL1008DI2
	EL1008DI3
	EL1008DI4
	EL1008DI5
	EL1008DI6
	EL1008DI7
	EL1008DI8
)

// EL1008 is an 8-channel digital input terminal, the TxPDO mirror of
// EL2008: one bit per channel, no output.
type EL1008 struct {
	used
	channels [8]bool
}

func NewEL1008() *EL1008 { return &EL1008{} }

func (d *EL1008) InputLen() int  { return 8 }
func (d *EL1008) OutputLen() int { return 0 }

func (d *EL1008) Input(v bitbuf.View) error {
	if err := checkLen(v.Len(), d.InputLen()); err != nil {
		return err
	}
	for i := range d.channels {
		bit, err := v.Bit(i)
		if err != nil {
			return err
		}
		d.channels[i] = bit
	}
	return nil
}

func (d *EL1008) Output(mv bitbuf.MutView) error { return nil }

func (d *EL1008) InputPostProcess() error { return nil }
func (d *EL1008) OutputPreProcess() error { return nil }

// GetInput reads a single channel's last-decoded state.
func (d *EL1008) GetInput(port EL1008Port) bool { return d.channels[port] }

const el1008VendorID uint32 = 0x2

var (
	EL1008IdentityA = IdentityTuple{VendorID: el1008VendorID, ProductID: 0x03f03052, Revision: 0x00110000}
)
