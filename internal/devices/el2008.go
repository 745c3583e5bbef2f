package devices

import "github.com/runtimevic/fieldbusd/x/bitbuf"

// EL2008Port names one of the 8 digital output channels on an EL2008.
type EL2008Port int

const (
	EL2008DO1 EL2008Port = iota
	EL2008DO2
	EL2008DO3
	EL2008DO4
	EL2008DO5
	EL2008DO6
	EL2008DO7
	EL2008DO8
)

// EL2008 is an 8-channel digital output terminal, 24V DC, 0.5A per channel.
// Its RxPDO is 8 boolean objects at indices 0x1600..0x1607, one bit each.
type EL2008 struct {
	used
	channels [8]bool
}

func NewEL2008() *EL2008 { return &EL2008{} }

func (d *EL2008) InputLen() int  { return 0 }
func (d *EL2008) OutputLen() int { return 8 }

func (d *EL2008) Input(v bitbuf.View) error { return nil }

func (d *EL2008) Output(mv bitbuf.MutView) error {
	if err := checkLen(mv.Len(), d.OutputLen()); err != nil {
		return err
	}
	for i, on := range d.channels {
		if err := mv.SetBit(i, on); err != nil {
			return err
		}
	}
	return nil
}

func (d *EL2008) InputPostProcess() error  { return nil }
func (d *EL2008) OutputPreProcess() error  { return nil }

// SetOutput sets a single channel's commanded state.
func (d *EL2008) SetOutput(port EL2008Port, value bool) {
	d.channels[port] = value
}

// GetOutput reads back a single channel's commanded state.
func (d *EL2008) GetOutput(port EL2008Port) bool {
	return d.channels[port]
}

const el2008VendorID uint32 = 0x2

// Identity tuples for the three known EL2008 hardware/firmware revisions.
var (
	EL2008IdentityA = IdentityTuple{VendorID: el2008VendorID, ProductID: 0x07d83052, Revision: 0x00110000}
	EL2008IdentityB = IdentityTuple{VendorID: el2008VendorID, ProductID: 0x07d83052, Revision: 0x00120000}
	EL2008IdentityC = IdentityTuple{VendorID: el2008VendorID, ProductID: 0x07d83052, Revision: 0x00100000}
)
