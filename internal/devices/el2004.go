package devices

import "github.com/runtimevic/fieldbusd/x/bitbuf"

// EL2004Port names one of the 4 digital output channels on an EL2004.
type EL2004Port int

const (
	EL2004DO1 EL2004Port = iota
	EL2004DO2
	EL2004DO3
	EL2004DO4
)

// EL2004 is a 4-channel digital output terminal, sharing EL2008's per-port
// shape at a narrower width.
type EL2004 struct {
	used
	channels [4]bool
}

func NewEL2004() *EL2004 { return &EL2004{} }

func (d *EL2004) InputLen() int  { return 0 }
func (d *EL2004) OutputLen() int { return 4 }

func (d *EL2004) Input(v bitbuf.View) error { return nil }

func (d *EL2004) Output(mv bitbuf.MutView) error {
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

func (d *EL2004) InputPostProcess() error { return nil }
func (d *EL2004) OutputPreProcess() error { return nil }

func (d *EL2004) SetOutput(port EL2004Port, value bool) { d.channels[port] = value }
func (d *EL2004) GetOutput(port EL2004Port) bool        { return d.channels[port] }

const el2004VendorID uint32 = 0x2

var (
	EL2004IdentityA = IdentityTuple{VendorID: el2004VendorID, ProductID: 0x07d43052, Revision: 0x00110000}
	EL2004IdentityB = IdentityTuple{VendorID: el2004VendorID, ProductID: 0x07d43052, Revision: 0x00120000}
)
