package devices

import "github.com/runtimevic/fieldbusd/x/bitbuf"

// EK1100 is an EtherCAT bus coupler. It carries no PDO bits of its own and
// hosts no addressable child modules; it exists purely to bridge the bus
// to the terminals physically attached after it.
type EK1100 struct {
	used
}

func NewEK1100() *EK1100 { return &EK1100{} }

func (d *EK1100) InputLen() int             { return 0 }
func (d *EK1100) OutputLen() int            { return 0 }
func (d *EK1100) Input(v bitbuf.View) error { return nil }
func (d *EK1100) Output(mv bitbuf.MutView) error { return nil }
func (d *EK1100) InputPostProcess() error   { return nil }
func (d *EK1100) OutputPreProcess() error   { return nil }

const ek1100VendorID uint32 = 0x2

var EK1100Identity = IdentityTuple{VendorID: ek1100VendorID, ProductID: 0x044c2c52, Revision: 0x00110000}

// WagoCoupler is a bus coupler that hosts addressable child modules behind
// a single EtherCAT station (e.g. the Wago 750-354). Unlike EK1100,
// modules attached behind it are not separate EtherCAT stations: they are
// enumerated and addressed by slot, and their process data is carried
// within the coupler's own input/output images at per-module offsets.
type WagoCoupler struct {
	used
	modules []Module
}

func NewWagoCoupler(modules []Module) *WagoCoupler {
	return &WagoCoupler{modules: modules}
}

func (d *WagoCoupler) InputLen() int  { return 0 }
func (d *WagoCoupler) OutputLen() int { return 0 }

func (d *WagoCoupler) Input(v bitbuf.View) error      { return nil }
func (d *WagoCoupler) Output(mv bitbuf.MutView) error { return nil }
func (d *WagoCoupler) InputPostProcess() error        { return nil }
func (d *WagoCoupler) OutputPreProcess() error        { return nil }

func (d *WagoCoupler) IsModule() bool { return true }

// EnumerateModules returns a copy of the fixed module list this coupler
// was constructed with; nothing is read from the bus.
func (d *WagoCoupler) EnumerateModules() ([]Module, error) {
	out := make([]Module, len(d.modules))
	copy(out, d.modules)
	return out, nil
}

const wago750354VendorID uint32 = 0x21

var Wago750354Identity = IdentityTuple{VendorID: wago750354VendorID, ProductID: 0x02640a06, Revision: 0x00000000}
