package ethercat

import (
	"context"
	"testing"

	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/internal/devices"
	"github.com/runtimevic/fieldbusd/internal/machine"
	"github.com/runtimevic/fieldbusd/internal/machines/testel2008"
)

// fakeTransport is an in-memory Transport for setup tests: no real frames,
// just a fixed slave list and NV-memory table keyed by (addr, word).
type fakeTransport struct {
	slaves  []SlaveInfo
	nv      map[[2]uint16]uint16
	inputs  [][]byte
	outputs [][]byte
}

func (f *fakeTransport) EnumerateSlaves(ctx context.Context) ([]SlaveInfo, error) {
	f.inputs = make([][]byte, len(f.slaves))
	f.outputs = make([][]byte, len(f.slaves))
	return f.slaves, nil
}

func (f *fakeTransport) SlaveCount() int { return len(f.slaves) }

func (f *fakeTransport) ReadNV(ctx context.Context, addr SlaveAddr, word uint16) (uint16, error) {
	return f.nv[[2]uint16{uint16(addr), word}], nil
}

func (f *fakeTransport) WriteNV(ctx context.Context, addr SlaveAddr, word uint16, value uint16) error {
	f.nv[[2]uint16{uint16(addr), word}] = value
	return nil
}

func (f *fakeTransport) ToPreOp(ctx context.Context) error  { return nil }
func (f *fakeTransport) ToSafeOp(ctx context.Context) error { return nil }
func (f *fakeTransport) ToOp(ctx context.Context) error     { return nil }
func (f *fakeTransport) TxRx(ctx context.Context) error     { return nil }

func (f *fakeTransport) InputsRaw(slave int) []byte      { return f.inputs[slave] }
func (f *fakeTransport) OutputsRawMut(slave int) []byte  { return f.outputs[slave] }

func newFakeTransportWithOneEL2008(t *testing.T) *fakeTransport {
	t.Helper()
	const addr SlaveAddr = 1001
	ft := &fakeTransport{
		slaves: []SlaveInfo{{
			Addr:      addr,
			VendorID:  devices.EL2008IdentityA.VendorID,
			ProductID: devices.EL2008IdentityA.ProductID,
			Revision:  devices.EL2008IdentityA.Revision,
		}},
		nv: map[[2]uint16]uint16{
			{uint16(addr), 0x0028}: testel2008.VendorQitech,
			{uint16(addr), 0x0029}: testel2008.MachineTestEL2008,
			{uint16(addr), 0x002a}: 42,
			{uint16(addr), 0x002b}: 1,
		},
	}
	return ft
}

func TestRunBuildsMachineFromIdentifiedGroup(t *testing.T) {
	ft := newFakeTransportWithOneEL2008(t)
	mreg := machine.NewRegistry()
	mreg.Register(testel2008.Identification, testel2008.New)

	setup, machines, err := Run(context.Background(), ft, mreg, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(setup.Devices) != 1 {
		t.Fatalf("len(setup.Devices) = %d, want 1", len(setup.Devices))
	}
	if len(machines) != 1 {
		t.Fatalf("len(machines) = %d, want 1", len(machines))
	}
	if !setup.Devices[0].Driver.IsUsed() {
		t.Fatalf("the EL2008 claimed by the machine should be marked used")
	}
}

func TestRunSurfacesNoDriverForUnknownIdentity(t *testing.T) {
	ft := &fakeTransport{
		slaves: []SlaveInfo{{Addr: 1, VendorID: 0xdead, ProductID: 0xbeef, Revision: 1}},
		nv:     map[[2]uint16]uint16{},
	}
	mreg := machine.NewRegistry()
	_, _, err := Run(context.Background(), ft, mreg, nil)
	if errcode.Of(err) != errcode.NoDriver {
		t.Fatalf("Run() code = %v, want NoDriver", errcode.Of(err))
	}
}
