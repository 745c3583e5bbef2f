package ethercat

import (
	"context"
	"fmt"

	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/internal/devices"
	"github.com/runtimevic/fieldbusd/internal/devreg"
	"github.com/runtimevic/fieldbusd/internal/identify"
	"github.com/runtimevic/fieldbusd/internal/machine"
)

// DeviceTableEntry is one slave's full identity: its bus address, its
// driver instance, and (once read) its machine tag.
type DeviceTableEntry struct {
	SubdeviceIndex int
	Addr           SlaveAddr
	Identity       devices.IdentityTuple
	Driver         devices.Device
	Tag            identify.DeviceMachineIdentification
}

// Setup is everything the real-time loop needs once the bus has reached
// Op: the device table and the transport it was built on.
type Setup struct {
	Devices   []DeviceTableEntry
	Transport Transport
}

// nvMemoryAdapter lets identify.Read/Write operate on one slave through a
// Transport, without identify importing ethercat.
type nvMemoryAdapter struct {
	t    Transport
	addr SlaveAddr
}

func (a nvMemoryAdapter) ReadWord(ctx context.Context, word uint16) (uint16, error) {
	return a.t.ReadNV(ctx, a.addr, word)
}

func (a nvMemoryAdapter) WriteWord(ctx context.Context, word uint16, value uint16) error {
	return a.t.WriteNV(ctx, a.addr, word, value)
}

// Run brings the bus from discovery to Op: enumerate, Pre-Op, instantiate
// drivers, identify, enumerate coupler modules, Safe-Op, Op, and build
// machines from the identified groups. It returns the device table and
// the constructed machines.
func Run(ctx context.Context, t Transport, mreg *machine.Registry, events chan<- machine.Event) (*Setup, []machine.Machine, error) {
	slaves, err := t.EnumerateSlaves(ctx)
	if err != nil {
		return nil, nil, errcode.Wrap(errcode.StateTransition, "enumerate slaves", err)
	}

	if err := t.ToPreOp(ctx); err != nil {
		return nil, nil, errcode.Wrap(errcode.StateTransition, "transition to pre-op", err)
	}

	table := make([]DeviceTableEntry, 0, len(slaves))
	for i, s := range slaves {
		identity := devices.IdentityTuple{VendorID: s.VendorID, ProductID: s.ProductID, Revision: s.Revision}
		driver, err := devreg.MakeDriver(identity)
		if err != nil {
			return nil, nil, errcode.Wrap(errcode.NoDriver, fmt.Sprintf("slave %d", s.Addr), err)
		}
		table = append(table, DeviceTableEntry{SubdeviceIndex: i, Addr: s.Addr, Identity: identity, Driver: driver})
	}

	for i := range table {
		addrs := identify.AddressesFor(identityKey(table[i].Identity))
		tag, err := identify.Read(ctx, nvMemoryAdapter{t: t, addr: table[i].Addr}, addrs)
		if err != nil {
			return nil, nil, err
		}
		table[i].Tag = tag
	}

	for i := range table {
		if host, ok := table[i].Driver.(devices.ModuleHost); ok {
			if _, err := host.EnumerateModules(); err != nil {
				return nil, nil, errcode.Wrap(errcode.UnknownAddressMap, "enumerate coupler modules", err)
			}
		}
	}

	if err := t.ToSafeOp(ctx); err != nil {
		return nil, nil, errcode.Wrap(errcode.StateTransition, "transition to safe-op", err)
	}
	if err := t.ToOp(ctx); err != nil {
		return nil, nil, errcode.Wrap(errcode.StateTransition, "transition to op", err)
	}

	idents := make([]identify.DeviceIdentification, len(table))
	for i, e := range table {
		idents[i] = identify.DeviceIdentification{SubdeviceIndex: e.SubdeviceIndex, Tag: e.Tag}
	}
	groups, _, err := identify.GroupByMachine(idents)
	if err != nil {
		return nil, nil, err
	}

	hw := &deviceTableHardware{entries: table}
	machines := make([]machine.Machine, 0, len(groups))
	for _, g := range groups {
		members := make([]machine.DeviceGroupMember, len(g.Members))
		for i, m := range g.Members {
			members[i] = machine.DeviceGroupMember{
				Role:        m.Tag.Role,
				DeviceIndex: m.SubdeviceIndex,
				Identity:    table[m.SubdeviceIndex].Identity,
			}
		}
		mach, err := mreg.New(g.Unique, machine.NewParams{Group: members, Hardware: hw, Unique: g.Unique, Events: events})
		if err != nil {
			return nil, nil, err
		}
		machines = append(machines, mach)
	}

	return &Setup{Devices: table, Transport: t}, machines, nil
}

func identityKey(id devices.IdentityTuple) string {
	return fmt.Sprintf("%d:%d:%d", id.VendorID, id.ProductID, id.Revision)
}

// WriteIdentification rewrites one subdevice's machine tag in NV-memory
// and updates the in-memory device table to match. It does not re-run
// machine construction: a changed tag only takes effect for machines
// built on the next full Run, typically after an operator-triggered
// restart.
func (s *Setup) WriteIdentification(ctx context.Context, subdeviceIndex int, tag identify.DeviceMachineIdentification) error {
	if subdeviceIndex < 0 || subdeviceIndex >= len(s.Devices) {
		return errcode.Wrap(errcode.UnknownAddressMap, "write machine device identification", nil)
	}
	entry := &s.Devices[subdeviceIndex]
	addrs := identify.AddressesFor(identityKey(entry.Identity))
	if err := identify.Write(ctx, nvMemoryAdapter{t: s.Transport, addr: entry.Addr}, addrs, tag); err != nil {
		return err
	}
	entry.Tag = tag
	return nil
}

type deviceTableHardware struct {
	entries []DeviceTableEntry
}

func (h *deviceTableHardware) Device(index int) devices.Device {
	return h.entries[index].Driver
}
