// Package identify implements the NV-memory identification pipeline: it
// reads each subdevice's machine tag out of EEPROM, groups subdevices into
// machines by that tag, and validates the group before a Machine is built
// from it.
package identify

import (
	"context"

	"github.com/runtimevic/fieldbusd/errcode"
)

// Addresses names the four NV-memory word offsets a machine identity is
// stored at. The default matches every known terminal; the table exists
// so a future identity tuple with no EEPROM space at the default offsets
// can register an override.
type Addresses struct {
	VendorWord  uint16
	MachineWord uint16
	SerialWord  uint16
	RoleWord    uint16
}

// DefaultAddresses is used by every identity tuple with no explicit entry
// in the override table.
var DefaultAddresses = Addresses{VendorWord: 0x0028, MachineWord: 0x0029, SerialWord: 0x002a, RoleWord: 0x002b}

var overrides = map[string]Addresses{}

// AddressesFor returns the NV-memory address table for identityKey,
// falling back to DefaultAddresses.
func AddressesFor(identityKey string) Addresses {
	if a, ok := overrides[identityKey]; ok {
		return a
	}
	return DefaultAddresses
}

// RegisterAddresses installs a non-default address table for identityKey.
func RegisterAddresses(identityKey string, a Addresses) { overrides[identityKey] = a }

// NVMemory is the EEPROM word-level read/write primitive a subdevice
// exposes during Pre-Op, before process-data exchange begins.
type NVMemory interface {
	ReadWord(ctx context.Context, word uint16) (uint16, error)
	WriteWord(ctx context.Context, word uint16, value uint16) error
}

// MachineIdentificationUnique is the (vendor, machine, serial) triple that
// uniquely names one physical machine across its whole lifetime.
type MachineIdentificationUnique struct {
	VendorID  uint16
	MachineID uint16
	Serial    uint16
}

// IsValid reports whether the triple could plausibly have been read from a
// programmed device rather than blank/erased EEPROM.
func (m MachineIdentificationUnique) IsValid() bool {
	return m.VendorID != 0 && m.MachineID != 0 && m.Serial != 0
}

// DeviceMachineIdentification is one subdevice's tag: which machine it
// belongs to, and which role it plays within that machine.
type DeviceMachineIdentification struct {
	Unique MachineIdentificationUnique
	Role   uint16
}

// IsValid reports whether both the machine identity and the role look
// programmed.
func (d DeviceMachineIdentification) IsValid() bool {
	return d.Unique.IsValid() && d.Role != 0
}

// Read reads the four NV-memory words that make up a subdevice's machine
// tag. Any single word read failing surfaces as errcode.NvMemoryRead.
func Read(ctx context.Context, nv NVMemory, addrs Addresses) (DeviceMachineIdentification, error) {
	vendor, err := nv.ReadWord(ctx, addrs.VendorWord)
	if err != nil {
		return DeviceMachineIdentification{}, errcode.Wrap(errcode.NvMemoryRead, "read vendor word", err)
	}
	machine, err := nv.ReadWord(ctx, addrs.MachineWord)
	if err != nil {
		return DeviceMachineIdentification{}, errcode.Wrap(errcode.NvMemoryRead, "read machine word", err)
	}
	serial, err := nv.ReadWord(ctx, addrs.SerialWord)
	if err != nil {
		return DeviceMachineIdentification{}, errcode.Wrap(errcode.NvMemoryRead, "read serial word", err)
	}
	role, err := nv.ReadWord(ctx, addrs.RoleWord)
	if err != nil {
		return DeviceMachineIdentification{}, errcode.Wrap(errcode.NvMemoryRead, "read role word", err)
	}
	return DeviceMachineIdentification{
		Unique: MachineIdentificationUnique{VendorID: vendor, MachineID: machine, Serial: serial},
		Role:   role,
	}, nil
}

// Write writes a subdevice's machine tag to NV-memory. Any single word
// write failing surfaces as errcode.NvMemoryWrite; the caller is
// responsible for re-reading to confirm, since a partially-written tag
// leaves the device in an inconsistent state until corrected.
func Write(ctx context.Context, nv NVMemory, addrs Addresses, tag DeviceMachineIdentification) error {
	if err := nv.WriteWord(ctx, addrs.VendorWord, tag.Unique.VendorID); err != nil {
		return errcode.Wrap(errcode.NvMemoryWrite, "write vendor word", err)
	}
	if err := nv.WriteWord(ctx, addrs.MachineWord, tag.Unique.MachineID); err != nil {
		return errcode.Wrap(errcode.NvMemoryWrite, "write machine word", err)
	}
	if err := nv.WriteWord(ctx, addrs.SerialWord, tag.Unique.Serial); err != nil {
		return errcode.Wrap(errcode.NvMemoryWrite, "write serial word", err)
	}
	if err := nv.WriteWord(ctx, addrs.RoleWord, tag.Role); err != nil {
		return errcode.Wrap(errcode.NvMemoryWrite, "write role word", err)
	}
	return nil
}

// DeviceIdentification pairs a subdevice's bus index with its decoded tag.
type DeviceIdentification struct {
	SubdeviceIndex int
	Tag            DeviceMachineIdentification
}

// DeviceGroup is every subdevice tagged with the same machine unique ID.
type DeviceGroup struct {
	Unique  MachineIdentificationUnique
	Members []DeviceIdentification
}

// GroupByMachine partitions identified, valid-tagged subdevices into
// per-machine groups, and separately reports subdevices whose tag did not
// parse as valid (typically unprogrammed EEPROM).
//
// Subdevices are grouped by equal machine identity, so every member of a
// group agrees on it by construction. No two members of a group may claim
// the same role: the first repeat fails the whole call with
// errcode.DuplicateRole.
func GroupByMachine(idents []DeviceIdentification) (groups []DeviceGroup, unidentified []DeviceIdentification, err error) {
	index := map[MachineIdentificationUnique]int{}
	for _, id := range idents {
		if !id.Tag.IsValid() {
			unidentified = append(unidentified, id)
			continue
		}
		gi, ok := index[id.Tag.Unique]
		if !ok {
			gi = len(groups)
			index[id.Tag.Unique] = gi
			groups = append(groups, DeviceGroup{Unique: id.Tag.Unique})
		}
		g := &groups[gi]
		for _, m := range g.Members {
			if m.Tag.Role == id.Tag.Role {
				return nil, nil, errcode.Wrap(errcode.DuplicateRole, "group devices by machine", nil)
			}
		}
		g.Members = append(g.Members, id)
	}
	return groups, unidentified, nil
}
