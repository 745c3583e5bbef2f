// Package machine defines the Machine contract, its message types, and the
// registry/builder that turns a group of identified devices into a running
// Machine.
package machine

import (
	"time"

	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/internal/devices"
	"github.com/runtimevic/fieldbusd/internal/identify"
)

// Message is anything delivered to a machine's inbox: an HTTP-originated
// mutation, a namespace subscribe/unsubscribe, or a cross-machine connect
// request. Concrete machines decode Payload against their own mutation
// type; the envelope itself never needs to know the shape.
type Message struct {
	Kind    MessageKind
	Payload []byte // raw JSON, decoded by the receiving machine
}

type MessageKind int

const (
	MessageMutate MessageKind = iota
	MessageSubscribeNamespace
	MessageUnsubscribeNamespace
	MessageConnectToMachine
	MessageDisconnectMachine
)

// Machine is a running instance bound to one identified group of devices.
// Act is called once per real-time cycle after process-data input decode
// and before output encode; it must never block.
type Machine interface {
	Identification() identify.MachineIdentificationUnique
	Act(now time.Time)
	ActMessage(msg Message)
	Inbox() chan<- Message
}

// DeviceGroupMember pairs one subdevice's role tag with a handle into the
// device table it lives in.
type DeviceGroupMember struct {
	Role         uint16
	DeviceIndex  int
	Identity     devices.IdentityTuple
}

// Hardware is the real-time loop's device table, addressed by index. It is
// mutated only by the real-time thread; machines borrow devices from it by
// index and role, never by holding a reference across cycles.
type Hardware interface {
	Device(index int) devices.Device
}

// NewParams bundles everything a machine constructor needs beyond the
// claimed device group itself.
type NewParams struct {
	Group    []DeviceGroupMember
	Hardware Hardware
	Unique   identify.MachineIdentificationUnique
	Events   chan<- Event
}

// Event is a state push a machine emits toward the control-plane event bus.
type Event struct {
	Unique  identify.MachineIdentificationUnique
	Payload any
}

// Constructor builds a Machine from a validated device group.
type Constructor func(params NewParams) (Machine, error)

// GetDevice claims device role from the group, verifies its identity
// against expectedIdentities, marks it used exactly once, and returns its
// index into params.Hardware. A role missing from the group is
// errcode.MissingRole; a present role whose identity isn't in
// expectedIdentities is errcode.IdentityMismatch.
func GetDevice(params NewParams, role uint16, expectedIdentities []devices.IdentityTuple) (int, error) {
	for _, m := range params.Group {
		if m.Role != role {
			continue
		}
		ok := false
		for _, id := range expectedIdentities {
			if id == m.Identity {
				ok = true
				break
			}
		}
		if !ok {
			return 0, errcode.Wrap(errcode.IdentityMismatch, "get device by role", nil)
		}
		dev := params.Hardware.Device(m.DeviceIndex)
		dev.SetUsed(true)
		return m.DeviceIndex, nil
	}
	return 0, errcode.Wrap(errcode.MissingRole, "get device by role", nil)
}
