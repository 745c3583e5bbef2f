// Package controlplane is the bridge between the outside world (HTTP,
// websocket event subscribers) and the real-time loop: it never touches
// machine or device state directly, only enqueues messages the real-time
// thread drains on its own schedule.
package controlplane

import (
	"github.com/runtimevic/fieldbusd/bus"
	"github.com/runtimevic/fieldbusd/internal/identify"
	"github.com/runtimevic/fieldbusd/internal/machine"
	"github.com/runtimevic/fieldbusd/internal/rtloop"
)

// topics used on the shared bus.
var (
	topicHotThread = bus.T("rt", "hotthread")
	topicAsync     = bus.T("rt", "async")
)

func topicMachineEvent(u identify.MachineIdentificationUnique) bus.Topic {
	return bus.T("machine", u.VendorID, u.MachineID, u.Serial, "event")
}

// AsyncThreadMessage names the cross-machine connect/disconnect requests.
// Nothing in the server sends or handles these messages.
type AsyncThreadMessage interface{ isAsyncThreadMessage() }

type ConnectOneWayRequest struct {
	From, To identify.MachineIdentificationUnique
}
type DisconnectMachines struct {
	From, To identify.MachineIdentificationUnique
}

func (ConnectOneWayRequest) isAsyncThreadMessage() {}
func (DisconnectMachines) isAsyncThreadMessage()   {}

// Bridge owns the shared bus connection and the registries needed to
// route HTTP requests to the right machine inbox or the real-time
// thread's hot queue.
type Bridge struct {
	b    *bus.Bus
	conn *bus.Connection

	machines map[identify.MachineIdentificationUnique]machine.Machine
	hotTx    chan<- rtloop.HotThreadMessage

	writeIdentification func(subdeviceIndex int, tag identify.DeviceMachineIdentification) error
}

// SetIdentificationWriter installs the function the write-identification
// HTTP handler calls on the real-time thread. It is set once, after
// ethercat.Run has produced a Setup, since writing NV-memory needs a live
// Transport.
func (br *Bridge) SetIdentificationWriter(f func(subdeviceIndex int, tag identify.DeviceMachineIdentification) error) {
	br.writeIdentification = f
}

// New creates a Bridge over a fresh bus, with hotTx as the channel the
// real-time loop reads its HotThreadMessage queue from.
func New(hotTx chan<- rtloop.HotThreadMessage) *Bridge {
	b := bus.NewBus(64)
	return &Bridge{
		b:        b,
		conn:     b.NewConnection("controlplane"),
		machines: map[identify.MachineIdentificationUnique]machine.Machine{},
		hotTx:    hotTx,
	}
}

// NewConnection opens another named connection on the same shared bus,
// for subsystems (such as internal/health) that publish or subscribe
// independently of the HTTP-facing routing this Bridge does.
func (br *Bridge) NewConnection(name string) *bus.Connection {
	return br.b.NewConnection(name)
}

// RegisterMachine makes m reachable by its unique identification for
// mutation routing. It publishes no event.
func (br *Bridge) RegisterMachine(m machine.Machine) {
	br.machines[m.Identification()] = m
}

// DeregisterMachine removes m from the routing table and asks the
// real-time loop to drop it from its active machine list.
func (br *Bridge) DeregisterMachine(u identify.MachineIdentificationUnique) {
	delete(br.machines, u)
	select {
	case br.hotTx <- rtloop.DeleteMachine{Unique: u}:
	default:
	}
}

// Mutate enqueues a mutation onto the target machine's own inbox. It
// returns false if no machine is registered under unique.
func (br *Bridge) Mutate(unique identify.MachineIdentificationUnique, payload []byte) bool {
	m, ok := br.machines[unique]
	if !ok {
		return false
	}
	select {
	case m.Inbox() <- machine.Message{Kind: machine.MessageMutate, Payload: payload}:
	default:
		// inbox full: drop rather than block the HTTP request.
	}
	return true
}

// PushEvent publishes a machine's state as a retained bus message on its
// event topic, where websocket subscribers pick it up.
func (br *Bridge) PushEvent(ev machine.Event) {
	msg := br.conn.NewMessage(topicMachineEvent(ev.Unique), ev.Payload, true)
	br.conn.Publish(msg)
}

// SubscribeEvents returns a subscription carrying every machine event,
// past and future: the single-wildcard match on vendor/machine/serial
// picks up every machine's retained event on subscribe, and every
// publish afterward.
func (br *Bridge) SubscribeEvents() *bus.Subscription {
	return br.conn.Subscribe(bus.T("machine", "+", "+", "+", "event"))
}

// WriteMachineDeviceInfo asks the real-time thread to run apply (an NV-
// memory write of one subdevice's tag) at the top of its next cycle, off
// the HTTP request's goroutine. If the hot queue is full the request is
// dropped.
func (br *Bridge) WriteMachineDeviceInfo(apply func() error) {
	select {
	case br.hotTx <- rtloop.WriteMachineDeviceInfo{Apply: apply}:
	default:
	}
}
