package controlplane

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/runtimevic/fieldbusd/internal/identify"
	"github.com/runtimevic/fieldbusd/internal/machine"
	"github.com/runtimevic/fieldbusd/internal/rtloop"
)

type fakeMachine struct {
	unique identify.MachineIdentificationUnique
	inbox  chan machine.Message
}

func (m *fakeMachine) Identification() identify.MachineIdentificationUnique { return m.unique }
func (m *fakeMachine) Act(now time.Time)                                   {}
func (m *fakeMachine) ActMessage(msg machine.Message)                      {}
func (m *fakeMachine) Inbox() chan<- machine.Message                       { return m.inbox }

func newFakeMachine(serial uint16) *fakeMachine {
	return &fakeMachine{
		unique: identify.MachineIdentificationUnique{VendorID: 1, MachineID: 1, Serial: serial},
		inbox:  make(chan machine.Message, 4),
	}
}

func TestMutateRoutesToRegisteredMachineInbox(t *testing.T) {
	hot := make(chan rtloop.HotThreadMessage, 4)
	br := New(hot)
	m := newFakeMachine(7)
	br.RegisterMachine(m)

	payload, _ := json.Marshal(map[string]any{"action": "Start"})
	if !br.Mutate(m.unique, payload) {
		t.Fatalf("Mutate should find the registered machine")
	}

	select {
	case got := <-m.inbox:
		if got.Kind != machine.MessageMutate {
			t.Fatalf("Kind = %v, want MessageMutate", got.Kind)
		}
	default:
		t.Fatalf("expected a message on the machine inbox")
	}
}

func TestMutateUnknownMachineReturnsFalse(t *testing.T) {
	br := New(make(chan rtloop.HotThreadMessage, 1))
	unknown := identify.MachineIdentificationUnique{VendorID: 9, MachineID: 9, Serial: 9}
	if br.Mutate(unknown, nil) {
		t.Fatalf("Mutate on an unregistered machine should return false")
	}
}

func TestDeregisterMachineNotifiesHotQueue(t *testing.T) {
	hot := make(chan rtloop.HotThreadMessage, 1)
	br := New(hot)
	m := newFakeMachine(3)
	br.RegisterMachine(m)

	br.DeregisterMachine(m.unique)

	select {
	case msg := <-hot:
		del, ok := msg.(rtloop.DeleteMachine)
		if !ok {
			t.Fatalf("hot queue message = %T, want rtloop.DeleteMachine", msg)
		}
		if del.Unique != m.unique {
			t.Fatalf("DeleteMachine.Unique = %+v, want %+v", del.Unique, m.unique)
		}
	default:
		t.Fatalf("expected a DeleteMachine on the hot queue")
	}
}

func TestPushAndSubscribeEventsDeliversRetained(t *testing.T) {
	br := New(make(chan rtloop.HotThreadMessage, 1))
	unique := identify.MachineIdentificationUnique{VendorID: 1, MachineID: 1, Serial: 5}
	br.PushEvent(machine.Event{Unique: unique, Payload: map[string]any{"led_on": true}})

	sub := br.SubscribeEvents()
	defer sub.Unsubscribe()

	select {
	case msg := <-sub.Channel():
		if msg == nil {
			t.Fatalf("expected a retained event, got nil")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected the retained event to be delivered immediately on subscribe")
	}
}
