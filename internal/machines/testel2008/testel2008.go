// Package testel2008 is a minimal concrete machine built on a single
// EL2008 digital output terminal: it exists to exercise the mutation
// queue, the real-time act() path, and periodic state events end to end,
// not to model a real production machine.
package testel2008

import (
	"encoding/json"
	"time"

	"github.com/runtimevic/fieldbusd/internal/devices"
	"github.com/runtimevic/fieldbusd/internal/identify"
	"github.com/runtimevic/fieldbusd/internal/machine"
)

// VendorQitech and MachineTestEL2008 together name this machine type in
// the machine registry.
const (
	VendorQitech      uint16 = 0x0001
	MachineTestEL2008 uint16 = 0x0001

	roleEL2008 uint16 = 1
)

var Identification = machine.Identification{VendorID: VendorQitech, MachineID: MachineTestEL2008}

var expectedIdentities = []devices.IdentityTuple{
	devices.EL2008IdentityA, devices.EL2008IdentityB, devices.EL2008IdentityC,
}

// Mode selects whether the machine drives its outputs from incoming
// mutations only, or runs a fixed all-on/all-off blink sequence.
type Mode int

const (
	ModeManual Mode = iota
	ModeAutomatic
)

// State is what's running vs. stopped in automatic mode.
type State int

const (
	StateStopped State = iota
	StateRunning
)

const stateEmitInterval = time.Second / 30

// Machine is the concrete Machine implementation.
type Machine struct {
	unique   identify.MachineIdentificationUnique
	hw       machine.Hardware
	devIndex int
	events   chan<- machine.Event
	inbox    chan machine.Message

	ledOn           [8]bool
	mode            Mode
	state           State
	automaticDelay  time.Duration
	lastToggle      time.Time
	blinkPhase      bool
	lastStateEmit   time.Time
}

// New validates the claimed device group and builds the machine. It is
// registered under Identification and never called directly.
func New(params machine.NewParams) (machine.Machine, error) {
	idx, err := machine.GetDevice(params, roleEL2008, expectedIdentities)
	if err != nil {
		return nil, err
	}
	return &Machine{
		unique:         params.Unique,
		hw:             params.Hardware,
		devIndex:       idx,
		events:         params.Events,
		inbox:          make(chan machine.Message, 64),
		automaticDelay: 500 * time.Millisecond,
	}, nil
}

func (m *Machine) Identification() identify.MachineIdentificationUnique { return m.unique }
func (m *Machine) Inbox() chan<- machine.Message                       { return m.inbox }

// Act drains at most one pending message, runs automatic-mode logic if
// enabled, applies the current LED state to the underlying driver, and
// emits a state event at most 30 times a second. It never blocks.
func (m *Machine) Act(now time.Time) {
	select {
	case msg := <-m.inbox:
		m.ActMessage(msg)
	default:
	}

	if m.mode == ModeAutomatic && m.state == StateRunning {
		if now.Sub(m.lastToggle) >= m.automaticDelay {
			m.blinkPhase = !m.blinkPhase
			m.lastToggle = now
			for i := range m.ledOn {
				m.ledOn[i] = m.blinkPhase
			}
		}
	}

	dev := m.hw.Device(m.devIndex).(*devices.EL2008)
	for i, on := range m.ledOn {
		dev.SetOutput(devices.EL2008Port(i), on)
	}

	if now.Sub(m.lastStateEmit) >= stateEmitInterval {
		m.lastStateEmit = now
		m.emitState()
	}
}

func (m *Machine) ActMessage(msg machine.Message) {
	if msg.Kind != machine.MessageMutate {
		return
	}
	var env mutationEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return
	}
	m.applyMutation(env)
	m.emitState()
}

func (m *Machine) emitState() {
	if m.events == nil {
		return
	}
	select {
	case m.events <- machine.Event{Unique: m.unique, Payload: StateEvent{
		LedOn:            m.ledOn,
		Mode:             m.mode,
		State:            m.state,
		AutomaticDelayMS: m.automaticDelay.Milliseconds(),
	}}:
	default:
	}
}

// StateEvent is the payload pushed to the control-plane event bus.
type StateEvent struct {
	LedOn            [8]bool `json:"led_on"`
	Mode             Mode    `json:"mode"`
	State            State   `json:"state"`
	AutomaticDelayMS int64   `json:"automatic_delay_ms"`
}
