package testel2008

import (
	"encoding/json"
	"time"
)

// mutationEnvelope is the tagged-union wire shape for a mutation: the
// action names which payload type "value" decodes as.
type mutationEnvelope struct {
	Action string          `json:"action"`
	Value  json.RawMessage `json:"value"`
}

type setLed struct {
	Index int  `json:"index"`
	On    bool `json:"on"`
}

type setAllLeds struct {
	On bool `json:"on"`
}

type setMode struct {
	Mode Mode `json:"mode"`
}

type setAutomaticDelay struct {
	DelayMS int64 `json:"delay_ms"`
}

func (m *Machine) applyMutation(env mutationEnvelope) {
	switch env.Action {
	case "SetLed":
		var v setLed
		if json.Unmarshal(env.Value, &v) == nil && v.Index >= 0 && v.Index < len(m.ledOn) {
			m.ledOn[v.Index] = v.On
		}
	case "SetAllLeds":
		var v setAllLeds
		if json.Unmarshal(env.Value, &v) == nil {
			for i := range m.ledOn {
				m.ledOn[i] = v.On
			}
		}
	case "SetMode":
		var v setMode
		if json.Unmarshal(env.Value, &v) == nil {
			m.mode = v.Mode
		}
	case "Start":
		m.state = StateRunning
		m.lastToggle = time.Time{}
	case "Stop":
		m.state = StateStopped
	case "Reset":
		m.state = StateStopped
		m.mode = ModeManual
		for i := range m.ledOn {
			m.ledOn[i] = false
		}
	case "SetAutomaticDelay":
		var v setAutomaticDelay
		if json.Unmarshal(env.Value, &v) == nil && v.DelayMS > 0 {
			m.automaticDelay = time.Duration(v.DelayMS) * time.Millisecond
		}
	}
}
