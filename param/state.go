package param

import "math"

// State is the persisted form of a controller.
type State struct {
	Value           *float64 `json:"value,omitempty"`
	MomentarySwitch bool     `json:"midi_cc_momentary_switch,omitempty"`
}

// State returns the controller state. With full false the value is only
// included when it differs from the default.
func (c *Controller) State(full bool) State {
	var s State
	if full || c.value != c.def {
		if !math.IsNaN(c.value) {
			v := c.value
			s.Value = &v
		}
	}
	s.MomentarySwitch = c.momentary
	return s
}

// Restore applies a snapshot state. The value still goes through SetValue,
// so it is coerced and notified like any other change.
func (c *Controller) Restore(s State, announce bool) {
	if s.Value != nil {
		c.SetValue(*s.Value, announce)
	}
	c.SetMomentary(s.MomentarySwitch)
}

// Empty reports a state that carries nothing worth saving.
func (s State) Empty() bool {
	return s.Value == nil && !s.MomentarySwitch
}
