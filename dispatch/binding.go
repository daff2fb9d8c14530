package dispatch

import (
	"time"

	"go-zctrl/ccmode"
	"go-zctrl/debug"
	"go-zctrl/param"
)

// Binding pairs one CC source with a controller. Each source gets its own
// detector, so two knobs driving the same controller may use different
// encodings.
type Binding struct {
	ctrl *param.Controller
	det  *ccmode.Detector
	now  func() time.Time
}

// BindingOption configures a Binding.
type BindingOption func(*Binding)

// WithClock replaces time.Now for detection timing.
func WithClock(now func() time.Time) BindingOption {
	return func(b *Binding) { b.now = now }
}

// WithMode skips detection for sources with a known encoding.
func WithMode(m ccmode.Mode) BindingOption {
	return func(b *Binding) { b.det.Force(m) }
}

func NewBinding(c *param.Controller, opts ...BindingOption) *Binding {
	b := &Binding{
		ctrl: c,
		det:  ccmode.New(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Binding) Controller() *param.Controller { return b.ctrl }
func (b *Binding) Detector() *ccmode.Detector    { return b.det }
func (b *Binding) Mode() ccmode.Mode             { return b.det.Mode() }

// ResetMode re-enters detection.
func (b *Binding) ResetMode() { b.det.Reset() }

// ForceMode sets the encoding by hand.
func (b *Binding) ForceMode(m ccmode.Mode) { b.det.Force(m) }

// HandleCC applies a raw CC value and announces the change to sinks. It
// returns true when the controller value changed.
func (b *Binding) HandleCC(raw uint8) bool {
	return b.handle(raw, true)
}

// HandleFeedback applies a CC echoed back by the engine without
// announcing it again.
func (b *Binding) HandleFeedback(raw uint8) bool {
	return b.handle(raw, false)
}

func (b *Binding) handle(raw uint8, announce bool) bool {
	if raw > 127 {
		raw = 127
	}

	mode := b.det.Mode()
	if mode == ccmode.Unknown {
		var committed bool
		mode, committed = b.det.Observe(raw, b.now())
		if committed {
			debug.Log("dispatch", "%s: cc mode %s", b.ctrl.Symbol(), mode)
		}
	}

	switch {
	case mode == ccmode.Absolute:
		return b.absolute(raw, announce)
	case mode.Relative():
		return b.relative(ccmode.Delta(mode, raw), announce)
	}
	return false
}

func (b *Binding) absolute(raw uint8, announce bool) bool {
	c := b.ctrl
	r := c.Range()
	if r.IsToggle() && !r.IsLogarithmic() {
		if c.Momentary() {
			if raw >= 64 {
				return c.ToggleValue(announce)
			}
			return false
		}
		if raw >= 64 {
			return c.SetValue(r.Max(), announce)
		}
		return c.SetValue(r.Min(), announce)
	}
	return c.SetValue(r.FromMIDI(raw), announce)
}

func (b *Binding) relative(delta int, announce bool) bool {
	if delta == 0 {
		return false
	}
	c := b.ctrl
	r := c.Range()
	if r.IsToggle() {
		if c.Momentary() {
			if delta > 0 {
				return c.ToggleValue(announce)
			}
			return false
		}
		if delta > 0 {
			return c.SetValue(r.Max(), announce)
		}
		return c.SetValue(r.Min(), announce)
	}
	before := c.Value()
	c.NudgeValue(delta, false, announce)
	return c.Value() != before
}
