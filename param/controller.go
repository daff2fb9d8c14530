package param

import (
	"errors"
	"fmt"
	"math"

	"go-zctrl/debug"
)

// Notifier receives every accepted mutation of a controller. announce is
// false for changes that must not be echoed to the engine (feedback
// coming back from it, quiet restores).
type Notifier interface {
	Notify(c *Controller, announce bool)
}

// Controller owns the current value of one parameter. All mutation goes
// through its methods so every value stays inside the range.
//
// A Controller is not safe for concurrent use; it belongs to whoever
// dispatches MIDI input for its bindings.
type Controller struct {
	symbol string
	name   string

	rng     *Range
	profile NudgeProfile

	value    float64
	def      float64
	dirty    bool
	readonly bool

	// momentary switches flip on press and ignore release
	momentary bool

	// engine addressing
	midiChan int
	midiCC   int
	oscPath  string

	notifier Notifier
}

// Option configures a Controller at construction.
type Option func(*controllerOptions)

type controllerOptions struct {
	name        string
	def         *float64
	nudgeFactor float64
	profile     *NudgeProfile
	momentary   bool
	readonly    bool
	midiChan    int
	midiCC      int
	oscPath     string
}

func WithName(name string) Option {
	return func(o *controllerOptions) { o.name = name }
}

// WithDefault sets the initial and reset value.
func WithDefault(v float64) Option {
	return func(o *controllerOptions) { o.def = &v }
}

// WithNudgeFactor overrides the coarse nudge increment.
func WithNudgeFactor(coarse float64) Option {
	return func(o *controllerOptions) { o.nudgeFactor = coarse }
}

// WithNudge replaces the derived profile entirely.
func WithNudge(p NudgeProfile) Option {
	return func(o *controllerOptions) { o.profile = &p }
}

func WithMomentary(flag bool) Option {
	return func(o *controllerOptions) { o.momentary = flag }
}

func WithReadonly(flag bool) Option {
	return func(o *controllerOptions) { o.readonly = flag }
}

// WithMIDI addresses the engine parameter as a CC on a channel.
func WithMIDI(channel, cc int) Option {
	return func(o *controllerOptions) {
		o.midiChan = channel
		o.midiCC = cc
	}
}

// WithOSCPath addresses the engine parameter as an OSC path.
func WithOSCPath(path string) Option {
	return func(o *controllerOptions) { o.oscPath = path }
}

// NewController creates a controller over r. Without a default the
// controller starts at 0 coerced into the range.
func NewController(symbol string, r *Range, opts ...Option) (*Controller, error) {
	if r == nil {
		return nil, configErrorf("controller %q has no range", symbol)
	}
	o := controllerOptions{midiChan: -1, midiCC: -1}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		symbol:    symbol,
		name:      o.name,
		rng:       r,
		momentary: o.momentary,
		midiChan:  o.midiChan,
		midiCC:    o.midiCC,
		oscPath:   o.oscPath,
		dirty:     true,
	}
	if c.name == "" {
		c.name = symbol
	}

	if o.profile != nil {
		c.profile = *o.profile
	} else {
		c.profile = DeriveNudge(r, o.nudgeFactor)
	}

	start := 0.0
	if o.def != nil {
		start = *o.def
	}
	if math.IsNaN(start) {
		return nil, configErrorf("controller %q: default is NaN", symbol)
	}
	c.value = c.coerce(start)
	c.def = c.value
	c.readonly = o.readonly

	return c, nil
}

func (c *Controller) Symbol() string        { return c.symbol }
func (c *Controller) Name() string          { return c.name }
func (c *Controller) Range() *Range         { return c.rng }
func (c *Controller) Profile() NudgeProfile { return c.profile }
func (c *Controller) Value() float64        { return c.value }
func (c *Controller) Default() float64      { return c.def }
func (c *Controller) Readonly() bool        { return c.readonly }
func (c *Controller) Momentary() bool       { return c.momentary }
func (c *Controller) MIDIChan() int         { return c.midiChan }
func (c *Controller) MIDICC() int           { return c.midiCC }
func (c *Controller) OSCPath() string       { return c.oscPath }

// Label returns the label for the current value.
func (c *Controller) Label() string {
	return c.rng.LabelOf(c.value)
}

// Path identifies the engine parameter: the OSC path, or "chan#cc".
func (c *Controller) Path() string {
	if c.oscPath != "" {
		return c.oscPath
	}
	if c.midiChan >= 0 && c.midiCC >= 0 {
		return fmt.Sprintf("%d#%d", c.midiChan, c.midiCC)
	}
	return ""
}

// SetNotifier installs the sink for accepted mutations.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

// SetMomentary selects momentary (flip on press) or latching toggle input.
func (c *Controller) SetMomentary(flag bool) {
	c.momentary = flag
}

// SetReadonly locks or unlocks mutation. Changing it marks the controller
// dirty so views redraw.
func (c *Controller) SetReadonly(flag bool) {
	if flag != c.readonly {
		c.readonly = flag
		c.dirty = true
	}
}

func (c *Controller) Dirty() bool { return c.dirty }
func (c *Controller) ClearDirty() { c.dirty = false }

// coerce applies toggle snapping, integer truncation and clamping.
func (c *Controller) coerce(v float64) float64 {
	r := c.rng
	if r.IsToggle() {
		if v == r.min || v == r.max {
			return v
		}
		if v < r.mid {
			return r.min
		}
		return r.max
	}
	if !r.HasTicks() && r.IsInteger() {
		v = math.Trunc(v)
	}
	return r.Clamp(v)
}

// Set is SetValue with announce.
func (c *Controller) Set(v float64) bool {
	return c.SetValue(v, true)
}

// SetValue coerces v into the range and stores it. It returns true when
// the value changed; an unchanged value is neither dirty nor notified.
func (c *Controller) SetValue(v float64, announce bool) bool {
	if c.readonly {
		return false
	}
	if math.IsNaN(v) {
		debug.Warn("param", "%s: ignoring NaN value", c.symbol)
		return false
	}
	nv := c.coerce(v)
	if nv == c.value {
		return false
	}
	c.value = nv
	c.dirty = true
	if c.notifier != nil {
		c.notifier.Notify(c, announce)
	}
	return true
}

// SetLabel sets the value from a label. Unknown labels are logged and
// leave the value unchanged.
func (c *Controller) SetLabel(label string, announce bool) (bool, error) {
	if c.readonly {
		return false, nil
	}
	v, ok := c.rng.ValueOf(label)
	if !ok {
		err := &UnknownLabelError{Symbol: c.symbol, Label: label}
		debug.Warn("param", "%v", err)
		return false, err
	}
	return c.SetValue(v, announce), nil
}

// Nudge is NudgeValue with announce.
func (c *Controller) Nudge(steps int, fine bool) bool {
	return c.NudgeValue(steps, fine, true)
}

// NudgeValue moves the value by steps: whole ticks on ticked ranges,
// profile increments in log space on logarithmic ranges, and linear
// increments otherwise. It returns false when no move is possible.
func (c *Controller) NudgeValue(steps int, fine, announce bool) bool {
	if c.readonly {
		return false
	}
	r := c.rng
	if r.HasTicks() {
		i := r.IndexOf(c.value) + steps
		if i < 0 {
			i = 0
		}
		if i >= len(r.ticks) {
			i = len(r.ticks) - 1
		}
		c.SetValue(r.ticks[i], announce)
		return true
	}

	factor := c.profile.Factor(fine)
	if factor == 0 {
		return false
	}

	if r.IsLogarithmic() && !r.Constant() {
		l := 0.0
		if arg := r.logArg(c.value); arg > 0 {
			l = math.Log10(arg)
		} else {
			debug.Warn("param", "%v", &EncodingError{Symbol: c.symbol, Arg: arg})
		}
		l = math.Min(1, math.Max(0, l+float64(steps)*factor))
		c.SetValue(r.fromLog(l), announce)
		return true
	}

	c.SetValue(c.value+float64(steps)*factor, announce)
	return true
}

// Toggle is ToggleValue with announce.
func (c *Controller) Toggle() bool {
	return c.ToggleValue(true)
}

// ToggleValue flips a toggle to the opposite bound. Non-toggles are left
// alone.
func (c *Controller) ToggleValue(announce bool) bool {
	if !c.rng.IsToggle() {
		return false
	}
	if c.value == c.rng.min {
		return c.SetValue(c.rng.max, announce)
	}
	return c.SetValue(c.rng.min, announce)
}

// Reset returns to the default value.
func (c *Controller) Reset() bool {
	return c.Set(c.def)
}

// ToMIDI encodes the value as a 7-bit CC byte. Encoding failures are
// logged and yield 0.
func (c *Controller) ToMIDI() uint8 {
	v, err := c.rng.ToMIDI(c.value)
	if err != nil {
		var ee *EncodingError
		if errors.As(err, &ee) {
			ee.Symbol = c.symbol
		}
		debug.Error("param", "%v", err)
		return 0
	}
	return v
}

// ToOSC returns the OSC payload: a bool for toggles, the number otherwise.
func (c *Controller) ToOSC() any {
	if c.rng.IsToggle() {
		return c.value > 0
	}
	return c.value
}
