package param

import (
	"errors"
	"math"
	"testing"
)

type recorder struct {
	calls    int
	announce []bool
}

func (r *recorder) Notify(c *Controller, announce bool) {
	r.calls++
	r.announce = append(r.announce, announce)
}

func mustController(t *testing.T, spec RangeSpec, opts ...Option) *Controller {
	t.Helper()
	c, err := NewController("test", MustRange(spec), opts...)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func TestClampInvariant(t *testing.T) {
	specs := []RangeSpec{
		Bounds{},
		Bounds{Min: F(-1), Max: F(1), Kind: Real},
		Bounds{Min: F(20), Max: F(20000), Kind: Real, Logarithmic: true},
		Bounds{Min: F(5), Max: F(5)},
		Labels{Labels: []string{"a", "b", "c", "d", "e"}},
		Labels{Labels: []string{"off", "on"}},
		LabeledTicks{Labels: []string{"x", "y", "z"}, Ticks: []float64{100, 50, 0}},
	}
	inputs := []float64{
		math.Inf(-1), -1e9, -128, -1, -0.5, 0, 0.25, 1, 4.5, 63, 64, 127, 128, 1e9, math.Inf(1),
	}

	for _, spec := range specs {
		c := mustController(t, spec)
		r := c.Range()
		for _, in := range inputs {
			c.Set(in)
			if v := c.Value(); v < r.Min() || v > r.Max() {
				t.Errorf("%T Set(%g) -> %g outside [%g, %g]", spec, in, v, r.Min(), r.Max())
			}
		}
		for steps := -300; steps <= 300; steps += 37 {
			c.Nudge(steps, false)
			if v := c.Value(); v < r.Min() || v > r.Max() {
				t.Errorf("%T Nudge(%d) -> %g outside [%g, %g]", spec, steps, v, r.Min(), r.Max())
			}
		}
	}
}

func TestSetSameValueIsIdempotent(t *testing.T) {
	c := mustController(t, Bounds{Max: F(10), Kind: Real}, WithDefault(3))
	rec := &recorder{}
	c.SetNotifier(rec)
	c.ClearDirty()

	if c.Set(3) {
		t.Error("Set(current) reported a change")
	}
	if c.Dirty() {
		t.Error("Set(current) marked dirty")
	}
	if rec.calls != 0 {
		t.Errorf("Set(current) notified %d times", rec.calls)
	}

	if !c.Set(4) || !c.Dirty() || rec.calls != 1 {
		t.Errorf("Set(4): dirty=%v calls=%d", c.Dirty(), rec.calls)
	}

	c.SetValue(5, false)
	if rec.announce[1] {
		t.Error("quiet SetValue announced")
	}
}

func TestToggleSnap(t *testing.T) {
	c := mustController(t, Bounds{Min: F(0), Max: F(127), Mid: F(64), Toggle: true})

	tests := []struct {
		in, want float64
	}{
		{63, 0},
		{64, 127},
		{0, 0},
		{127, 127},
		{10, 0},
		{100, 127},
	}
	for _, tt := range tests {
		c.Set(tt.in)
		if c.Value() != tt.want {
			t.Errorf("Set(%g) = %g, want %g", tt.in, c.Value(), tt.want)
		}
	}
}

func TestIntegerTruncates(t *testing.T) {
	c := mustController(t, Bounds{})
	c.Set(12.9)
	if c.Value() != 12 {
		t.Errorf("Set(12.9) = %g, want 12", c.Value())
	}
}

func TestNudgeTicks(t *testing.T) {
	c := mustController(t, LabeledTicks{
		Labels: []string{"zero", "ten", "twenty", "thirty"},
		Ticks:  []float64{0, 10, 20, 30},
	}, WithDefault(10))

	steps := []struct {
		delta int
		want  float64
	}{
		{+1, 20},
		{-1, 10},
		{+10, 30},
		{-10, 0},
	}
	for _, s := range steps {
		if !c.Nudge(s.delta, false) {
			t.Fatalf("Nudge(%d) reported no move", s.delta)
		}
		if c.Value() != s.want {
			t.Errorf("Nudge(%d) = %g, want %g", s.delta, c.Value(), s.want)
		}
	}
}

func TestNudgeLinear(t *testing.T) {
	c := mustController(t, Bounds{Max: F(10), Kind: Real}, WithDefault(5))

	c.Nudge(3, false)
	if math.Abs(c.Value()-5.3) > 1e-9 {
		t.Errorf("coarse nudge = %g, want 5.3", c.Value())
	}
	c.Nudge(-5, true)
	if math.Abs(c.Value()-5.25) > 1e-9 {
		t.Errorf("fine nudge = %g, want 5.25", c.Value())
	}

	i := mustController(t, Bounds{})
	i.Nudge(5, false)
	if i.Value() != 5 {
		t.Errorf("integer nudge = %g, want 5", i.Value())
	}
}

func TestNudgeLogarithmic(t *testing.T) {
	c := mustController(t, Bounds{Min: F(20), Max: F(20000), Kind: Real, Logarithmic: true}, WithDefault(20))

	c.Nudge(50, false)
	half := c.Value()
	if half <= 20 || half >= 20000 {
		t.Fatalf("half-way nudge = %g", half)
	}
	if raw := c.ToMIDI(); raw < 62 || raw > 65 {
		t.Errorf("half-way log position encodes to %d, want ~64", raw)
	}

	c.Nudge(100, false)
	if math.Abs(c.Value()-20000) > 1e-6 {
		t.Errorf("nudge past top = %g, want 20000", c.Value())
	}

	c.Nudge(-100, false)
	if math.Abs(c.Value()-20) > 1e-6 {
		t.Errorf("nudge past bottom = %g, want 20", c.Value())
	}
}

func TestNudgeWithoutFactor(t *testing.T) {
	c := mustController(t, Bounds{Max: F(10), Kind: Real}, WithNudge(NudgeProfile{}))
	if c.Nudge(1, false) {
		t.Error("Nudge with zero profile reported a move")
	}
}

func TestToggleAndReset(t *testing.T) {
	c := mustController(t, Labels{Labels: []string{"off", "on"}})
	if !c.Toggle() || c.Value() != 127 {
		t.Errorf("Toggle from off = %g", c.Value())
	}
	if !c.Toggle() || c.Value() != 0 {
		t.Errorf("Toggle from on = %g", c.Value())
	}
	if c.ToOSC() != false {
		t.Errorf("ToOSC = %v, want false", c.ToOSC())
	}

	plain := mustController(t, Bounds{}, WithDefault(40))
	if plain.Toggle() {
		t.Error("Toggle on a non-toggle range changed the value")
	}
	plain.Set(90)
	plain.Reset()
	if plain.Value() != 40 {
		t.Errorf("Reset = %g, want 40", plain.Value())
	}
	if v, ok := plain.ToOSC().(float64); !ok || v != 40 {
		t.Errorf("ToOSC = %v, want 40", plain.ToOSC())
	}
}

func TestReadonlyIgnoresMutation(t *testing.T) {
	c := mustController(t, Bounds{}, WithDefault(10), WithReadonly(true))
	c.Set(20)
	c.Nudge(5, false)
	c.SetLabel("x", true)
	if c.Value() != 10 {
		t.Errorf("readonly value moved to %g", c.Value())
	}

	ticked := mustController(t, LabeledTicks{Labels: []string{"-1", "0", "+1"}, Ticks: []float64{-1, 0, 1}},
		WithDefault(0), WithReadonly(true))
	if ticked.Nudge(1, false) || ticked.Value() != 0 {
		t.Errorf("readonly ticked nudge reported a move, value %g", ticked.Value())
	}
	if c.Nudge(1, false) {
		t.Error("readonly nudge reported a move")
	}

	c.ClearDirty()
	c.SetReadonly(false)
	if !c.Dirty() {
		t.Error("SetReadonly change did not mark dirty")
	}
	c.Set(20)
	if c.Value() != 20 {
		t.Errorf("unlocked Set = %g, want 20", c.Value())
	}
}

func TestSetLabel(t *testing.T) {
	c := mustController(t, Labels{Labels: []string{"sine", "saw", "square"}})

	changed, err := c.SetLabel("square", true)
	if err != nil || !changed || c.Label() != "square" {
		t.Errorf("SetLabel(square) = %v, %v, label %q", changed, err, c.Label())
	}

	changed, err = c.SetLabel("noise", true)
	var le *UnknownLabelError
	if !errors.As(err, &le) || le.Label != "noise" {
		t.Errorf("SetLabel(noise) err = %v, want UnknownLabelError", err)
	}
	if changed || c.Label() != "square" {
		t.Errorf("unknown label moved value to %q", c.Label())
	}
}

func TestControllerToMIDIBounds(t *testing.T) {
	c := mustController(t, Bounds{Min: F(20), Max: F(20000), Kind: Real, Logarithmic: true}, WithDefault(20))
	if got := c.ToMIDI(); got != 0 {
		t.Errorf("ToMIDI at min = %d, want 0", got)
	}
	c.Set(20000)
	if got := c.ToMIDI(); got != 127 {
		t.Errorf("ToMIDI at max = %d, want 127", got)
	}
}

func TestPath(t *testing.T) {
	if p := mustController(t, Bounds{}, WithMIDI(2, 74)).Path(); p != "2#74" {
		t.Errorf("midi path = %q", p)
	}
	if p := mustController(t, Bounds{}, WithMIDI(2, 74), WithOSCPath("/filter/cutoff")).Path(); p != "/filter/cutoff" {
		t.Errorf("osc path = %q", p)
	}
	if p := mustController(t, Bounds{}).Path(); p != "" {
		t.Errorf("unaddressed path = %q", p)
	}
}

func TestStateRoundTrip(t *testing.T) {
	c := mustController(t, Bounds{}, WithDefault(64), WithMomentary(true))

	if s := c.State(false); s.Value != nil {
		t.Errorf("off-default state at default carries value %g", *s.Value)
	}
	if s := c.State(true); s.Value == nil || *s.Value != 64 || !s.MomentarySwitch {
		t.Errorf("full state = %+v", s)
	}

	c.Set(100)
	saved := c.State(false)
	if saved.Value == nil || *saved.Value != 100 {
		t.Fatalf("off-default state = %+v", saved)
	}

	other := mustController(t, Bounds{}, WithDefault(64))
	rec := &recorder{}
	other.SetNotifier(rec)
	other.Restore(saved, true)
	if other.Value() != 100 || !other.Momentary() || rec.calls != 1 {
		t.Errorf("restored value=%g momentary=%v calls=%d", other.Value(), other.Momentary(), rec.calls)
	}

	over := 500.0
	other.Restore(State{Value: &over}, false)
	if other.Value() != 127 {
		t.Errorf("restore is not clamped: %g", other.Value())
	}
}
