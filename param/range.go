package param

import (
	"math"
	"strconv"
)

// Kind selects integer or real arithmetic for a range. Integer is the
// zero value: ranges are integral unless asked otherwise.
type Kind int

const (
	Integer Kind = iota
	Real
)

func (k Kind) String() string {
	if k == Real {
		return "real"
	}
	return "integer"
}

// RangeSpec is the configuration a Range is built from: one of Bounds,
// Labels or LabeledTicks.
type RangeSpec interface {
	rangeSpec()
}

// Bounds is a plain numeric span. Nil Min/Max default to 0 and 127.
type Bounds struct {
	Min, Max    *float64
	Mid         *float64
	Kind        Kind
	Toggle      bool
	Logarithmic bool
}

// Labels is a selector whose ticks are spread evenly between Min and Max.
// Two labels make a toggle spanning 0..127 unless bounds are given;
// otherwise the bounds default to 0..len-1.
type Labels struct {
	Labels   []string
	Min, Max *float64
	Mid      *float64
	Kind     Kind
}

// LabeledTicks pairs every label with an explicit tick value.
type LabeledTicks struct {
	Labels []string
	Ticks  []float64
	Mid    *float64
	Kind   Kind
}

func (Bounds) rangeSpec()       {}
func (Labels) rangeSpec()       {}
func (LabeledTicks) rangeSpec() {}

// Range is the immutable value space of a parameter. It is safe to share
// between controllers and goroutines.
type Range struct {
	min, max, mid float64
	kind          Kind
	toggle        bool
	log           bool
	reversed      bool

	ticks      []float64
	labels     []string
	labelValue map[string]float64
}

// F returns a pointer to v, for the optional fields of a RangeSpec.
func F(v float64) *float64 {
	return &v
}

// NewRange resolves a RangeSpec once into a Range.
func NewRange(spec RangeSpec) (*Range, error) {
	switch s := spec.(type) {
	case Bounds:
		return newBounds(s)
	case *Bounds:
		return newBounds(*s)
	case Labels:
		return newLabels(s)
	case *Labels:
		return newLabels(*s)
	case LabeledTicks:
		return newLabeledTicks(s)
	case *LabeledTicks:
		return newLabeledTicks(*s)
	case nil:
		return nil, configErrorf("missing range spec")
	default:
		return nil, configErrorf("unsupported range spec %T", spec)
	}
}

// MustRange is NewRange for static tables; it panics on a bad spec.
func MustRange(spec RangeSpec) *Range {
	r, err := NewRange(spec)
	if err != nil {
		panic(err)
	}
	return r
}

func newBounds(s Bounds) (*Range, error) {
	r := &Range{
		min:    orDefault(s.Min, 0),
		max:    orDefault(s.Max, 127),
		kind:   s.Kind,
		toggle: s.Toggle,
		log:    s.Logarithmic,
	}
	if isBad(r.min) || isBad(r.max) {
		return nil, configErrorf("bounds must be finite, got [%g, %g]", r.min, r.max)
	}
	if r.max < r.min {
		return nil, configErrorf("max %g is below min %g", r.max, r.min)
	}
	if err := r.resolveMid(s.Mid); err != nil {
		return nil, err
	}
	return r, nil
}

func newLabels(s Labels) (*Range, error) {
	n := len(s.Labels)
	if n == 0 {
		return nil, configErrorf("empty label list")
	}

	min := orDefault(s.Min, 0)
	var max float64
	if n == 2 {
		max = orDefault(s.Max, 127)
	} else {
		max = orDefault(s.Max, float64(n-1))
	}
	if isBad(min) || isBad(max) {
		return nil, configErrorf("bounds must be finite, got [%g, %g]", min, max)
	}

	ticks := make([]float64, n)
	if n == 1 {
		ticks[0] = min
	} else {
		span := max - min
		for i := range ticks {
			step := float64(i) * span / float64(n-1)
			if s.Kind == Integer {
				step = math.Trunc(step)
			}
			ticks[i] = min + step
		}
	}
	return newTicked(s.Labels, ticks, s.Mid, s.Kind)
}

func newLabeledTicks(s LabeledTicks) (*Range, error) {
	if len(s.Labels) == 0 {
		return nil, configErrorf("empty label list")
	}
	if len(s.Labels) != len(s.Ticks) {
		return nil, configErrorf("%d labels but %d ticks", len(s.Labels), len(s.Ticks))
	}
	return newTicked(s.Labels, append([]float64(nil), s.Ticks...), s.Mid, s.Kind)
}

func newTicked(labels []string, ticks []float64, mid *float64, kind Kind) (*Range, error) {
	up, down := true, true
	for i, t := range ticks {
		if isBad(t) {
			return nil, configErrorf("tick %d is not finite", i)
		}
		if i > 0 {
			up = up && ticks[i-1] <= t
			down = down && ticks[i-1] >= t
		}
	}
	if !up && !down {
		return nil, configErrorf("ticks are not monotonic: %v", ticks)
	}

	r := &Range{
		kind:       kind,
		toggle:     len(labels) == 2,
		ticks:      ticks,
		labels:     append([]string(nil), labels...),
		labelValue: make(map[string]float64, len(labels)),
	}

	last := ticks[len(ticks)-1]
	if ticks[0] <= last {
		r.min, r.max = ticks[0], last
	} else {
		r.min, r.max = last, ticks[0]
		r.reversed = true
	}

	for i, l := range r.labels {
		if _, dup := r.labelValue[l]; dup {
			return nil, configErrorf("duplicate label %q", l)
		}
		r.labelValue[l] = ticks[i]
	}

	if err := r.resolveMid(mid); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Range) resolveMid(mid *float64) error {
	if mid != nil {
		if *mid < r.min || *mid > r.max {
			return configErrorf("mid %g outside [%g, %g]", *mid, r.min, r.max)
		}
		r.mid = *mid
		return nil
	}
	half := (r.max - r.min) / 2
	if r.kind == Integer {
		half = math.Trunc(half)
	}
	r.mid = r.min + half
	return nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func (r *Range) Min() float64        { return r.min }
func (r *Range) Max() float64        { return r.max }
func (r *Range) Mid() float64        { return r.mid }
func (r *Range) Span() float64       { return r.max - r.min }
func (r *Range) Kind() Kind          { return r.kind }
func (r *Range) IsInteger() bool     { return r.kind == Integer }
func (r *Range) IsToggle() bool      { return r.toggle }
func (r *Range) IsLogarithmic() bool { return r.log }
func (r *Range) Reversed() bool      { return r.reversed }
func (r *Range) HasTicks() bool      { return len(r.ticks) > 0 }

// Constant reports a degenerate range (single tick, or min == max).
func (r *Range) Constant() bool { return r.max == r.min }

// Ticks returns a copy of the tick table in storage order.
func (r *Range) Ticks() []float64 {
	return append([]float64(nil), r.ticks...)
}

// Labels returns a copy of the label table, index-aligned with Ticks.
func (r *Range) Labels() []string {
	return append([]string(nil), r.labels...)
}

// Clamp limits v to [min, max].
func (r *Range) Clamp(v float64) float64 {
	if v > r.max {
		return r.max
	}
	if v < r.min {
		return r.min
	}
	return v
}

// IndexOf returns the index of the tick nearest v, or -1 without ticks.
// The scan stops at the first tick that is not closer than the previous
// best, so ties go to the earliest index.
func (r *Range) IndexOf(v float64) int {
	if len(r.ticks) == 0 {
		return -1
	}
	index := 0
	best := math.Abs(r.ticks[0] - v)
	for i := 1; i < len(r.ticks); i++ {
		d := math.Abs(r.ticks[i] - v)
		if d >= best {
			break
		}
		best = d
		index = i
	}
	return index
}

// LabelOf returns the label of the tick nearest v, or v formatted as a
// number when the range has no labels.
func (r *Range) LabelOf(v float64) string {
	if i := r.IndexOf(v); i >= 0 {
		return r.labels[i]
	}
	return r.Format(v)
}

// ValueOf resolves a label to its tick value.
func (r *Range) ValueOf(label string) (float64, bool) {
	v, ok := r.labelValue[label]
	return v, ok
}

// Format renders v the way the range's kind suggests.
func (r *Range) Format(v float64) string {
	if r.kind == Integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// logArg is the argument whose log10 maps [min, max] onto [0, 1].
func (r *Range) logArg(v float64) float64 {
	return (9*v - (10*r.min - r.max)) / r.Span()
}

// fromLog inverts the normalized log position l back to a linear value.
func (r *Range) fromLog(l float64) float64 {
	return (math.Pow(10, l)*r.Span() + (10*r.min - r.max)) / 9
}

// ToMIDI encodes v as a 7-bit controller value. A logarithmic range fails
// with an EncodingError (and 0) when its log argument is not positive.
func (r *Range) ToMIDI(v float64) (uint8, error) {
	if r.Constant() {
		return 0, nil
	}
	var f float64
	if r.log {
		arg := r.logArg(v)
		if arg <= 0 || math.IsNaN(arg) {
			return 0, &EncodingError{Arg: arg}
		}
		f = 127 * math.Log10(arg)
	} else {
		f = 127 * (v - r.min) / r.Span()
	}
	return clamp7(math.Round(f)), nil
}

// FromMIDI decodes an absolute 7-bit controller value into the range.
func (r *Range) FromMIDI(raw uint8) float64 {
	if raw > 127 {
		raw = 127
	}
	if r.Constant() {
		return r.min
	}
	if r.log {
		return r.min + r.Span()*(math.Pow(10, float64(raw)/127)-1)/9
	}
	return r.min + float64(raw)*r.Span()/127
}

func clamp7(f float64) uint8 {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= 127:
		return 127
	}
	return uint8(f)
}
