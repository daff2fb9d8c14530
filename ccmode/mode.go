package ccmode

import "fmt"

// Mode is the encoding convention of a CC source.
type Mode int

const (
	Unknown Mode = iota
	Absolute
	Relative1 // center 64, 55-63 down, 65-73 up
	Relative2 // center 0, 122-127 down, 1-6 up
	Relative3 // center 16, 7-15 down, 17-24 up
)

var modeNames = [...]string{"unknown", "absolute", "relative1", "relative2", "relative3"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// Relative reports one of the three relative conventions.
func (m Mode) Relative() bool {
	return m >= Relative1 && m <= Relative3
}

func (m Mode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(modeNames) {
		return nil, fmt.Errorf("invalid cc mode %d", int(m))
	}
	return []byte(modeNames[m]), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	s := string(b)
	for i, name := range modeNames {
		if name == s {
			*m = Mode(i)
			return nil
		}
	}
	// "" and "auto" both mean detect
	if s == "" || s == "auto" {
		*m = Unknown
		return nil
	}
	return fmt.Errorf("unknown cc mode %q", s)
}

// band describes the byte pattern of one relative convention.
type band struct {
	mode     Mode
	center   uint8
	adjacent [2]uint8
}

var (
	rel1 = band{Relative1, 64, [2]uint8{63, 65}}
	rel2 = band{Relative2, 0, [2]uint8{1, 127}}
	rel3 = band{Relative3, 16, [2]uint8{15, 17}}
)

// bandOf classifies a raw byte. ok is false for bytes outside every
// relative band.
func bandOf(val uint8) (band, bool) {
	switch {
	case val >= 55 && val <= 73:
		return rel1, true
	case val <= 6 || (val >= 122 && val <= 127):
		return rel2, true
	case val >= 7 && val <= 24:
		return rel3, true
	}
	return band{}, false
}

func (b band) isAdjacent(val uint8) bool {
	return val == b.adjacent[0] || val == b.adjacent[1]
}

// Delta converts a raw byte to a signed step for a relative mode. The
// center byte yields 0. Non-relative modes yield 0.
func Delta(m Mode, raw uint8) int {
	v := int(raw)
	switch m {
	case Relative1:
		return v - 64
	case Relative2:
		if v >= 64 {
			return v - 128
		}
		return v
	case Relative3:
		return v - 16
	}
	return 0
}
