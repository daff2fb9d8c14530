package ccmode

import (
	"time"

	"go-zctrl/debug"
)

const (
	// DetectTimeout is the longest pause between bytes of one gesture.
	DetectTimeout = 200 * time.Millisecond
	// DetectSteps is the number of corroborating bytes needed to commit.
	DetectSteps = 8
)

// zeroState tracks the center byte interleave within a candidate band.
type zeroState int

const (
	zeroUnset zeroState = iota
	zeroSeen
	zeroNotSeen
)

// Detector classifies the encoding of one CC source from its byte stream.
// Once a mode is committed it stays until Reset or Force.
//
// A Detector is owned by one binding and is not safe for concurrent use.
type Detector struct {
	mode      Mode
	candidate band
	zero      zeroState
	streak    int
	lastSeen  time.Time
}

// New returns a detector in the Unknown state.
func New() *Detector {
	return &Detector{}
}

func (d *Detector) Mode() Mode { return d.mode }

// Candidate is the relative mode under evaluation, or Unknown.
func (d *Detector) Candidate() Mode { return d.candidate.mode }

func (d *Detector) Streak() int { return d.streak }

// Reset re-enters detection.
func (d *Detector) Reset() {
	*d = Detector{}
}

// Force commits m without detection. Forcing Unknown is Reset.
func (d *Detector) Force(m Mode) {
	d.Reset()
	d.mode = m
}

// Observe feeds one raw byte seen at now. It returns the current mode and
// whether this byte committed it. Once a mode is known the byte is ignored.
func (d *Detector) Observe(val uint8, now time.Time) (Mode, bool) {
	if d.mode != Unknown {
		return d.mode, false
	}

	if d.lastSeen.IsZero() || now.Sub(d.lastSeen) > DetectTimeout {
		d.streak = 0
	}
	d.lastSeen = now

	b, ok := bandOf(val)
	if !ok {
		d.commit(Absolute, val)
		return d.mode, true
	}

	if b.mode != d.candidate.mode {
		d.candidate = b
		d.streak = 0
		if val == b.center {
			d.zero = zeroSeen
		} else {
			d.zero = zeroUnset
		}
		return Unknown, false
	}

	switch {
	case val == b.center && d.zero != zeroSeen:
		d.zero = zeroSeen
		d.streak++
	case val != b.center && d.zero == zeroSeen:
		d.zero = zeroNotSeen
		d.streak++
	case val != b.center && d.zero == zeroUnset && b.isAdjacent(val):
		d.streak++
	default:
		d.streak = 0
	}

	if d.streak >= DetectSteps {
		d.commit(b.mode, val)
		return d.mode, true
	}
	return Unknown, false
}

func (d *Detector) commit(m Mode, val uint8) {
	d.mode = m
	d.candidate = band{}
	d.streak = 0
	d.zero = zeroUnset
	debug.Log("ccmode", "committed %s on byte %d", m, val)
}
