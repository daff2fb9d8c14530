package param

// NudgeProfile holds the increments applied per relative step on ranges
// without ticks. Logarithmic ranges interpret them in normalized log space.
type NudgeProfile struct {
	Coarse float64
	Fine   float64
}

// DeriveNudge sizes a profile from the range. A non-zero coarse factor
// overrides the derivation and fine becomes a tenth of it.
func DeriveNudge(r *Range, coarse float64) NudgeProfile {
	if coarse != 0 {
		return NudgeProfile{Coarse: coarse, Fine: 0.1 * coarse}
	}

	if r.IsLogarithmic() {
		return NudgeProfile{Coarse: 0.01, Fine: 0.003 * 0.01}
	}

	if r.IsInteger() || r.IsToggle() {
		return NudgeProfile{Coarse: 1, Fine: 1}
	}

	span := r.Span()
	switch {
	case span <= 1:
		return NudgeProfile{Coarse: 0.01, Fine: 0.001}
	case span <= 10:
		return NudgeProfile{Coarse: 0.1, Fine: 0.01}
	case span <= 100:
		return NudgeProfile{Coarse: 1, Fine: 0.1}
	case span <= 1000:
		return NudgeProfile{Coarse: span / 200, Fine: 0.1}
	default:
		return NudgeProfile{Coarse: span / 200, Fine: 1.0}
	}
}

// Factor picks the coarse or fine increment.
func (p NudgeProfile) Factor(fine bool) float64 {
	if fine {
		return p.Fine
	}
	return p.Coarse
}
