package midi

// CCEvent is one control change received from a surface
type CCEvent struct {
	Device  string
	Channel uint8 // 0-15
	CC      uint8
	Value   uint8
}

// Controller is the interface for MIDI control surfaces
type Controller interface {
	ID() string

	// Input events from the surface
	Events() <-chan CCEvent

	// Output to the surface (LED rings, motor faders)
	SendCC(channel, cc, value uint8) error

	// Lifecycle
	Close() error
}

// Filter selects which input ports become surfaces. Matching is by
// case-insensitive substring; an empty Include matches every port.
type Filter struct {
	Include []string
	Exclude []string
}
