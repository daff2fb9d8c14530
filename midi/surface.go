package midi

import (
	"fmt"
	"sync"

	"go-zctrl/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Surface is a generic CC controller: knobs, faders and buttons in,
// optional CC feedback out.
type Surface struct {
	id       string
	inPort   drivers.In
	outPort  drivers.Out
	send     func(msg gomidi.Message) error
	stopFunc func()

	events chan CCEvent
	mu     sync.Mutex
	closed bool
}

// NewSurface opens the ports. outPort may be nil for input-only devices.
func NewSurface(id string, inPort drivers.In, outPort drivers.Out) (*Surface, error) {
	s := newSurface(id)
	s.inPort = inPort
	s.outPort = outPort

	// Open output
	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		s.send = send
	}

	// Open input
	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			s.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		s.stopFunc = stop
	}

	return s, nil
}

func newSurface(id string) *Surface {
	return &Surface{
		id:     id,
		events: make(chan CCEvent, 64),
	}
}

func (s *Surface) handle(msg gomidi.Message) {
	var channel, cc, value uint8
	if !msg.GetControlChange(&channel, &cc, &value) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- CCEvent{Device: s.id, Channel: channel, CC: cc, Value: value}:
	default:
		debug.LogEvery(10, "midi", "%s: event queue full, dropping cc%d", s.id, cc)
	}
}

func (s *Surface) ID() string {
	return s.id
}

func (s *Surface) Events() <-chan CCEvent {
	return s.events
}

// SendCC echoes a value to the surface. Input-only surfaces ignore it.
func (s *Surface) SendCC(channel, cc, value uint8) error {
	if s.send == nil {
		return nil
	}
	return s.send(gomidi.ControlChange(channel, cc, value))
}

func (s *Surface) Close() error {
	if s.stopFunc != nil {
		s.stopFunc()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
