package midi

import (
	"fmt"

	"go-zctrl/dispatch"
	"go-zctrl/param"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Sink sends controller values to an engine as CCs on each controller's
// own channel and CC number. Controllers without a MIDI address are
// passed on.
type Sink struct {
	name string
	send func(msg gomidi.Message) error
}

// NewSink wraps a send function (from gomidi.SendTo).
func NewSink(name string, send func(msg gomidi.Message) error) *Sink {
	return &Sink{name: name, send: send}
}

// OpenSink finds an output port by name and opens it.
func OpenSink(portName string) (*Sink, error) {
	out, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", portName, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", portName, err)
	}
	return NewSink(out.String(), send), nil
}

// OpenInput opens an input port by name as an input-only surface, e.g.
// the engine's own port echoing the values it applied.
func OpenInput(portName string) (*Surface, error) {
	in, err := gomidi.FindInPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find input %q: %w", portName, err)
	}
	return NewSurface(in.String(), in, nil)
}

func (s *Sink) Name() string { return s.name }

func (s *Sink) Send(c *param.Controller) error {
	ch, cc := c.MIDIChan(), c.MIDICC()
	if ch < 0 || ch > 15 || cc < 0 || cc > 127 {
		return dispatch.ErrNotHandled
	}
	if err := s.send(gomidi.ControlChange(uint8(ch), uint8(cc), c.ToMIDI())); err != nil {
		return fmt.Errorf("midi out %s: %w", s.name, err)
	}
	return nil
}

// Echo returns a feedback sink that mirrors a controller's value back to
// the surface CC it is bound to, for LED rings and motor faders.
func Echo(c Controller, channel, cc uint8) dispatch.Sink {
	return dispatch.SinkFunc(func(p *param.Controller) error {
		return c.SendCC(channel, cc, p.ToMIDI())
	})
}

// ListPorts returns the names of all MIDI input and output ports.
func ListPorts() (ins, outs []string) {
	for _, p := range gomidi.GetInPorts() {
		ins = append(ins, p.String())
	}
	for _, p := range gomidi.GetOutPorts() {
		outs = append(outs, p.String())
	}
	return ins, outs
}
