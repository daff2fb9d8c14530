// Package osc delivers controller values to an OSC engine and accepts
// value echoes coming back from it.
package osc

import (
	"fmt"
	"math"
	"strings"

	gosc "github.com/hypebeast/go-osc/osc"

	"go-zctrl/dispatch"
	"go-zctrl/param"
)

type sender interface {
	Send(packet gosc.Packet) error
}

// Sink sends each controller to its OSC path: a bool for toggles, an
// int32 for integer ranges, a float32 otherwise. Controllers without an OSC path are passed on.
type Sink struct {
	target string
	client sender
}

func NewSink(host string, port int) *Sink {
	return &Sink{
		target: fmt.Sprintf("%s:%d", host, port),
		client: gosc.NewClient(host, port),
	}
}

func (s *Sink) Target() string { return s.target }

func (s *Sink) Send(c *param.Controller) error {
	path := c.OSCPath()
	if !strings.HasPrefix(path, "/") {
		return dispatch.ErrNotHandled
	}
	if err := s.client.Send(Message(c)); err != nil {
		return fmt.Errorf("osc %s%s: %w", s.target, path, err)
	}
	return nil
}

// Message builds the OSC message for a controller's current value.
func Message(c *param.Controller) *gosc.Message {
	switch v := c.ToOSC().(type) {
	case bool:
		return gosc.NewMessage(c.OSCPath(), v)
	case float64:
		if c.Range().IsInteger() {
			return gosc.NewMessage(c.OSCPath(), int32(math.Round(v)))
		}
		return gosc.NewMessage(c.OSCPath(), float32(v))
	}
	return gosc.NewMessage(c.OSCPath())
}
