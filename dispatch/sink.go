package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"go-zctrl/debug"
	"go-zctrl/param"
)

// ErrNotHandled is returned by a sink that does not serve a controller,
// passing it on to the next sink.
var ErrNotHandled = errors.New("not handled")

// Sink delivers an accepted value change outside the engine.
type Sink interface {
	Send(c *param.Controller) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(c *param.Controller) error

func (f SinkFunc) Send(c *param.Controller) error { return f(c) }

// EngineSink wraps an engine's apply call. Controllers without a path are
// passed on.
func EngineSink(apply func(path string, value float64) error) Sink {
	return SinkFunc(func(c *param.Controller) error {
		path := c.Path()
		if path == "" {
			return ErrNotHandled
		}
		return apply(path, c.Value())
	})
}

// DeliveryError reports that no sink accepted a change.
type DeliveryError struct {
	Symbol string
	Errs   []error
}

func (e *DeliveryError) Error() string {
	if len(e.Errs) == 0 {
		return fmt.Sprintf("deliver %s: no sinks", e.Symbol)
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("deliver %s: %s", e.Symbol, strings.Join(msgs, "; "))
}

func (e *DeliveryError) Unwrap() []error { return e.Errs }

// Delivery is the param.Notifier that fans a controller's changes out to
// sinks. Announced changes go to the first sink that accepts them;
// feedback sinks (controller LEDs, motor faders) receive every change.
type Delivery struct {
	sinks    []Sink
	feedback []Sink
}

func NewDelivery(sinks ...Sink) *Delivery {
	return &Delivery{sinks: sinks}
}

// AddSink appends a sink to the priority list.
func (d *Delivery) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// AddFeedback adds a sink that is sent every accepted change.
func (d *Delivery) AddFeedback(s Sink) {
	d.feedback = append(d.feedback, s)
}

// Deliver tries the sinks in order and stops at the first success.
func (d *Delivery) Deliver(c *param.Controller) error {
	var errs []error
	for _, s := range d.sinks {
		err := s.Send(c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotHandled) {
			errs = append(errs, err)
		}
	}
	return &DeliveryError{Symbol: c.Symbol(), Errs: errs}
}

// Notify implements param.Notifier. Failures are logged and never reach
// the caller; the controller value is already updated.
func (d *Delivery) Notify(c *param.Controller, announce bool) {
	if announce && len(d.sinks) > 0 {
		var de *DeliveryError
		if err := d.Deliver(c); errors.As(err, &de) && len(de.Errs) == 0 {
			// every sink passed: the controller has no engine route
			debug.Log("dispatch", "%v", err)
		} else if err != nil {
			debug.Warn("dispatch", "%v", err)
		}
	}
	for _, s := range d.feedback {
		if err := s.Send(c); err != nil && !errors.Is(err, ErrNotHandled) {
			debug.Warn("dispatch", "feedback %s: %v", c.Symbol(), err)
		}
	}
}
