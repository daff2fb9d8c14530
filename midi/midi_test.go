package midi

import (
	"errors"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-zctrl/dispatch"
	"go-zctrl/param"
)

func TestSurfaceForwardsControlChanges(t *testing.T) {
	s := newSurface("knobs")
	s.handle(gomidi.NoteOn(0, 60, 100))
	s.handle(gomidi.ControlChange(3, 74, 65))

	select {
	case ev := <-s.Events():
		want := CCEvent{Device: "knobs", Channel: 3, CC: 74, Value: 65}
		if ev != want {
			t.Errorf("event = %+v, want %+v", ev, want)
		}
	default:
		t.Fatal("no event")
	}
	select {
	case ev := <-s.Events():
		t.Errorf("unexpected event %+v", ev)
	default:
	}

	s.Close()
	s.handle(gomidi.ControlChange(0, 1, 1))
	if _, ok := <-s.Events(); ok {
		t.Error("events channel still open after Close")
	}
}

func TestSinkSendsControllerCC(t *testing.T) {
	var sent []gomidi.Message
	sink := NewSink("engine", func(msg gomidi.Message) error {
		sent = append(sent, msg)
		return nil
	})

	c, err := param.NewController("cutoff", param.MustRange(param.Bounds{Max: param.F(10), Kind: param.Real}),
		param.WithMIDI(2, 74), param.WithDefault(5))
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Send(c); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("sent %d messages", len(sent))
	}
	var ch, cc, val uint8
	if !sent[0].GetControlChange(&ch, &cc, &val) {
		t.Fatalf("sent %v, want control change", sent[0])
	}
	if ch != 2 || cc != 74 || val != 64 {
		t.Errorf("cc = ch%d cc%d val%d, want ch2 cc74 val64", ch, cc, val)
	}

	bare, _ := param.NewController("x", param.MustRange(param.Bounds{}))
	if err := sink.Send(bare); !errors.Is(err, dispatch.ErrNotHandled) {
		t.Errorf("unaddressed Send err = %v", err)
	}
}

func TestSinkWrapsSendError(t *testing.T) {
	down := errors.New("gone")
	sink := NewSink("engine", func(gomidi.Message) error { return down })
	c, _ := param.NewController("x", param.MustRange(param.Bounds{}), param.WithMIDI(0, 1))
	if err := sink.Send(c); !errors.Is(err, down) {
		t.Errorf("err = %v, want wrapped %v", err, down)
	}
}

type fakeSurface struct {
	sent [][3]uint8
}

func (f *fakeSurface) ID() string             { return "fake" }
func (f *fakeSurface) Events() <-chan CCEvent { return nil }
func (f *fakeSurface) Close() error           { return nil }
func (f *fakeSurface) SendCC(ch, cc, v uint8) error {
	f.sent = append(f.sent, [3]uint8{ch, cc, v})
	return nil
}

func TestEcho(t *testing.T) {
	f := &fakeSurface{}
	c, _ := param.NewController("x", param.MustRange(param.Bounds{}), param.WithDefault(99))
	if err := Echo(f, 1, 20).Send(c); err != nil {
		t.Fatal(err)
	}
	if len(f.sent) != 1 || f.sent[0] != [3]uint8{1, 20, 99} {
		t.Errorf("echo = %v", f.sent)
	}
}

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		filter Filter
		name   string
		want   bool
	}{
		{Filter{}, "Arturia BeatStep", true},
		{Filter{}, "Midi Through Port-0", false},
		{Filter{Include: []string{"beatstep"}}, "Arturia BeatStep", true},
		{Filter{Include: []string{"beatstep"}}, "nanoKONTROL2", false},
		{Filter{Exclude: []string{"synth"}}, "FLUID Synth", false},
		{Filter{Include: []string{"a"}, Exclude: []string{"arturia"}}, "Arturia BeatStep", false},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(tt.name); got != tt.want {
			t.Errorf("%+v.Match(%q) = %v, want %v", tt.filter, tt.name, got, tt.want)
		}
	}
}
