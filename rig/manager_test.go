package rig

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go-zctrl/ccmode"
	"go-zctrl/config"
	"go-zctrl/dispatch"
	"go-zctrl/midi"
	"go-zctrl/param"
	"go-zctrl/snapshot"
)

type recordSink struct {
	got map[string]float64
}

func (s *recordSink) Send(c *param.Controller) error {
	s.got[c.Symbol()] = c.Value()
	return nil
}

func newManager(t *testing.T) (*Manager, *recordSink) {
	t.Helper()
	sink := &recordSink{got: map[string]float64{}}
	m, err := New(config.DefaultConfig(), Options{
		Store: snapshot.NewStore(t.TempDir()),
		Sinks: []dispatch.Sink{sink},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, sink
}

func TestNewBuildsFromConfig(t *testing.T) {
	m, sink := newManager(t)
	if len(m.Controllers()) != len(config.DefaultConfig().Params) {
		t.Errorf("controllers = %d", len(m.Controllers()))
	}
	if len(sink.got) != 0 {
		t.Errorf("construction delivered %v", sink.got)
	}
	if n := len(m.Registry().Bindings()); n != len(config.DefaultConfig().Bindings) {
		t.Errorf("bindings = %d", n)
	}
}

func TestHandleCCDelivers(t *testing.T) {
	m, sink := newManager(t)
	// resonance on ch1 cc71; 100 commits absolute
	m.HandleCC(midi.CCEvent{Device: "knobs", Channel: 0, CC: 71, Value: 100})
	m.HandleCC(midi.CCEvent{Device: "knobs", Channel: 0, CC: 71, Value: 127})
	if sink.got["resonance"] != 1 {
		t.Errorf("delivered %v", sink.got)
	}
	info, _ := m.Info("resonance")
	if info.Value != 1 || info.MIDI != 127 {
		t.Errorf("info = %+v", info)
	}
}

func TestEditsByName(t *testing.T) {
	m, sink := newManager(t)

	if info, err := m.SetLabel("wave", "saw"); err != nil || info.Label != "saw" {
		t.Errorf("SetLabel = %+v, %v", info, err)
	}
	var le *param.UnknownLabelError
	if _, err := m.SetLabel("wave", "pulse"); !errors.As(err, &le) {
		t.Errorf("SetLabel(pulse) err = %v", err)
	}

	if info, _ := m.Nudge("octave", 1, false); info.Label != "+1" {
		t.Errorf("Nudge octave = %q", info.Label)
	}
	if info, _ := m.Toggle("chorus"); info.Value != 127 {
		t.Errorf("Toggle chorus = %g", info.Value)
	}
	if _, err := m.Toggle("cutoff"); err == nil {
		t.Error("Toggle on cutoff succeeded")
	}
	if info, _ := m.Set("resonance", 0.75); info.Value != 0.75 || sink.got["resonance"] != 0.75 {
		t.Errorf("Set resonance = %g, sink %v", info.Value, sink.got)
	}
	if info, _ := m.Reset("resonance"); info.Value != 0.2 {
		t.Errorf("Reset resonance = %g", info.Value)
	}

	if _, err := m.Set("nothing", 1); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("unknown symbol err = %v", err)
	}
}

func TestApplyEchoIsQuiet(t *testing.T) {
	m, sink := newManager(t)
	m.ApplyEcho("/filter/resonance", 0.5)
	m.ApplyEcho("/fx/chorus", true)
	m.ApplyEcho("/unknown", 1.0)

	if len(sink.got) != 0 {
		t.Errorf("echo was announced: %v", sink.got)
	}
	if info, _ := m.Info("resonance"); info.Value != 0.5 {
		t.Errorf("resonance = %g", info.Value)
	}
	if info, _ := m.Info("chorus"); info.Value != 127 {
		t.Errorf("chorus = %g", info.Value)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m, _ := newManager(t)
	m.Set("resonance", 0.9)
	m.SetLabel("wave", "square")
	if _, err := m.SaveSnapshot("lead"); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	m.Reset("resonance")
	m.SetLabel("wave", "sine")
	m.Set("cutoff", 500)

	n, err := m.LoadSnapshot("")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if n != 2 {
		t.Errorf("restored %d, want 2", n)
	}
	res, _ := m.Info("resonance")
	wave, _ := m.Info("wave")
	cut, _ := m.Info("cutoff")
	if res.Value != 0.9 || wave.Label != "square" || cut.Value != 2000 {
		t.Errorf("after load resonance=%g wave=%q cutoff=%g", res.Value, wave.Label, cut.Value)
	}

	saves, _ := m.Snapshots()
	if len(saves) != 1 || saves[0].Name != "lead" {
		t.Errorf("snapshots = %+v", saves)
	}
}

func TestLearnAndSyncBindings(t *testing.T) {
	m, _ := newManager(t)
	if err := m.Learn("cutoff", true); err != nil {
		t.Fatal(err)
	}
	m.HandleCC(midi.CCEvent{Device: "BeatStep", Channel: 0, CC: 10, Value: 64})
	for _, raw := range []uint8{65, 64, 65, 64, 65, 64, 65, 64, 65} {
		m.HandleCC(midi.CCEvent{Device: "BeatStep", Channel: 0, CC: 10, Value: raw})
	}

	m.SyncBindings()
	var found *config.BindingConfig
	for i, b := range m.Config().Bindings {
		if b.Device == "BeatStep" && b.CC == 10 {
			found = &m.Config().Bindings[i]
		}
	}
	if found == nil {
		t.Fatalf("learned binding not synced: %+v", m.Config().Bindings)
	}
	if found.Symbol != "cutoff" || found.Channel != 1 || found.Mode != ccmode.Relative1 {
		t.Errorf("synced = %+v", *found)
	}
	if len(m.Config().Bindings) != len(config.DefaultConfig().Bindings)+1 {
		t.Errorf("bindings = %d", len(m.Config().Bindings))
	}
	for _, b := range m.Config().Bindings {
		if b.Symbol == "cutoff" && b.Device == "" && !b.Echo {
			t.Error("echo flag lost on sync")
		}
	}
}

func TestResetModes(t *testing.T) {
	m, _ := newManager(t)
	m.HandleCC(midi.CCEvent{Channel: 0, CC: 74, Value: 100})
	if n, err := m.ResetModes("cutoff"); err != nil || n != 1 {
		t.Errorf("ResetModes = %d, %v", n, err)
	}
	for _, b := range m.Registry().Bindings() {
		if b.Symbol == "cutoff" && b.Mode != ccmode.Unknown {
			t.Errorf("mode after reset = %s", b.Mode)
		}
	}
}

type fakeSurface struct {
	id   string
	mu   sync.Mutex
	sent [][3]uint8
}

func (f *fakeSurface) ID() string { return f.id }

func (f *fakeSurface) Events() <-chan midi.CCEvent {
	ch := make(chan midi.CCEvent)
	close(ch)
	return ch
}

func (f *fakeSurface) Close() error { return nil }

func (f *fakeSurface) SendCC(ch, cc, v uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, [3]uint8{ch, cc, v})
	return nil
}

func (f *fakeSurface) sentTo(ch, cc uint8) []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var vals []uint8
	for _, s := range f.sent {
		if s[0] == ch && s[1] == cc {
			vals = append(vals, s[2])
		}
	}
	return vals
}

func TestApplyMIDIEcho(t *testing.T) {
	m, sink := newManager(t)

	// resonance is addressed on ch1 cc71 of the engine
	if !m.ApplyMIDIEcho(midi.CCEvent{Channel: 0, CC: 71, Value: 127}) {
		t.Fatal("echo did not change resonance")
	}
	if info, _ := m.Info("resonance"); info.Value != 1 {
		t.Errorf("resonance = %g", info.Value)
	}
	if len(sink.got) != 0 {
		t.Errorf("echo was announced: %v", sink.got)
	}
	if m.ApplyMIDIEcho(midi.CCEvent{Channel: 5, CC: 71, Value: 10}) {
		t.Error("echo on an unaddressed channel changed something")
	}
	// the engine is absolute from the first value: 0 would read as
	// relative noise to a detector
	if !m.ApplyMIDIEcho(midi.CCEvent{Channel: 0, CC: 72, Value: 0}) {
		t.Fatal("echo did not change octave")
	}
	if info, _ := m.Info("octave"); info.Label != "-2" {
		t.Errorf("octave = %q", info.Label)
	}
}

func TestLearnEchoesToSurface(t *testing.T) {
	devices := midi.NewDeviceManager(midi.Filter{})
	surface := &fakeSurface{id: "BeatStep"}
	devices.Attach(surface)

	m, err := New(config.DefaultConfig(), Options{Devices: devices})
	if err != nil {
		t.Fatal(err)
	}
	before := len(m.Config().Bindings)

	for i := 0; i < 2; i++ {
		if err := m.Learn("wave", true); err != nil {
			t.Fatal(err)
		}
		m.HandleCC(midi.CCEvent{Device: "BeatStep", Channel: 2, CC: 20, Value: 64})
	}

	if got := len(m.Config().Bindings); got != before+1 {
		t.Fatalf("config bindings = %d, want %d", got, before+1)
	}
	b := m.Config().Bindings[before]
	if b.Device != "BeatStep" || b.Channel != 3 || b.CC != 20 || b.Symbol != "wave" || !b.Echo {
		t.Errorf("learned binding = %+v", b)
	}

	m.SetLabel("wave", "saw")
	vals := surface.sentTo(2, 20)
	if len(vals) != 1 || vals[0] != 85 {
		t.Errorf("echo to learned control = %v", vals)
	}
}

func TestForceModesAndUnbind(t *testing.T) {
	m, _ := newManager(t)

	if n, err := m.ForceModes("resonance", ccmode.Relative1); err != nil || n != 1 {
		t.Fatalf("ForceModes = %d, %v", n, err)
	}
	m.HandleCC(midi.CCEvent{Channel: 0, CC: 71, Value: 65})
	if info, _ := m.Info("resonance"); info.Value <= 0.2 {
		t.Errorf("resonance after relative step = %g", info.Value)
	}
	if _, err := m.ForceModes("nothing", ccmode.Absolute); !errors.Is(err, ErrUnknownParam) {
		t.Errorf("unknown symbol err = %v", err)
	}

	if n, err := m.Unbind("resonance"); err != nil || n != 1 {
		t.Fatalf("Unbind = %d, %v", n, err)
	}
	if len(m.Config().BindingsFor("resonance")) != 0 {
		t.Error("config still binds resonance")
	}
	if m.HandleCC(midi.CCEvent{Channel: 0, CC: 71, Value: 1}) != 0 {
		t.Error("unbound CC still routed")
	}
}

func TestSetReadonly(t *testing.T) {
	m, sink := newManager(t)
	if info, err := m.SetReadonly("cutoff", true); err != nil || !info.Readonly {
		t.Fatalf("SetReadonly = %+v, %v", info, err)
	}
	m.HandleCC(midi.CCEvent{Channel: 0, CC: 74, Value: 100})
	m.HandleCC(midi.CCEvent{Channel: 0, CC: 74, Value: 0})
	if info, _ := m.Info("cutoff"); info.Value != 2000 {
		t.Errorf("locked cutoff moved to %g", info.Value)
	}
	if _, ok := sink.got["cutoff"]; ok {
		t.Error("locked cutoff delivered")
	}

	m.SetReadonly("cutoff", false)
	if info, _ := m.Set("cutoff", 500); info.Value != 500 {
		t.Errorf("unlocked cutoff = %g", info.Value)
	}
}

func TestSnapshotDeleteAndRename(t *testing.T) {
	m, _ := newManager(t)
	info, err := m.SaveSnapshot("bass")
	if err != nil {
		t.Fatal(err)
	}

	renamed, err := m.RenameSnapshot(info.Filename, "sub")
	if err != nil {
		t.Fatalf("RenameSnapshot: %v", err)
	}
	saves, _ := m.Snapshots()
	if len(saves) != 1 || saves[0].Name != "sub" || saves[0].Filename != renamed {
		t.Errorf("snapshots after rename = %+v", saves)
	}

	if err := m.DeleteSnapshot(renamed); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if saves, _ := m.Snapshots(); len(saves) != 0 {
		t.Errorf("snapshots after delete = %+v", saves)
	}
	if err := m.DeleteSnapshot(renamed); err == nil {
		t.Error("deleting a missing snapshot succeeded")
	}
}

func TestClockOption(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		now = now.Add(ccmode.DetectTimeout + time.Millisecond)
		return now
	}
	m, err := New(config.DefaultConfig(), Options{Clock: clock})
	if err != nil {
		t.Fatal(err)
	}
	// every step arrives after the gesture timeout, so none corroborate
	for i := 0; i < 2*ccmode.DetectSteps; i++ {
		m.HandleCC(midi.CCEvent{Channel: 0, CC: 74, Value: 65})
	}
	for _, b := range m.Registry().Bindings() {
		if b.Symbol == "cutoff" && b.Mode != ccmode.Unknown {
			t.Errorf("cutoff mode = %s", b.Mode)
		}
	}
}
