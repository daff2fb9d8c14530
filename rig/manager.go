package rig

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-zctrl/ccmode"
	"go-zctrl/config"
	"go-zctrl/debug"
	"go-zctrl/dispatch"
	"go-zctrl/midi"
	"go-zctrl/osc"
	"go-zctrl/param"
	"go-zctrl/snapshot"
)

// ErrUnknownParam is returned for a symbol with no controller
var ErrUnknownParam = errors.New("unknown parameter")

// ParamInfo is a read-only view of a controller for the TUI and MCP
type ParamInfo struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Value     float64  `json:"value"`
	Label     string   `json:"label"`
	Default   float64  `json:"default"`
	Min       float64  `json:"min"`
	Max       float64  `json:"max"`
	MIDI      uint8    `json:"midi"`
	Labels    []string `json:"labels,omitempty"`
	Toggle    bool     `json:"toggle,omitempty"`
	Log       bool     `json:"logarithmic,omitempty"`
	Readonly  bool     `json:"readonly,omitempty"`
	Momentary bool     `json:"momentary,omitempty"`
	Path      string   `json:"path,omitempty"`
}

// Options carries the collaborators a Manager is wired to. All are
// optional.
type Options struct {
	Devices *midi.DeviceManager
	Store   *snapshot.Store
	Sinks   []dispatch.Sink // engine sinks, in priority order
	Clock   func() time.Time
}

// Manager owns the controllers of one rig and routes surface input,
// engine echoes and user edits to them
type Manager struct {
	cfg      *config.Config
	cfgMu    sync.Mutex // guards cfg.Bindings
	ctrls    []*param.Controller
	bySymbol map[string]*param.Controller
	byPath   map[string]*param.Controller
	delivery map[string]*dispatch.Delivery
	engine   map[dispatch.Key][]*dispatch.Binding // values echoed by a MIDI engine
	registry *dispatch.Registry
	devices  *midi.DeviceManager
	store    *snapshot.Store

	// Notify TUI of updates
	UpdateChan <-chan struct{}
}

// New builds controllers and bindings from the config
func New(cfg *config.Config, opts Options) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		bySymbol: make(map[string]*param.Controller),
		byPath:   make(map[string]*param.Controller),
		delivery: make(map[string]*dispatch.Delivery),
		engine:   make(map[dispatch.Key][]*dispatch.Binding),
		registry: dispatch.NewRegistry(),
		devices:  opts.Devices,
		store:    opts.Store,
	}
	m.UpdateChan = m.registry.Updates()
	if opts.Clock != nil {
		m.registry.SetClock(opts.Clock)
	}

	for _, pc := range cfg.Params {
		c, err := pc.Build()
		if err != nil {
			return nil, err
		}
		d := dispatch.NewDelivery(opts.Sinks...)
		for _, b := range cfg.BindingsFor(pc.Symbol) {
			if b.Echo {
				d.AddFeedback(m.echo(b))
			}
		}
		c.SetNotifier(d)
		c.ClearDirty()
		m.delivery[c.Symbol()] = d

		m.ctrls = append(m.ctrls, c)
		m.bySymbol[c.Symbol()] = c
		if p := c.OSCPath(); p != "" {
			m.byPath[p] = c
		}
		if ch, cc := c.MIDIChan(), c.MIDICC(); ch >= 0 && ch <= 15 && cc >= 0 && cc <= 127 {
			k := dispatch.Key{Chan: uint8(ch), CC: uint8(cc)}
			m.engine[k] = append(m.engine[k], dispatch.NewBinding(c, dispatch.WithMode(ccmode.Absolute)))
		}
	}

	for _, b := range cfg.Bindings {
		var bopts []dispatch.BindingOption
		if b.Mode != ccmode.Unknown {
			bopts = append(bopts, dispatch.WithMode(b.Mode))
		}
		m.registry.Bind(keyOf(b), m.bySymbol[b.Symbol], bopts...)
	}
	m.registry.OnLearn(m.learned)

	debug.Log("rig", "%d parameters, %d bindings, %d sinks", len(m.ctrls), len(cfg.Bindings), len(opts.Sinks))
	return m, nil
}

func keyOf(b config.BindingConfig) dispatch.Key {
	return dispatch.Key{Device: b.Device, Chan: uint8(b.Channel - 1), CC: uint8(b.CC)}
}

// echo mirrors values back to whichever surfaces the binding matches
func (m *Manager) echo(b config.BindingConfig) dispatch.Sink {
	return dispatch.SinkFunc(func(c *param.Controller) error {
		if m.devices == nil {
			return dispatch.ErrNotHandled
		}
		ch, cc := uint8(b.Channel-1), uint8(b.CC)
		if b.Device != "" {
			surface := m.devices.Get(b.Device)
			if surface == nil {
				return dispatch.ErrNotHandled
			}
			return midi.Echo(surface, ch, cc).Send(c)
		}
		var errs []error
		for _, surface := range m.devices.Controllers() {
			if err := midi.Echo(surface, ch, cc).Send(c); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// learned records a binding made by MIDI learn in the config and echoes
// the controller back to the learned surface. It runs under the registry
// lock.
func (m *Manager) learned(k dispatch.Key, c *param.Controller) {
	b := config.BindingConfig{
		Device:  k.Device,
		Channel: int(k.Chan) + 1,
		CC:      int(k.CC),
		Symbol:  c.Symbol(),
		Echo:    true,
	}

	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	for _, x := range m.cfg.Bindings {
		if keyOf(x) == k && x.Symbol == b.Symbol && x.Echo {
			return
		}
	}
	m.cfg.AddBinding(b)
	m.delivery[b.Symbol].AddFeedback(m.echo(b))
	debug.Log("rig", "learned %s on %s", b.Symbol, k)
}

// EngineSinks opens the engine outputs named in the config: OSC first,
// then MIDI out.
func EngineSinks(cfg *config.Config) ([]dispatch.Sink, error) {
	var sinks []dispatch.Sink
	if o := cfg.Engine.OSC; o.Port > 0 {
		host := o.Host
		if host == "" {
			host = "127.0.0.1"
		}
		sinks = append(sinks, osc.NewSink(host, o.Port))
	}
	if name := cfg.Engine.MIDIOut; name != "" {
		s, err := midi.OpenSink(name)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// Run routes surface input until ctx is cancelled (blocking - run in goroutine)
func (m *Manager) Run(ctx context.Context) {
	if m.devices == nil {
		<-ctx.Done()
		return
	}
	go m.devices.Run(ctx)

	events := m.devices.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Type {
			case midi.DeviceConnected:
				debug.Log("rig", "surface connected: %s", ev.ID)
			case midi.DeviceDisconnected:
				debug.Log("rig", "surface disconnected: %s", ev.ID)
			}
			m.registry.Signal()
		case cc := <-m.devices.CCs():
			m.HandleCC(cc)
		}
	}
}

// HandleCC routes one surface CC to its bindings
func (m *Manager) HandleCC(ev midi.CCEvent) int {
	return m.registry.HandleCC(ev.Device, ev.Channel, ev.CC, ev.Value)
}

// ApplyEcho applies a value echoed by the engine on an OSC path without
// announcing it back
func (m *Manager) ApplyEcho(path string, arg any) {
	c, ok := m.byPath[path]
	if !ok {
		return
	}
	m.registry.Exec(func() {
		switch v := arg.(type) {
		case bool:
			if v {
				c.SetValue(c.Range().Max(), false)
			} else {
				c.SetValue(c.Range().Min(), false)
			}
		case float64:
			c.SetValue(v, false)
		}
	})
}

// ApplyMIDIEcho applies a CC echoed by a MIDI engine to the controllers
// addressed by that channel and CC, without announcing it back.
func (m *Manager) ApplyMIDIEcho(ev midi.CCEvent) bool {
	list := m.engine[dispatch.Key{Chan: ev.Channel, CC: ev.CC}]
	if len(list) == 0 {
		return false
	}
	changed := false
	m.registry.Exec(func() {
		for _, b := range list {
			if b.HandleFeedback(ev.Value) {
				changed = true
			}
		}
	})
	return changed
}

// ListenEngineMIDI opens the engine's MIDI port as an input and applies
// what it echoes until the returned controller is closed
func (m *Manager) ListenEngineMIDI(portName string) (midi.Controller, error) {
	in, err := midi.OpenInput(portName)
	if err != nil {
		return nil, err
	}
	go func() {
		for ev := range in.Events() {
			m.ApplyMIDIEcho(ev)
		}
	}()
	return in, nil
}

// ListenEcho starts an OSC listener for every controller path
func (m *Manager) ListenEcho(addr string) (*osc.Listener, error) {
	l := osc.NewListener(m.ApplyEcho)
	for path := range m.byPath {
		if err := l.Handle(path); err != nil {
			return nil, fmt.Errorf("osc handler %s: %w", path, err)
		}
	}
	go func() {
		if err := l.Listen(addr); err != nil {
			debug.Log("osc", "listener stopped: %v", err)
		}
	}()
	return l, nil
}

func (m *Manager) Registry() *dispatch.Registry { return m.registry }
func (m *Manager) Config() *config.Config       { return m.cfg }

// Controllers returns the controllers in config order
func (m *Manager) Controllers() []*param.Controller {
	return append([]*param.Controller(nil), m.ctrls...)
}

func (m *Manager) lookup(symbol string) (*param.Controller, error) {
	c, ok := m.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownParam, symbol)
	}
	return c, nil
}

// with runs fn on a controller under the registry lock
func (m *Manager) with(symbol string, fn func(c *param.Controller) error) (ParamInfo, error) {
	c, err := m.lookup(symbol)
	if err != nil {
		return ParamInfo{}, err
	}
	var info ParamInfo
	m.registry.Exec(func() {
		err = fn(c)
		info = infoOf(c)
	})
	return info, err
}

func (m *Manager) Info(symbol string) (ParamInfo, error) {
	return m.with(symbol, func(*param.Controller) error { return nil })
}

// Params returns every controller, sorted by symbol
func (m *Manager) Params() []ParamInfo {
	var out []ParamInfo
	m.registry.Exec(func() {
		for _, c := range m.ctrls {
			out = append(out, infoOf(c))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (m *Manager) Set(symbol string, v float64) (ParamInfo, error) {
	return m.with(symbol, func(c *param.Controller) error {
		c.Set(v)
		return nil
	})
}

func (m *Manager) SetLabel(symbol, label string) (ParamInfo, error) {
	return m.with(symbol, func(c *param.Controller) error {
		_, err := c.SetLabel(label, true)
		return err
	})
}

func (m *Manager) Nudge(symbol string, steps int, fine bool) (ParamInfo, error) {
	return m.with(symbol, func(c *param.Controller) error {
		c.Nudge(steps, fine)
		return nil
	})
}

func (m *Manager) Toggle(symbol string) (ParamInfo, error) {
	return m.with(symbol, func(c *param.Controller) error {
		if !c.Range().IsToggle() {
			return fmt.Errorf("%s is not a toggle", symbol)
		}
		c.Toggle()
		return nil
	})
}

func (m *Manager) Reset(symbol string) (ParamInfo, error) {
	return m.with(symbol, func(c *param.Controller) error {
		c.Reset()
		return nil
	})
}

// ResetModes re-enters CC mode detection on every binding of symbol
func (m *Manager) ResetModes(symbol string) (int, error) {
	c, err := m.lookup(symbol)
	if err != nil {
		return 0, err
	}
	return m.registry.ResetModes(c), nil
}

// ForceModes sets the CC encoding of every binding of symbol
func (m *Manager) ForceModes(symbol string, mode ccmode.Mode) (int, error) {
	c, err := m.lookup(symbol)
	if err != nil {
		return 0, err
	}
	return m.registry.ForceModes(c, mode), nil
}

// SetReadonly locks or unlocks a parameter against every input
func (m *Manager) SetReadonly(symbol string, locked bool) (ParamInfo, error) {
	return m.with(symbol, func(c *param.Controller) error {
		c.SetReadonly(locked)
		return nil
	})
}

// Unbind removes every CC binding of symbol, live and in the config
func (m *Manager) Unbind(symbol string) (int, error) {
	c, err := m.lookup(symbol)
	if err != nil {
		return 0, err
	}
	n := m.registry.Unbind(nil, c)

	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	kept := m.cfg.Bindings[:0]
	for _, b := range m.cfg.Bindings {
		if b.Symbol != symbol {
			kept = append(kept, b)
		}
	}
	m.cfg.Bindings = kept
	return n, nil
}

// Learn arms MIDI learn for symbol
func (m *Manager) Learn(symbol string, device bool) error {
	c, err := m.lookup(symbol)
	if err != nil {
		return err
	}
	m.registry.Learn(c, device)
	return nil
}

// SyncBindings copies the live bindings, with detected modes, back into
// the config so the next start skips detection
func (m *Manager) SyncBindings() {
	live := m.registry.Bindings()

	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	echo := make(map[string]bool)
	for _, b := range m.cfg.Bindings {
		echo[keyOf(b).String()+"/"+b.Symbol] = b.Echo
	}

	var bindings []config.BindingConfig
	for _, bi := range live {
		bindings = append(bindings, config.BindingConfig{
			Device:  bi.Key.Device,
			Channel: int(bi.Key.Chan) + 1,
			CC:      int(bi.Key.CC),
			Symbol:  bi.Symbol,
			Mode:    bi.Mode,
			Echo:    echo[bi.Key.String()+"/"+bi.Symbol],
		})
	}
	m.cfg.Bindings = bindings
}

// SaveSnapshot stores off-default controller states
func (m *Manager) SaveSnapshot(name string) (snapshot.SaveInfo, error) {
	if m.store == nil {
		return snapshot.SaveInfo{}, errors.New("no snapshot store")
	}
	var states map[string]param.State
	m.registry.Exec(func() {
		states = snapshot.Capture(m.ctrls, false)
	})
	return m.store.Save(name, states)
}

// LoadSnapshot resets every controller, then restores a save (the most
// recent when filename is empty) and announces the changes
func (m *Manager) LoadSnapshot(filename string) (int, error) {
	if m.store == nil {
		return 0, errors.New("no snapshot store")
	}
	states, err := m.store.Load(filename)
	if err != nil {
		return 0, err
	}
	var n int
	m.registry.Exec(func() {
		for _, c := range m.ctrls {
			c.Reset()
		}
		n = snapshot.Apply(m.ctrls, states, true)
	})
	return n, nil
}

// SaveConfig syncs bindings and writes the config file
func (m *Manager) SaveConfig() error {
	m.SyncBindings()
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	return m.cfg.Save()
}

func (m *Manager) DeleteSnapshot(filename string) error {
	if m.store == nil {
		return errors.New("no snapshot store")
	}
	return m.store.Delete(filename)
}

// RenameSnapshot renames a save and returns its new filename
func (m *Manager) RenameSnapshot(filename, name string) (string, error) {
	if m.store == nil {
		return "", errors.New("no snapshot store")
	}
	return m.store.Rename(filename, name)
}

func (m *Manager) Snapshots() ([]snapshot.SaveInfo, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.List()
}

func infoOf(c *param.Controller) ParamInfo {
	r := c.Range()
	return ParamInfo{
		Symbol:    c.Symbol(),
		Name:      c.Name(),
		Value:     c.Value(),
		Label:     c.Label(),
		Default:   c.Default(),
		Min:       r.Min(),
		Max:       r.Max(),
		MIDI:      c.ToMIDI(),
		Labels:    r.Labels(),
		Toggle:    r.IsToggle(),
		Log:       r.IsLogarithmic(),
		Readonly:  c.Readonly(),
		Momentary: c.Momentary(),
		Path:      c.Path(),
	}
}
