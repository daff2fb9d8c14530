package dispatch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go-zctrl/ccmode"
	"go-zctrl/debug"
	"go-zctrl/param"
)

// Key addresses a CC source. An empty Device matches the channel and CC
// on every device.
type Key struct {
	Device string
	Chan   uint8
	CC     uint8
}

func (k Key) String() string {
	dev := k.Device
	if dev == "" {
		dev = "*"
	}
	return fmt.Sprintf("%s ch%d cc%d", dev, k.Chan+1, k.CC)
}

// BindingInfo is a read-only view of one binding for displays.
type BindingInfo struct {
	Key       Key
	Symbol    string
	Name      string
	Value     float64
	Label     string
	MIDI      uint8
	Mode      ccmode.Mode
	Candidate ccmode.Mode
	Streak    int
}

// Registry routes incoming CCs to bindings. HandleCC may be called from
// several device goroutines; bindings are serialized under one lock, so a
// controller bound to more than one source is never mutated concurrently.
type Registry struct {
	mu       sync.Mutex
	bindings map[Key][]*Binding
	now      func() time.Time

	learn       *param.Controller
	learnDevice bool
	onLearn     func(k Key, c *param.Controller)

	updates chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[Key][]*Binding),
		now:      time.Now,
		updates:  make(chan struct{}, 1),
	}
}

// SetClock replaces time.Now for bindings created afterwards.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Updates signals (coalesced) that bindings or values changed.
func (r *Registry) Updates() <-chan struct{} {
	return r.updates
}

// Signal wakes Updates readers without a binding change, e.g. when a
// surface connects.
func (r *Registry) Signal() {
	r.signal()
}

func (r *Registry) signal() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}

// Bind attaches c to the source k and returns the new binding. Binding
// the same controller to the same key twice returns the existing one.
func (r *Registry) Bind(k Key, c *param.Controller, opts ...BindingOption) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bindLocked(k, c, opts...)
	r.signal()
	return b
}

func (r *Registry) bindLocked(k Key, c *param.Controller, opts ...BindingOption) *Binding {
	for _, b := range r.bindings[k] {
		if b.ctrl == c {
			return b
		}
	}
	b := NewBinding(c, append([]BindingOption{WithClock(r.now)}, opts...)...)
	r.bindings[k] = append(r.bindings[k], b)
	debug.Log("dispatch", "bound %s to %s", c.Symbol(), k)
	return b
}

// Unbind removes c from k, or every binding of c when k is nil.
func (r *Registry) Unbind(k *Key, c *param.Controller) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, list := range r.bindings {
		if k != nil && key != *k {
			continue
		}
		kept := list[:0]
		for _, b := range list {
			if b.ctrl == c {
				removed++
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			delete(r.bindings, key)
		} else {
			r.bindings[key] = kept
		}
	}
	if removed > 0 {
		r.signal()
	}
	return removed
}

// Learn arms c: the next CC from any device is bound to it. With device
// false the binding matches that channel and CC on every device.
func (r *Registry) Learn(c *param.Controller, device bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.learn = c
	r.learnDevice = device
	debug.Log("dispatch", "learning %s", c.Symbol())
	r.signal()
}

// OnLearn installs fn to run when a learn completes. fn runs with the
// registry locked and must not call back into it.
func (r *Registry) OnLearn(fn func(k Key, c *param.Controller)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLearn = fn
}

func (r *Registry) CancelLearn() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.learn = nil
	r.signal()
}

// Learning returns the armed controller, or nil.
func (r *Registry) Learning() *param.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.learn
}

// HandleCC routes one CC to the device binding and the channel binding of
// its source. A CC that completes a learn is consumed. It returns the
// number of bindings whose controller changed.
func (r *Registry) HandleCC(device string, ch, cc, val uint8) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.learn != nil {
		k := Key{Chan: ch, CC: cc}
		if r.learnDevice {
			k.Device = device
		}
		r.bindLocked(k, r.learn)
		if r.onLearn != nil {
			r.onLearn(k, r.learn)
		}
		r.learn = nil
		r.signal()
		return 0
	}

	keys := []Key{{device, ch, cc}}
	if device != "" {
		keys = append(keys, Key{Chan: ch, CC: cc})
	}
	changed := 0
	for _, k := range keys {
		for _, b := range r.bindings[k] {
			if b.HandleCC(val) {
				changed++
			}
		}
	}
	if changed > 0 {
		r.signal()
	}
	debug.LogEvery(100, "dispatch", "cc %s ch%d cc%d = %d", device, ch+1, cc, val)
	return changed
}

// Exec runs fn with the registry locked, for callers outside the MIDI
// path (TUI, MCP) that mutate bound controllers.
func (r *Registry) Exec(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
	r.signal()
}

// ResetModes re-enters detection on every binding of c.
func (r *Registry) ResetModes(c *param.Controller) int {
	return r.eachBinding(c, (*Binding).ResetMode)
}

// ForceModes sets the encoding of every binding of c by hand. Unknown
// restarts detection.
func (r *Registry) ForceModes(c *param.Controller, m ccmode.Mode) int {
	return r.eachBinding(c, func(b *Binding) { b.ForceMode(m) })
}

func (r *Registry) eachBinding(c *param.Controller, fn func(b *Binding)) int {
	n := 0
	r.Exec(func() {
		for _, list := range r.bindings {
			for _, b := range list {
				if b.ctrl == c {
					fn(b)
					n++
				}
			}
		}
	})
	return n
}

// Bindings returns a snapshot of every binding sorted by key.
func (r *Registry) Bindings() []BindingInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []BindingInfo
	for k, list := range r.bindings {
		for _, b := range list {
			c := b.ctrl
			out = append(out, BindingInfo{
				Key:       k,
				Symbol:    c.Symbol(),
				Name:      c.Name(),
				Value:     c.Value(),
				Label:     c.Label(),
				MIDI:      c.ToMIDI(),
				Mode:      b.det.Mode(),
				Candidate: b.det.Candidate(),
				Streak:    b.det.Streak(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Device != b.Device {
			return a.Device < b.Device
		}
		if a.Chan != b.Chan {
			return a.Chan < b.Chan
		}
		if a.CC != b.CC {
			return a.CC < b.CC
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
