package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-zctrl/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of MIDI control surfaces and
// merges their CC streams.
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	ccs         chan CCEvent
	pollRate    time.Duration
	filter      Filter
	skip        map[string]bool
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(filter Filter) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		ccs:         make(chan CCEvent, 256),
		pollRate:    time.Second,
		filter:      filter,
		skip:        make(map[string]bool),
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// CCs returns the merged CC stream of every connected surface
func (dm *DeviceManager) CCs() <-chan CCEvent {
	return dm.ccs
}

// Skip excludes a port by exact name, e.g. the engine's own output
func (dm *DeviceManager) Skip(name string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.skip[name] = true
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Get returns a connected controller by ID (or nil)
func (dm *DeviceManager) Get(id string) Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.controllers[id]
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		inPorts := gomidi.GetInPorts()
		outPorts := gomidi.GetOutPorts()
		ch <- portsResult{inPorts: inPorts, outPorts: outPorts}
	}()

	// Wait for result or timeout
	var inPorts []drivers.In
	var outPorts []drivers.Out

	select {
	case result := <-ch:
		inPorts = result.inPorts
		outPorts = result.outPorts
	case <-time.After(3 * time.Second):
		debug.Warn("midi", "port scan timed out")
		return
	}

	// Build map of what we see now
	seenIDs := make(map[string]bool)

	for i, inPort := range inPorts {
		id := inPort.String()
		dm.mu.RLock()
		skipped := dm.skip[id]
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()

		if skipped || !dm.filter.Match(id) {
			continue
		}
		seenIDs[id] = true
		if exists {
			continue
		}

		// Find matching output port for feedback
		var outPort drivers.Out
		for j, op := range outPorts {
			if strings.EqualFold(op.String(), id) {
				outPort = outPorts[j]
				break
			}
		}

		s, err := NewSurface(id, inPorts[i], outPort)
		if err != nil {
			debug.Warn("midi", "open %s: %v", id, err)
			continue
		}

		debug.Log("midi", "feedback for %s: %v", id, outPort != nil)
		dm.Attach(s)
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		debug.Log("midi", "disconnected %s", id)
		dm.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
	dm.mu.Unlock()
}

// Attach adds an opened controller, merges its CCs and announces it.
// Controllers found by the port scan are attached the same way.
func (dm *DeviceManager) Attach(c Controller) {
	dm.mu.Lock()
	dm.controllers[c.ID()] = c
	dm.mu.Unlock()
	go dm.forward(c)

	debug.Log("midi", "connected %s", c.ID())
	dm.events <- DeviceEvent{
		Type:       DeviceConnected,
		Controller: c,
		ID:         c.ID(),
	}
}

// forward copies a surface's CCs to the merged stream until it closes
func (dm *DeviceManager) forward(c Controller) {
	for ev := range c.Events() {
		select {
		case dm.ccs <- ev:
		default:
			debug.LogEvery(10, "midi", "cc stream full, dropping %s cc%d", ev.Device, ev.CC)
		}
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

// Match reports whether a port name passes the filter
func (f Filter) Match(name string) bool {
	name = strings.ToLower(name)
	for _, ex := range f.Exclude {
		if strings.Contains(name, strings.ToLower(ex)) {
			return false
		}
	}
	// rtmidi exposes its own loopback ports
	if strings.Contains(name, "through") || strings.Contains(name, "rtmidi") {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, in := range f.Include {
		if strings.Contains(name, strings.ToLower(in)) {
			return true
		}
	}
	return false
}
