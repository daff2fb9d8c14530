package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-zctrl/config"
	"go-zctrl/debug"
	"go-zctrl/mcpserver"
	"go-zctrl/midi"
	"go-zctrl/rig"
	"go-zctrl/snapshot"
	"go-zctrl/theme"
	"go-zctrl/tui"
)

const version = "0.1.0"

func main() {
	cmd := "tui"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "tui", "mcp":
		if err := run(cmd); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	case "list":
		listPorts()
	default:
		fmt.Println("usage: go-zctrl [tui|mcp|list]")
		os.Exit(2)
	}
}

func run(mode string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}

	sinks, err := rig.EngineSinks(cfg)
	if err != nil {
		return err
	}

	// Create MIDI device manager (handles hot-plug). The engine's own MIDI
	// port is never treated as a surface.
	deviceMgr := midi.NewDeviceManager(midi.Filter{
		Include: cfg.Inputs.Include,
		Exclude: cfg.Inputs.Exclude,
	})
	if cfg.Engine.MIDIOut != "" {
		deviceMgr.Skip(cfg.Engine.MIDIOut)
	}

	var store *snapshot.Store
	if dir, err := snapshot.DefaultDir(); err == nil {
		store = snapshot.NewStore(dir)
	} else {
		debug.Warn("snapshot", "no snapshot directory: %v", err)
	}

	manager, err := rig.New(cfg, rig.Options{
		Devices: deviceMgr,
		Store:   store,
		Sinks:   sinks,
	})
	if err != nil {
		return err
	}

	if addr := cfg.Engine.OSC.Listen; addr != "" {
		l, err := manager.ListenEcho(addr)
		if err != nil {
			return err
		}
		defer l.Close()
	}

	if name := cfg.Engine.MIDIOut; name != "" {
		// The engine echoes its own parameter changes on the port it
		// receives on
		if in, err := manager.ListenEngineMIDI(name); err == nil {
			defer in.Close()
		} else {
			debug.Warn("midi", "engine echo on %s: %v", name, err)
		}
	}

	// Start routing in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	if mode == "mcp" {
		return mcpserver.New(manager, version).Serve()
	}

	// Warnings would tear the alt screen; they go to the debug log instead
	if !cfg.Debug {
		debug.SetOutput(io.Discard)
	}

	palette := theme.Plasma()
	if cfg.Palette != "" {
		if p, err := theme.LoadGPL(cfg.Palette); err == nil {
			palette = p
		} else {
			debug.Warn("theme", "%v", err)
		}
	}

	m := tui.NewModel(manager, deviceMgr, theme.New(palette))
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func listPorts() {
	ins, outs := midi.ListPorts()
	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
}
