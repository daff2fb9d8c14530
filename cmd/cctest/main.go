package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-zctrl/ccmode"
	"go-zctrl/widgets"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		monitor(arg(2))
	case "send":
		sendCC(os.Args[2:])
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("CC Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                      - List all MIDI ports")
	fmt.Println("  monitor [name]            - Print CCs and detected encoder mode per control")
	fmt.Println("  send <name> <ch> <cc> <v> - Send one control change")
	fmt.Println("  poll                      - Poll for device changes")
}

func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func findIn(hint string) drivers.In {
	hint = strings.ToLower(hint)
	for _, p := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(p.String()), hint) {
			return p
		}
	}
	return nil
}

func findOut(hint string) drivers.Out {
	hint = strings.ToLower(hint)
	for _, p := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), hint) {
			return p
		}
	}
	return nil
}

// monitor runs one detector per channel/CC and prints how each control
// is classified as it moves
func monitor(hint string) {
	in := findIn(hint)
	if in == nil {
		fmt.Printf("No input port matching %q\n", hint)
		return
	}
	fmt.Printf("Listening on %s. Turn some knobs. Ctrl+C to exit.\n\n", in.String())

	type control struct{ ch, cc uint8 }
	detectors := make(map[control]*ccmode.Detector)
	events := make(chan [3]uint8, 64)

	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		var ch, cc, val uint8
		if msg.GetControlChange(&ch, &cc, &val) {
			events <- [3]uint8{ch, cc, val}
		}
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case ev := <-events:
			key := control{ev[0], ev[1]}
			d, ok := detectors[key]
			if !ok {
				d = ccmode.New()
				detectors[key] = d
			}
			mode, committed := d.Observe(ev[2], time.Now())
			prefix := fmt.Sprintf("ch%-2d cc%-3d %3d", ev[0]+1, ev[1], ev[2])
			switch {
			case committed:
				fmt.Printf("%s  -> %s\n", prefix, mode)
			case mode == ccmode.Unknown:
				fmt.Printf("%s  %s? %s\n", prefix, d.Candidate(), widgets.RenderStreak(d.Streak(), ccmode.DetectSteps))
			case mode.Relative():
				fmt.Printf("%s  %s delta %+d\n", prefix, mode, ccmode.Delta(mode, ev[2]))
			default:
				fmt.Printf("%s  %s\n", prefix, mode)
			}
		case <-interrupt:
			fmt.Println()
			for key, d := range detectors {
				fmt.Printf("ch%d cc%d: %s\n", key.ch+1, key.cc, d.Mode())
			}
			return
		}
	}
}

func sendCC(args []string) {
	if len(args) < 4 {
		usage()
		return
	}
	out := findOut(args[0])
	if out == nil {
		fmt.Printf("No output port matching %q\n", args[0])
		return
	}

	var nums [3]uint8
	for i, s := range args[1:4] {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 127 {
			fmt.Printf("Bad number %q\n", s)
			return
		}
		nums[i] = uint8(n)
	}
	if nums[0] < 1 || nums[0] > 16 {
		fmt.Println("Channel must be 1-16")
		return
	}

	send, err := midi.SendTo(out)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}
	if err := send(midi.ControlChange(nums[0]-1, nums[1], nums[2])); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Sent ch%d cc%d = %d to %s\n", nums[0], nums[1], nums[2], out.String())
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a controller to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()

		// Build current state
		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
