package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-metronome/midi"
	"go-metronome/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	ports := midi.NewSystem()
	defer ports.Close()

	switch os.Args[1] {
	case "list":
		listPorts(ports)
	case "click":
		click(ports, arg(2), argInt(3, 120))
	case "listen":
		listen(ports, arg(2))
	case "timesig":
		sendTimeSignature(ports, arg(2), argInt(3, 4), argInt(4, 4))
	case "poll":
		poll(ports)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                     - List all MIDI ports")
	fmt.Println("  click <out> [bpm]        - Play two bars of 4/4 clicks")
	fmt.Println("  listen <in>              - Print transport messages from an input")
	fmt.Println("  timesig <out> [num den]  - Send a time signature SysEx")
	fmt.Println("  poll                     - Watch for ports appearing and vanishing")
}

func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

func argInt(i, def int) int {
	if n, err := strconv.Atoi(arg(i)); err == nil {
		return n
	}
	return def
}

func listPorts(ports *midi.System) {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	outs, err := ports.Outputs()
	if err != nil {
		fmt.Printf("\n%v\n", err)
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}

	fmt.Println("\n=== MIDI Input Ports ===")
	ins, err := ports.Inputs()
	if err != nil {
		fmt.Printf("\n%v\n", err)
		return
	}
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

// click runs the real engine for two bars
func click(ports *midi.System, out string, bpm int) {
	if out == "" {
		fmt.Println("usage: click <out> [bpm]")
		return
	}
	cfg := sequencer.DefaultConfig()
	cfg.OutputConn = out
	cfg.Tempo = bpm
	cfg.Resolution = 1
	e := sequencer.New(cfg, ports)
	defer e.Close()

	if err := e.Start(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Clicking on %s at %d bpm\n", out, e.Config().Tempo)

	for n := range e.Notifications() {
		switch n.Kind {
		case sequencer.PositionUpdate:
			if n.Bar > 2 {
				e.Stop()
				fmt.Println("Done!")
				return
			}
			fmt.Printf("  %d:%d\n", n.Bar, n.Beat+1)
		case sequencer.DeviceLost:
			fmt.Printf("Error: %v\n", n.Err)
			return
		}
	}
}

func listen(ports *midi.System, in string) {
	if in == "" {
		fmt.Println("usage: listen <in>")
		return
	}
	stop, err := ports.Listen(in, func(msg gomidi.Message) {
		ev := midi.DecodeInput(msg)
		switch ev.Kind {
		case midi.InputStart:
			fmt.Println("start")
		case midi.InputStop:
			fmt.Println("stop")
		case midi.InputContinue:
			fmt.Println("continue")
		case midi.InputTimeSignature:
			fmt.Printf("time signature %d/%d\n", ev.Numerator, ev.Denominator)
		default:
			fmt.Printf("  %s\n", msg)
		}
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	<-ctx.Done()
}

func sendTimeSignature(ports *midi.System, out string, num, den int) {
	if out == "" {
		fmt.Println("usage: timesig <out> [num den]")
		return
	}
	o, err := ports.OpenOutput(out)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}
	defer o.Close()

	fmt.Printf("Sending: time signature %d/%d to %s\n", num, den, o)
	if err := o.Send(midi.TimeSignature(num, den)); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println("Done!")
}

func poll(ports *midi.System) {
	fmt.Println("Polling for device changes every second...")
	fmt.Println("Connect/disconnect a device to test. Ctrl+C to exit.")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	w := midi.NewPortWatcher(ports)
	go w.Run(ctx)

	for ev := range w.Events() {
		what := "appeared"
		if ev.Type == midi.PortVanished {
			what = "vanished"
		}
		dir := "output"
		if ev.Direction == midi.DirInput {
			dir = "input"
		}
		fmt.Printf("[%s] %s %s: %s\n", time.Now().Format("15:04:05"), dir, what, ev.Address)
	}
}
