package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go-imuse/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	port := ""
	if len(os.Args) > 2 {
		port = os.Args[2]
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "poll":
		pollDevices()
	case "tone":
		playTone(port)
	case "reset":
		resetPort(port)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List all MIDI ports")
	fmt.Println("  poll          - Poll for device changes")
	fmt.Println("  tone [port]   - Play a scale on every melodic channel")
	fmt.Println("  reset [port]  - Send GM System On and silence all channels")
}

func listPorts() {
	fmt.Println("=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	outs, err := midi.OutPorts()
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}

	ins, err := midi.InPorts()
	if err != nil {
		fmt.Println("input ports:", err)
		return
	}
	fmt.Println("\n=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

func open(port string) *midi.PortDriver {
	drv, err := midi.OpenPort(port)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Opened %s\n", drv.Name())
	return drv
}

func playTone(port string) {
	drv := open(port)
	defer drv.Close()

	scale := []uint8{60, 62, 64, 65, 67, 69, 71, 72}
	for ch := uint8(0); ch < midi.NumChannels; ch++ {
		if ch == midi.PercussionChannel {
			continue
		}
		c := midi.NewChannel(drv, ch)
		c.ProgramChange(0)
		c.Volume(100)
		fmt.Printf("channel %d\n", ch+1)
		for _, note := range scale {
			c.NoteOn(note, 100)
			time.Sleep(120 * time.Millisecond)
			c.NoteOff(note)
		}
	}

	fmt.Println("rhythm channel")
	drums := midi.NewChannel(drv, midi.PercussionChannel)
	for _, note := range []uint8{36, 38, 42, 46, 49} {
		drums.NoteOn(note, 110)
		time.Sleep(200 * time.Millisecond)
		drums.NoteOff(note)
	}
	fmt.Println("Done!")
}

func resetPort(port string) {
	drv := open(port)
	defer drv.Close()

	midi.GMReset(drv)
	midi.Silence(drv)
	fmt.Println("Sent GM reset")
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a synth to test. Ctrl+C to exit.")

	var lastIn, lastOut []string

	for {
		ins, inErr := midi.InPorts()
		outs, outErr := midi.OutPorts()
		if inErr != nil || outErr != nil {
			fmt.Printf("[%s] port scan timed out\n", time.Now().Format("15:04:05"))
			time.Sleep(2 * time.Second)
			continue
		}

		if !slices.Equal(ins, lastIn) || !slices.Equal(outs, lastOut) {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", ins)
			fmt.Printf("  Outputs: %v\n", outs)

			for _, name := range outs {
				lower := strings.ToLower(name)
				if strings.Contains(lower, "mt-32") || strings.Contains(lower, "mt32") {
					fmt.Println("  -> MT-32 detected (set synthOutput.nativeMT32)")
				}
			}

			lastIn = ins
			lastOut = outs
		}

		time.Sleep(2 * time.Second)
	}
}
