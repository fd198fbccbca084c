package midi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-imuse/debug"
)

// CueInput reads a MIDI input port (a keyboard or pad controller) and
// turns its messages into Cues
type CueInput struct {
	name string
	stop func()

	mu     sync.Mutex
	closed bool
	events chan Cue
}

// InPorts lists input port names, giving up after a timeout
func InPorts() ([]string, error) {
	ports, err := inPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

func inPorts() ([]drivers.In, error) {
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(portTimeout):
		return nil, errors.New("timed out listing MIDI ports")
	}
}

func newCueInput(name string) *CueInput {
	return &CueInput{name: name, events: make(chan Cue, 32)}
}

// OpenCueInput listens on the first input port whose name contains name
// (case-insensitive)
func OpenCueInput(name string) (*CueInput, error) {
	ports, err := inPorts()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(name)
	for _, p := range ports {
		if want != "" && !strings.Contains(strings.ToLower(p.String()), want) {
			continue
		}
		in := newCueInput(p.String())
		stop, err := gomidi.ListenTo(p, func(msg gomidi.Message, timestampms int32) {
			in.handle(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input %q: %w", p.String(), err)
		}
		in.stop = stop
		debug.Log("midi", "listening on %q", p.String())
		return in, nil
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", name)
}

func (in *CueInput) Name() string { return in.name }

// Events returns the cue stream. It is closed by Close.
func (in *CueInput) Events() <-chan Cue {
	return in.events
}

func (in *CueInput) handle(msg gomidi.Message) {
	var ch, key, val uint8
	var cue Cue
	switch {
	case msg.GetNoteOn(&ch, &key, &val):
		cue = Cue{Kind: CueNoteOn, Channel: ch, Note: key, Value: val}
		if val == 0 {
			cue.Kind = CueNoteOff
		}
	case msg.GetNoteOff(&ch, &key, &val):
		cue = Cue{Kind: CueNoteOff, Channel: ch, Note: key, Value: val}
	case msg.GetControlChange(&ch, &key, &val):
		cue = Cue{Kind: CueControl, Channel: ch, Note: key, Value: val}
	default:
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	select {
	case in.events <- cue:
	default:
		debug.Log("midi", "cue dropped: %v %d", cue.Kind, cue.Note)
	}
}

func (in *CueInput) Close() error {
	if in.stop != nil {
		in.stop()
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.closed = true
		close(in.events)
	}
	return nil
}
