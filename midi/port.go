package midi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-imuse/debug"
)

// ErrPortClosed is returned by Send after Close
var ErrPortClosed = errors.New("midi port closed")

// portTimeout bounds port enumeration (CoreMIDI can hang)
const portTimeout = 3 * time.Second

// PortDriver is a Driver writing to a hardware or virtual MIDI output port
type PortDriver struct {
	name string
	out  drivers.Out

	mu   sync.Mutex
	send func(gomidi.Message) error
}

// OutPorts lists output port names, giving up after a timeout
func OutPorts() ([]string, error) {
	ports, err := outPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

func outPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(portTimeout):
		return nil, errors.New("timed out listing MIDI ports")
	}
}

// OpenPort opens the first output port whose name contains name
// (case-insensitive). An empty name opens the first port.
func OpenPort(name string) (*PortDriver, error) {
	ports, err := outPorts()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(name)
	for _, p := range ports {
		if want != "" && !strings.Contains(strings.ToLower(p.String()), want) {
			continue
		}
		send, err := gomidi.SendTo(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open %q: %w", p.String(), err)
		}
		debug.Log("midi", "opened output %q", p.String())
		return &PortDriver{name: p.String(), out: p, send: send}, nil
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", name)
}

// NewPortDriver wraps a send function as a port, for virtual outputs
// that are not registered with the MIDI driver
func NewPortDriver(name string, send func(gomidi.Message) error) *PortDriver {
	return &PortDriver{name: name, send: send}
}

func (p *PortDriver) Name() string { return p.name }

func (p *PortDriver) Send(msg gomidi.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send == nil {
		return ErrPortClosed
	}
	return p.send(msg)
}

// Close silences every channel and closes the port
func (p *PortDriver) Close() error {
	Silence(p)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send == nil {
		return nil
	}
	p.send = nil
	debug.Log("midi", "closed output %q", p.name)
	if p.out == nil {
		return nil
	}
	return p.out.Close()
}
