package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-imuse/debug"
)

// DeviceEvent is emitted when the watched output port appears or goes away
type DeviceEvent struct {
	Type   DeviceEventType
	Driver *PortDriver
	Port   string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug of the synth output port
type DeviceManager struct {
	portName string
	current  *PortDriver
	mu       sync.RWMutex
	events   chan DeviceEvent
	pollRate time.Duration

	// overridable for tests
	listPorts func() ([]string, error)
	open      func(name string) (*PortDriver, error)
}

// NewDeviceManager watches for an output port whose name contains portName
func NewDeviceManager(portName string) *DeviceManager {
	return &DeviceManager{
		portName:  portName,
		events:    make(chan DeviceEvent, 16),
		pollRate:  time.Second,
		listPorts: OutPorts,
		open:      OpenPort,
	}
}

// Events returns a channel of connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Current returns the connected output, or nil
func (dm *DeviceManager) Current() *PortDriver {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.current
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

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
	names, err := dm.listPorts()
	if err != nil {
		// port enumeration hung; try again next poll
		debug.Log("midi", "port scan: %v", err)
		return
	}

	want := strings.ToLower(dm.portName)
	var found string
	for _, n := range names {
		if want == "" || strings.Contains(strings.ToLower(n), want) {
			found = n
			break
		}
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	switch {
	case dm.current == nil && found != "":
		drv, err := dm.open(found)
		if err != nil {
			debug.Log("midi", "open %q: %v", found, err)
			return
		}
		dm.current = drv
		dm.emit(DeviceEvent{Type: DeviceConnected, Driver: drv, Port: found})

	case dm.current != nil && found != dm.current.Name():
		old := dm.current
		dm.current = nil
		old.Close()
		dm.emit(DeviceEvent{Type: DeviceDisconnected, Port: old.Name()})
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
		debug.Log("midi", "device event dropped: %v %s", ev.Type, ev.Port)
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.current != nil {
		dm.current.Close()
		dm.current = nil
	}
}
