// Package imuse is an interactive music engine: players sequence MIDI
// sounds onto a shared pool of parts and output channels, and react to
// game commands, markers and hooks while they play.
package imuse

import (
	"context"
	"sync"
	"time"

	"go-imuse/debug"
	"go-imuse/midi"
)

// Pool sizes
const (
	maxPlayers           = 8
	maxParts             = 32
	maxGlobalInstruments = 32
	maxTriggers          = 16
	maxDeferred          = 4
	queueSize            = 64
	numVolumeChannels    = 8
)

// DefaultTimerPeriod is the interval OnTimer is driven at by Run
const DefaultTimerPeriod = 10 * time.Millisecond

// musReductionUS is the period of the speech ducking ramp (60 Hz)
const musReductionUS = 16667

// Dialect selects game specific command and sysex variants
type Dialect int

const (
	DialectScumm Dialect = iota
	DialectSamNMax
)

func (d Dialect) String() string {
	if d == DialectSamNMax {
		return "samnmax"
	}
	return "scumm"
}

// ParseDialect maps a config name to a Dialect
func ParseDialect(s string) (Dialect, bool) {
	switch s {
	case "scumm", "":
		return DialectScumm, true
	case "samnmax":
		return DialectSamNMax, true
	}
	return DialectScumm, false
}

// Engine coordinates all players, parts and output channels. Every
// exported method is safe for concurrent use; the timer and game
// commands serialise on one lock.
type Engine struct {
	mu sync.Mutex

	driver  midi.Driver
	bank    SoundBank
	parsers map[ChunkType]midi.Parser

	timerPeriod time.Duration
	nativeMT32  bool
	dialect     Dialect

	paused         bool
	tempoFactor    int
	playerLimit    int
	recyclePlayers bool

	masterVolume   uint8
	musicVolume    uint8
	musicVolumeEff uint8
	sfxVolume      uint8
	speechActive   bool
	reductionUS    int

	channelVolume    [numVolumeChannels]uint16
	channelVolumeEff [numVolumeChannels]uint16
	volchanTable     [numVolumeChannels]uint16

	triggers     [maxTriggers]ImTrigger
	triggerIndex uint16
	deferred     [maxDeferred]DeferredCommand

	// marker script queue
	queue        CommandQueue
	queueAdding  bool
	queueSound   int
	queueMarker  int
	triggerCount int

	// commands waiting to run at the end of the current tick
	pending CommandQueue

	players           [maxPlayers]Player
	parts             [maxParts]Part
	globalInstruments [maxGlobalInstruments]Instrument
	alloc             allocator
	rhythm            rhythmState

	stamp uint64
}

// rhythmState is what was last sent on the shared percussion channel
type rhythmState struct {
	valid bool
	vol   uint8
	pan   int8
	notes [128]bool
}

// Option configures an Engine
type Option func(*Engine)

// WithChannels sets the melodic output channels the allocator hands out
func WithChannels(channels ...uint8) Option {
	return func(e *Engine) {
		var chs []uint8
		for _, c := range channels {
			if c < midi.NumChannels && c != midi.PercussionChannel {
				chs = append(chs, c)
			}
		}
		e.alloc = newAllocator(chs)
	}
}

// WithNativeMT32 marks the output as a real MT-32
func WithNativeMT32(on bool) Option {
	return func(e *Engine) { e.nativeMT32 = on }
}

func WithDialect(d Dialect) Option {
	return func(e *Engine) { e.dialect = d }
}

func WithTimerPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timerPeriod = d
		}
	}
}

// WithParser registers the parser for a chunk type
func WithParser(kind ChunkType, p midi.Parser) Option {
	return func(e *Engine) { e.parsers[kind] = p }
}

// New creates an engine rendering to drv and playing sounds from bank
func New(drv midi.Driver, bank SoundBank, opts ...Option) *Engine {
	e := &Engine{
		driver:         drv,
		bank:           bank,
		parsers:        map[ChunkType]midi.Parser{ChunkMThd: midi.SMF},
		timerPeriod:    DefaultTimerPeriod,
		tempoFactor:    100,
		playerLimit:    maxPlayers,
		masterVolume:   255,
		musicVolume:    255,
		musicVolumeEff: 255,
		sfxVolume:      255,
	}
	e.alloc = newAllocator(defaultChannels())
	for _, opt := range opts {
		opt(e)
	}
	if e.bank == nil {
		e.bank = MapBank{}
	}

	for i := range e.channelVolume {
		e.channelVolume[i] = 127
		e.volchanTable[i] = 127
	}
	e.recomputeChannelVolumes()
	for i := range e.players {
		e.players[i].init(e, i)
	}
	for i := range e.parts {
		e.parts[i].init(e, i)
	}
	return e
}

func defaultChannels() []uint8 {
	chs := make([]uint8, 0, midi.NumChannels-1)
	for c := uint8(0); c < midi.NumChannels; c++ {
		if c != midi.PercussionChannel {
			chs = append(chs, c)
		}
	}
	return chs
}

// Run drives OnTimer at the timer period until ctx is done
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.timerPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.OnTimer()
		}
	}
}

// OnTimer advances the engine by one timer period
func (e *Engine) OnTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused {
		return
	}
	period := uint64(e.timerPeriod / time.Microsecond)

	e.handleDeferredCommands()
	for i := range e.players {
		if e.players[i].active {
			e.players[i].onTimer(period)
		}
	}
	e.musicVolumeReduction(int(period))
	e.dispatchPending()
}

// SetDriver switches the output. Parts holding channels are re-sent on
// the new driver.
func (e *Engine) SetDriver(drv midi.Driver) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.driver != nil {
		midi.Silence(e.driver)
	}
	e.driver = drv
	e.rhythm = rhythmState{}
	for i := range e.parts {
		if e.parts[i].ch >= 0 {
			e.parts[i].sendAll()
		}
	}
	debug.Log("engine", "driver switched")
}

// Shutdown stops every sound and silences the output
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAllSounds()
	if e.driver != nil {
		midi.Silence(e.driver)
	}
}

func (e *Engine) partPriority(part int) uint8 {
	return e.parts[part].priEff
}

// reallocateChannels hands free or lower-priority channels to waiting
// parts, highest priority first and longest waiting on ties
func (e *Engine) reallocateChannels() {
	for guard := 0; guard < 2*maxParts; guard++ {
		var hi *Part
		for i := range e.parts {
			p := &e.parts[i]
			if !p.wantsChannel() {
				continue
			}
			if hi == nil || p.priEff > hi.priEff || (p.priEff == hi.priEff && p.waitingSince < hi.waitingSince) {
				hi = p
			}
		}
		if hi == nil {
			return
		}

		slot, evicted, ok := e.alloc.allocate(hi.priEff, e.partPriority)
		if !ok {
			return
		}
		if evicted >= 0 {
			e.parts[evicted].suspend()
		}
		e.alloc.assign(slot, hi.slot)
		hi.ch = slot
		hi.sendAll()
	}
}

// allocatePart returns a free part, or takes the lowest priority part at
// or below pri from its player
func (e *Engine) allocatePart(pri uint8) *Part {
	var best *Part
	for i := range e.parts {
		if e.parts[i].player == nil {
			best = &e.parts[i]
			break
		}
	}
	if best == nil {
		for i := range e.parts {
			p := &e.parts[i]
			if p.priEff <= pri && (best == nil || p.priEff < best.priEff) {
				best = p
			}
		}
		if best == nil {
			return nil
		}
		debug.Log("alloc", "part %d taken from sound %d", best.slot, best.player.id)
		best.uninit()
	}
	best.init(e, best.slot)
	e.stamp++
	best.waitingSince = e.stamp
	return best
}

// allocatePlayer returns a free player slot or the lowest priority active
// player below pri, which the caller clears
func (e *Engine) allocatePlayer(pri uint8) *Player {
	var best *Player
	for i := 0; i < e.playerLimit; i++ {
		p := &e.players[i]
		if !p.active {
			return p
		}
		if best == nil || p.priority < best.priority {
			best = p
		}
	}
	if best != nil && (best.priority < pri || e.recyclePlayers) {
		debug.Log("alloc", "player %d (sound %d) evicted for priority %d", best.slot, best.id, pri)
		return best
	}
	return nil
}

func (e *Engine) findActivePlayer(sound int) *Player {
	for i := range e.players {
		if e.players[i].active && e.players[i].id == sound {
			return &e.players[i]
		}
	}
	return nil
}
