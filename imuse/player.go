package imuse

import (
	"go-imuse/debug"
	"go-imuse/midi"
)

const volChanNone = 0xFFFF

// PlayerMode is the lifecycle state of a player slot
type PlayerMode int

const (
	ModeFree PlayerMode = iota
	ModeActive
	ModePaused // active with speed 0
)

func (m PlayerMode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModePaused:
		return "paused"
	default:
		return "free"
	}
}

// Player plays one sound. Players live in a fixed pool on the Engine and
// are in use while active.
type Player struct {
	se   *Engine
	slot int

	active   bool
	scanning bool
	id       int
	sfx      bool

	priority   uint8
	volume     uint8
	pan        int8
	transpose  int8
	detune     int16
	noteOffset int
	volChan    uint16
	volEff     uint8
	speed      uint8

	isMIDI             bool
	isMT32             bool
	supportsPercussion bool

	parts int // head of the part list, -1 when empty

	loopStartBeat, loopStartTick int
	loopEndBeat, loopEndTick     int
	loopCounter                  int // negative loops forever

	hook   HookDatas
	faders [maxFaders]ParameterFader

	// stream cursor
	stream *midi.Stream
	track  int
	events []midi.Event
	pos    int    // next event to dispatch
	tick   uint32 // current position
	tempo  uint32 // microseconds per beat
	accum  uint64 // elapsed microseconds * TicksPerBeat not yet turned into ticks

	budget      int         // events left this timer tick
	activeNotes [128]uint16 // notes held per channel while scanning
}

func (p *Player) init(se *Engine, slot int) {
	*p = Player{se: se, slot: slot, parts: -1, volChan: volChanNone}
}

func (p *Player) mode() PlayerMode {
	switch {
	case !p.active:
		return ModeFree
	case p.speed == 0:
		return ModePaused
	default:
		return ModeActive
	}
}

// startSound binds the player to sound and starts it from the top
func (p *Player) startSound(sound int, data []byte, stream *midi.Stream) {
	p.isMIDI, p.isMT32, p.supportsPercussion = classifySound(data)
	p.parts = -1
	p.active = true
	p.id = sound

	p.loadStartParameters(data)
	for i := range p.faders {
		p.faders[i] = ParameterFader{}
	}
	p.hook.reset()

	p.startSeqSound(stream, true)
	debug.Log("player", "slot %d: sound %d started (pri %d vol %d speed %d)", p.slot, sound, p.priority, p.volume, p.speed)
}

// loadStartParameters applies the MDhd header, if the sound has one
func (p *Player) loadStartParameters(data []byte) {
	p.priority = 0x80
	p.volume = 0x7F
	p.volChan = volChanNone
	p.pan = 0
	p.transpose = 0
	p.detune = 0
	p.speed = 128

	if hdr := startParameters(data); hdr != nil && hdr[2]|hdr[3]|hdr[7] != 0 {
		p.priority = hdr[2]
		p.volume = min(hdr[3], 127)
		p.pan = int8(hdr[4])
		p.transpose = int8(hdr[5])
		p.detune = int16(int8(hdr[6]))
		p.speed = hdr[7]
	}
	p.volEff = uint8(p.se.playerBaseVolume(p) * (int(p.volume) + 1) >> 7)
}

// startSeqSound parses the sound's event data and rewinds to the start
// of track 0. Without reset the loop state is kept.
func (p *Player) startSeqSound(data []byte, reset bool) error {
	if reset {
		p.loopStartBeat, p.loopStartTick = 1, 0
		p.loopEndBeat, p.loopEndTick = 1, 0
		p.loopCounter = 0
		p.track = 0
	}
	stream, err := p.se.parseSound(data)
	if err != nil {
		return err
	}
	p.stream = stream
	p.selectTrack(p.track)
	return nil
}

// clear stops the player and returns its parts to the pool
func (p *Player) clear() {
	if !p.active {
		return
	}
	debug.Log("player", "slot %d: sound %d stopped", p.slot, p.id)

	id := p.id
	p.uninitParts()
	p.se.fireAllTriggers(id)
	p.se.clearDeferred(id)

	p.active = false
	p.scanning = false
	p.id = 0
	p.noteOffset = 0
	p.sfx = false
	p.stream = nil
	p.events = nil
	p.hook.reset()
	for i := range p.faders {
		p.faders[i] = ParameterFader{}
	}
}

func (p *Player) uninitParts() {
	for p.parts >= 0 {
		part := &p.se.parts[p.parts]
		part.release()
		p.removePart(part)
		part.player = nil
	}
	p.se.reallocateChannels()
}

func (p *Player) eachPart(fn func(part *Part)) {
	for i := p.parts; i >= 0; {
		part := &p.se.parts[i]
		next := part.next
		fn(part)
		i = next
	}
}

func (p *Player) getActivePart(ch uint8) *Part {
	for i := p.parts; i >= 0; i = p.se.parts[i].next {
		if p.se.parts[i].chanNum == ch {
			return &p.se.parts[i]
		}
	}
	return nil
}

// getPart returns the part for a data channel, allocating one if needed
func (p *Player) getPart(ch uint8) *Part {
	if part := p.getActivePart(ch); part != nil {
		return part
	}
	part := p.se.allocatePart(p.priority)
	if part == nil {
		debug.Log("player", "sound %d: no part for chan %d", p.id, ch)
		return nil
	}
	part.chanNum = ch
	part.setup(p)
	p.linkPart(part)
	p.se.reallocateChannels()
	return part
}

func (p *Player) linkPart(part *Part) {
	part.prev = -1
	part.next = p.parts
	if p.parts >= 0 {
		p.se.parts[p.parts].prev = part.slot
	}
	p.parts = part.slot
}

func (p *Player) removePart(part *Part) {
	if part.next >= 0 {
		p.se.parts[part.next].prev = part.prev
	}
	if part.prev >= 0 {
		p.se.parts[part.prev].next = part.next
	} else {
		p.parts = part.next
	}
	part.next, part.prev = -1, -1
}

func (p *Player) setVolume(vol int) int {
	if vol < 0 || vol > 127 {
		return -1
	}
	p.volume = uint8(vol)
	p.volEff = uint8(p.se.playerBaseVolume(p) * (vol + 1) >> 7)
	p.eachPart(func(part *Part) { part.setVolume(part.vol) })
	return 0
}

func (p *Player) setPan(pan int) {
	p.pan = int8(clamp(pan, -64, 63))
	p.eachPart(func(part *Part) { part.setPan(part.pan) })
}

func (p *Player) setDetune(detune int) {
	p.detune = int16(clamp(detune, -128, 127))
	p.eachPart(func(part *Part) { part.setDetune(part.detune) })
}

// setTranspose sets the player transposition in semitones; relative adds
// to the current value, wrapping by octaves into -24..24
func (p *Player) setTranspose(relative, b int) int {
	if b > 24 || b < -24 || relative < 0 || relative > 1 {
		return -1
	}
	if relative == 1 {
		b = transposeClamp(int(p.transpose)+b, -24, 24)
	}
	p.transpose = int8(b)
	p.eachPart(func(part *Part) { part.setTranspose(part.transpose, -transposeLimit, transposeLimit) })
	return 0
}

func (p *Player) setPriority(pri int) {
	p.priority = uint8(clamp(pri, 0, 255))
	p.eachPart(func(part *Part) { part.setPri(part.pri) })
	p.se.reallocateChannels()
}

func (p *Player) setSpeed(speed uint8) {
	p.speed = speed
}

// setLoop repeats start..end count times. The region must span at least
// one full beat.
func (p *Player) setLoop(count, startBeat, startTick, endBeat, endTick int) bool {
	if startBeat+1 >= endBeat {
		return false
	}
	if startBeat == 0 {
		startBeat = 1
	}
	p.loopStartBeat, p.loopStartTick = startBeat, startTick
	p.loopEndBeat, p.loopEndTick = endBeat, endTick
	p.loopCounter = count
	return true
}

func (p *Player) clearLoop() {
	p.loopCounter = 0
}

func (p *Player) setHook(cls, value, ch int) int {
	return p.hook.set(cls, uint8(value), ch)
}

func (p *Player) beatIndex() int {
	return int(p.tick)/midi.TicksPerBeat + 1
}

// musicTimer is the position in half beats
func (p *Player) musicTimer() int {
	return int(p.tick) * 2 / midi.TicksPerBeat
}

// getParam answers the player parameter queries; unknown parameters
// return -1
func (p *Player) getParam(param, ch int) int {
	switch param {
	case 0:
		return int(p.priority)
	case 1:
		return int(p.volume)
	case 2:
		return int(uint8(p.pan))
	case 3:
		return int(p.transpose)
	case 4:
		return int(p.detune)
	case 5:
		return int(p.speed)
	case 6:
		return p.track
	case 7:
		return p.beatIndex()
	case 8:
		return int(p.tick) % midi.TicksPerBeat
	case 9:
		return p.loopCounter
	case 10:
		return p.loopStartBeat
	case 11:
		return p.loopStartTick
	case 12:
		return p.loopEndBeat
	case 13:
		return p.loopEndTick
	case 14, 15, 16, 17:
		part := p.getActivePart(uint8(ch & 0x0F))
		if part == nil {
			return 129
		}
		switch param {
		case 14:
			if part.on {
				return 1
			}
			return 0
		case 15:
			return int(part.vol)
		case 16:
			if part.instrument.Kind == InstrumentProgram {
				return int(part.instrument.Program)
			}
			return 129
		default:
			return int(part.transpose)
		}
	case 18, 19, 20, 21, 22, 23:
		return p.hook.queryParam(param, uint8(ch))
	}
	return -1
}

func (p *Player) turnOffPedals() {
	p.eachPart(func(part *Part) {
		if part.pedal {
			part.sustain(false)
		}
	})
}

// turnOffParts silences every part and frees its channel; the caller
// reallocates
func (p *Player) turnOffParts() {
	p.eachPart(func(part *Part) { part.release() })
}

// playActiveNotes restarts the notes collected by scan
func (p *Player) playActiveNotes() {
	for ch := uint8(0); ch < 16; ch++ {
		part := p.getActivePart(ch)
		if part == nil {
			continue
		}
		mask := uint16(1) << ch
		for note := range p.activeNotes {
			if p.activeNotes[note]&mask != 0 {
				part.noteOn(uint8(note), 80)
			}
		}
	}
}
