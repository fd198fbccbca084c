package imuse

import (
	"go-imuse/debug"
	"go-imuse/midi"
)

// transposeLimit bounds part transposition on MIDI outputs
const transposeLimit = 12

// Part is one logical instrument voice of a Player. A Part may or may not
// hold an output channel at any moment; without one its notes are dropped.
type Part struct {
	se   *Engine
	slot int

	player     *Player
	next, prev int // sibling links within the player, -1 terminated

	ch           int    // allocator slot, -1 when none
	waitingSince uint64 // when the part lost or last wanted a channel

	chanNum    uint8 // channel number inside the sound data
	on         bool
	percussion bool

	pitchbend       int16
	pitchbendFactor uint8
	transpose       int8
	vol             uint8
	detune          int8
	pan             int8
	pri             int8
	polyphony       uint8
	modwheel        uint8
	pedal           bool
	effectLevel     uint8
	chorus          uint8
	bank            uint8

	instrument           Instrument
	unassignedInstrument bool

	// effective values, derived from the raw values and the player
	transposeEff int8
	volEff       uint8
	detuneEff    int16
	panEff       int8
	priEff       uint8

	voices  [16]uint8
	nvoices int
}

func (p *Part) init(se *Engine, slot int) {
	*p = Part{se: se, slot: slot, next: -1, prev: -1, ch: -1}
}

// setup binds a freshly allocated part to player
func (p *Part) setup(player *Player) {
	p.player = player
	p.percussion = player.isMIDI && p.chanNum == midi.PercussionChannel
	p.on = true
	p.pri = 0
	p.vol = 127
	p.pan = 0
	p.transpose = 0
	p.detune = 0
	p.pitchbendFactor = 2
	p.pitchbend = 0
	p.effectLevel = 64
	if p.se.nativeMT32 {
		p.effectLevel = 127
	}
	p.chorus = 0
	p.modwheel = 0
	p.bank = 0
	p.pedal = false
	p.polyphony = 0
	p.nvoices = 0
	p.instrument = Instrument{}
	p.unassignedInstrument = true
	p.ch = -1
	p.recompute()
}

// recompute derives every effective value without sending anything
func (p *Part) recompute() {
	pl := p.player
	if pl == nil {
		return
	}
	p.volEff = uint8((int(p.vol) + 1) * int(pl.volEff) >> 7)
	p.panEff = int8(clamp(int(p.pan)+int(pl.pan), -64, 63))
	p.detuneEff = int16(clamp(int(p.detune)+int(pl.detune), -128, 127))
	p.priEff = uint8(clamp(int(p.pri)+int(pl.priority), 0, 255))
	if p.transpose == -128 {
		p.transposeEff = 0
	} else {
		p.transposeEff = int8(transposeClamp(int(p.transpose)+int(pl.transpose), -transposeLimit, transposeLimit))
	}
}

// uninit detaches the part from its player and gives up its channel
func (p *Part) uninit() {
	if p.player == nil {
		return
	}
	p.release()
	p.player.removePart(p)
	p.player = nil
	p.se.reallocateChannels()
}

// release silences the part and frees its channel without reassigning it
func (p *Part) release() bool {
	if p.percussion {
		p.percussionNotesOff()
	}
	if p.ch < 0 {
		return false
	}
	ch := p.channel()
	ch.Sustain(false)
	ch.AllNotesOff()
	p.se.alloc.release(p.ch)
	p.ch = -1
	p.nvoices = 0
	return true
}

// off frees the channel and lets a waiting part have it
func (p *Part) off() {
	if p.release() {
		p.se.reallocateChannels()
	}
}

// suspend is off for a part losing its channel to a higher priority one.
// The part keeps its state and waits for a channel.
func (p *Part) suspend() {
	p.release()
	p.se.stamp++
	p.waitingSince = p.se.stamp
	debug.Log("alloc", "part %d (sound %d chan %d) suspended", p.slot, p.player.id, p.chanNum)
}

func (p *Part) channel() midi.Channel {
	if p.ch < 0 {
		return midi.Channel{}
	}
	return midi.NewChannel(p.se.driver, p.se.alloc.slots[p.ch].num)
}

// wantsChannel reports whether the part is waiting for an output channel
func (p *Part) wantsChannel() bool {
	return p.player != nil && p.on && !p.percussion && p.ch < 0
}

// clearToTransmit reports whether the part holds a channel. A part with
// an instrument but no channel asks for one.
func (p *Part) clearToTransmit() bool {
	if p.ch >= 0 {
		return true
	}
	if p.instrument.Valid() {
		p.se.reallocateChannels()
	}
	return false
}

func (p *Part) setOnOff(on bool) {
	if p.on == on {
		return
	}
	p.on = on
	if !on {
		p.off()
	}
	if !p.percussion {
		p.se.reallocateChannels()
	}
}

func (p *Part) setVolume(vol uint8) {
	p.vol = vol
	p.volEff = uint8((int(vol) + 1) * int(p.player.volEff) >> 7)
	if p.ch >= 0 {
		p.channel().Volume(p.volEff)
	}
}

func (p *Part) setPan(pan int8) {
	p.pan = pan
	p.panEff = int8(clamp(int(pan)+int(p.player.pan), -64, 63))
	if p.ch >= 0 {
		p.channel().Pan(uint8(int(p.panEff) + 0x40))
	}
}

func (p *Part) setDetune(detune int8) {
	p.detune = detune
	p.detuneEff = int16(clamp(int(detune)+int(p.player.detune), -128, 127))
	p.sendPitchBend()
}

func (p *Part) setPri(pri int8) {
	p.pri = pri
	p.priEff = uint8(clamp(int(pri)+int(p.player.priority), 0, 255))
}

// setTranspose wraps the effective transposition into lo..hi by octaves.
// -128 means the part ignores transposition.
func (p *Part) setTranspose(transpose int8, lo, hi int) {
	p.transpose = transpose
	if transpose == -128 {
		p.transposeEff = 0
	} else {
		p.transposeEff = int8(transposeClamp(int(transpose)+int(p.player.transpose), lo, hi))
	}
	p.sendPitchBend()
}

func (p *Part) pitchBend(value int16) {
	p.pitchbend = value
	p.sendPitchBend()
}

func (p *Part) pitchBendFactor(value uint8) {
	if value > 12 {
		return
	}
	p.pitchBend(0)
	p.pitchbendFactor = value
	if p.ch >= 0 && !p.se.nativeMT32 {
		p.channel().PitchBendRange(value)
	}
}

func (p *Part) modulationWheel(value uint8) {
	p.modwheel = value
	if p.ch >= 0 {
		p.channel().ModulationWheel(value)
	}
}

func (p *Part) sustain(on bool) {
	p.pedal = on
	if p.ch >= 0 {
		p.channel().Sustain(on)
	}
}

func (p *Part) setEffectLevel(level uint8) {
	p.effectLevel = level
	if p.ch >= 0 {
		p.channel().EffectLevel(level)
	}
}

func (p *Part) setChorus(level uint8) {
	p.chorus = level
	if p.ch >= 0 {
		p.channel().ChorusLevel(level)
	}
}

func (p *Part) setPolyphony(n uint8) {
	p.polyphony = n
}

func (p *Part) allNotesOff() {
	p.nvoices = 0
	if p.ch >= 0 {
		p.channel().AllNotesOff()
	}
}

func (p *Part) programChange(program uint8) {
	p.bank = 0
	p.instrument = programInstrument(program, p.player.isMT32)
	if p.clearToTransmit() {
		p.instrument.send(p.se.driver, p.channel(), p.se.nativeMT32)
	}
}

func (p *Part) setInstrument(inst Instrument) {
	p.instrument = inst
	if p.clearToTransmit() {
		p.instrument.send(p.se.driver, p.channel(), p.se.nativeMT32)
	}
}

func (p *Part) loadGlobalInstrument(slot int) {
	if slot < 0 || slot >= maxGlobalInstruments {
		return
	}
	p.setInstrument(p.se.globalInstruments[slot])
}

func (p *Part) noteOn(note, velocity uint8) {
	if !p.on {
		return
	}
	if p.unassignedInstrument && !p.percussion {
		p.unassignedInstrument = false
		if !p.instrument.Valid() {
			debug.Log("part", "sound %d chan %d plays without an instrument", p.player.id, p.chanNum)
		}
	}

	switch {
	case p.percussion:
		p.percussionNoteOn(note, velocity)
	case p.ch >= 0 && p.instrument.Valid():
		p.trackVoice(note)
		p.channel().NoteOn(note, velocity)
	}
}

func (p *Part) noteOff(note uint8) {
	switch {
	case p.percussion:
		midi.NewChannel(p.se.driver, midi.PercussionChannel).NoteOff(note)
	case p.ch >= 0:
		p.untrackVoice(note)
		p.channel().NoteOff(note)
	}
}

// percussionNoteOn plays on the shared rhythm channel, which is set up
// for whichever percussion part plays next
func (p *Part) percussionNoteOn(note, velocity uint8) {
	ch := midi.NewChannel(p.se.driver, midi.PercussionChannel)
	rhy := &p.se.rhythm
	if !rhy.valid || rhy.vol != p.volEff {
		ch.Volume(p.volEff)
		rhy.vol = p.volEff
	}
	if !rhy.valid || rhy.pan != p.panEff {
		ch.Pan(uint8(int(p.panEff) + 0x40))
		rhy.pan = p.panEff
	}
	rhy.valid = true
	rhy.notes[note&0x7F] = true
	ch.NoteOn(note, velocity)
}

func (p *Part) percussionNotesOff() {
	if !p.se.rhythm.valid {
		return
	}
	ch := midi.NewChannel(p.se.driver, midi.PercussionChannel)
	for n, on := range p.se.rhythm.notes {
		if on {
			ch.NoteOff(uint8(n))
		}
	}
	p.se.rhythm.notes = [128]bool{}
}

// trackVoice records a sounding note when a polyphony limit is set and
// steals the oldest note once the limit is reached
func (p *Part) trackVoice(note uint8) {
	limit := int(p.polyphony)
	if limit == 0 || limit > len(p.voices) {
		return
	}
	if p.nvoices >= limit {
		p.channel().NoteOff(p.voices[0])
		copy(p.voices[:], p.voices[1:p.nvoices])
		p.nvoices--
	}
	p.voices[p.nvoices] = note
	p.nvoices++
}

func (p *Part) untrackVoice(note uint8) {
	for i := 0; i < p.nvoices; i++ {
		if p.voices[i] == note {
			copy(p.voices[i:], p.voices[i+1:p.nvoices])
			p.nvoices--
			return
		}
	}
}

// sendPitchBend sends the bend combined with detune and transposition
func (p *Part) sendPitchBend() {
	if p.ch < 0 {
		return
	}
	bend := int(p.pitchbend)
	rng := int(p.pitchbendFactor)
	if p.se.nativeMT32 {
		bend = bend * int(p.pitchbendFactor) / 12
		rng = 12
	}
	transpose := 0
	if rng > 0 {
		transpose = int(p.transposeEff) * 8192 / rng
	}
	p.channel().PitchBend(int16(clamp(bend+int(p.detuneEff)*64/12+transpose, -8192, 8191)))
}

// sendAll pushes the whole part state to its channel
func (p *Part) sendAll() {
	if !p.clearToTransmit() {
		return
	}
	ch := p.channel()
	if !p.se.nativeMT32 {
		ch.PitchBendRange(p.pitchbendFactor)
	}
	p.sendPitchBend()
	ch.Volume(p.volEff)
	ch.Sustain(p.pedal)
	ch.ModulationWheel(p.modwheel)
	ch.Pan(uint8(int(p.panEff) + 0x40))
	if p.instrument.Valid() {
		p.instrument.send(p.se.driver, ch, p.se.nativeMT32)
	}
	ch.EffectLevel(p.effectLevel)
	ch.ChorusLevel(p.chorus)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// transposeClamp moves a into lo..hi by whole octaves
func transposeClamp(a, lo, hi int) int {
	if lo > a {
		a += (lo - a + 11) / 12 * 12
	}
	if hi < a {
		a -= (a - hi + 11) / 12 * 12
	}
	return a
}
