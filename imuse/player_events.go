package imuse

import (
	"sort"

	"go-imuse/debug"
	"go-imuse/midi"
)

// maxEventsPerTick bounds the work one timer tick may do for one player
const maxEventsPerTick = 4096

// Controllers with engine-specific meaning
const (
	ccPitchBendFactor = 16
	ccDetune          = 17
	ccPriority        = 18
)

// onTimer advances the player by one timer period
func (p *Player) onTimer(periodUS uint64) {
	p.transitionParameters()
	if !p.active || p.speed == 0 || p.stream == nil {
		return
	}

	p.budget = maxEventsPerTick
	us := periodUS * uint64(p.speed) / 128 * uint64(p.se.tempoFactor) / 100
	p.accum += us * midi.TicksPerBeat

	p.dispatchDue()
	for p.active && p.accum >= uint64(p.tempo) {
		p.accum -= uint64(p.tempo)
		p.tick++
		p.budget--
		p.checkLoop()
		p.dispatchDue()
		if p.budget <= 0 {
			debug.LogEvery(50, "player", "sound %d: tick budget exhausted", p.id)
			p.accum = 0
			break
		}
	}

	if p.active && p.pos >= len(p.events) && !p.loopPending() {
		p.clear()
	}
}

// dispatchDue fires every event at or before the current tick
func (p *Player) dispatchDue() {
	for p.active && p.pos < len(p.events) && p.events[p.pos].Tick <= p.tick {
		if p.budget--; p.budget < 0 {
			return
		}
		ev := p.events[p.pos]
		p.pos++
		p.dispatch(ev)
	}
}

func (p *Player) dispatch(ev midi.Event) {
	switch ev.Kind {
	case midi.KindChannel:
		p.send(ev.Data)
	case midi.KindSysEx:
		p.sysEx(ev.Data)
	case midi.KindTempo:
		p.tempo = ev.Tempo
	case midi.KindMarker:
		debug.Log("player", "sound %d: marker %q", p.id, ev.Text)
	case midi.KindEnd:
		if !p.scanning && !p.loopPending() {
			p.clear()
		}
	}
}

// send handles one channel voice message from the sound data
func (p *Player) send(data []byte) {
	if len(data) == 0 {
		return
	}
	ch := data[0] & 0x0F
	p1 := byteAt(data, 1) & 0x7F
	p2 := byteAt(data, 2) & 0x7F

	switch data[0] >> 4 {
	case 0x8:
		p.noteOff(ch, p1)

	case 0x9:
		if p2 == 0 {
			p.noteOff(ch, p1)
			return
		}
		note := uint8(clamp(int(p1)+p.noteOffset, 0, 127))
		if p.scanning {
			p.activeNotes[note] |= 1 << ch
			return
		}
		if p.isMT32 && !p.se.nativeMT32 {
			p2 = uint8((int(p2)*3>>2 + 32) & 0x7F)
		}
		if part := p.getPart(ch); part != nil {
			part.noteOn(note, p2)
		}

	case 0xB:
		if p1 == midi.CCAllNotesOff {
			if part := p.getActivePart(ch); part != nil {
				part.allNotesOff()
			}
			return
		}
		part := p.getPart(ch)
		if part == nil {
			return
		}
		switch p1 {
		case midi.CCModulation:
			part.modulationWheel(p2)
		case midi.CCVolume:
			part.setVolume(p2)
		case midi.CCPan:
			part.setPan(int8(int(p2) - 0x40))
		case ccPitchBendFactor:
			part.pitchBendFactor(p2)
		case ccDetune:
			part.setDetune(int8(int(p2) - 0x40))
		case ccPriority:
			part.setPri(int8(int(p2) - 0x40))
			p.se.reallocateChannels()
		case midi.CCSustain:
			part.sustain(p2 != 0)
		case midi.CCEffectLevel:
			part.setEffectLevel(p2)
		case midi.CCChorusLevel:
			part.setChorus(p2)
		default:
			debug.LogEvery(100, "player", "sound %d: unhandled controller %d", p.id, p1)
		}

	case 0xC:
		part := p.getPart(ch)
		if part == nil {
			return
		}
		switch {
		case p.isMIDI:
			part.programChange(p1)
		case p1 < maxGlobalInstruments:
			part.loadGlobalInstrument(int(p1))
		}

	case 0xE:
		if part := p.getPart(ch); part != nil {
			part.pitchBend(int16(int(p2)<<7|int(p1)) - 0x2000)
		}
	}
}

func (p *Player) noteOff(ch, note uint8) {
	note = uint8(clamp(int(note)+p.noteOffset, 0, 127))
	if p.scanning {
		p.activeNotes[note] &^= 1 << ch
		return
	}
	if part := p.getActivePart(ch); part != nil {
		part.noteOff(note)
	}
}

func (p *Player) loopEnd() int {
	return (p.loopEndBeat-1)*midi.TicksPerBeat + p.loopEndTick
}

// loopPending reports whether an active loop will still bring the
// cursor back
func (p *Player) loopPending() bool {
	return p.loopCounter != 0 && int(p.tick) < p.loopEnd()
}

// checkLoop jumps back to the loop start once the loop end is reached
func (p *Player) checkLoop() bool {
	if p.loopCounter == 0 || int(p.tick) < p.loopEnd() {
		return false
	}
	if p.loopCounter > 0 {
		p.loopCounter--
	}
	debug.Log("player", "sound %d: loop to %d:%d (%d left)", p.id, p.loopStartBeat, p.loopStartTick, p.loopCounter)
	return p.jump(p.track, p.loopStartBeat, p.loopStartTick)
}

// jump moves the cursor to beat:tick of track. A target past the end of
// the track stops the player.
func (p *Player) jump(track, beat, tick int) bool {
	if !p.active || p.stream == nil {
		return false
	}
	if track < 0 || track >= len(p.stream.Tracks) {
		return false
	}
	if beat < 1 {
		beat = 1
	}
	target := max((beat-1)*midi.TicksPerBeat+tick, 0)

	if track != p.track {
		p.selectTrack(track)
		p.loopCounter = 0
	}

	end := p.stream.EndTick(track)
	if uint32(target) > end {
		debug.Log("player", "sound %d: jump to %d:%d past end of track %d, stopping", p.id, beat, tick, track)
		p.seek(end)
		p.clear()
		return false
	}

	p.eachPart(func(part *Part) { part.allNotesOff() })
	p.turnOffPedals()
	p.seek(uint32(target))
	return true
}

// scan moves to beat:tick replaying everything but notes, then restarts
// the notes that would be sounding there
func (p *Player) scan(track, beat, tick int) int {
	if !p.active || p.stream == nil {
		return -1
	}
	if track < 0 || track >= len(p.stream.Tracks) {
		return -1
	}
	if beat < 1 {
		beat = 1
	}
	target := uint32(max((beat-1)*midi.TicksPerBeat+tick, 0))
	if target > p.stream.EndTick(track) {
		return -1
	}

	p.turnOffParts()
	p.activeNotes = [128]uint16{}
	p.scanning = true

	if track != p.track {
		p.selectTrack(track)
		p.loopCounter = 0
	} else if target < p.tick {
		p.selectTrack(track)
	}

	for p.active && p.pos < len(p.events) && p.events[p.pos].Tick < target {
		ev := p.events[p.pos]
		p.pos++
		p.dispatch(ev)
	}
	p.tick = target
	p.scanning = false

	p.se.reallocateChannels()
	p.playActiveNotes()
	return 0
}

func (p *Player) selectTrack(track int) {
	p.track = track
	p.events = p.stream.Track(track)
	p.pos = 0
	p.tick = 0
	p.tempo = midi.DefaultTempo
}

// seek places the cursor at target without firing events; the tempo in
// effect there is recovered from the skipped events
func (p *Player) seek(target uint32) {
	p.pos = sort.Search(len(p.events), func(i int) bool {
		return p.events[i].Tick >= target
	})
	p.tick = target
	p.tempo = midi.DefaultTempo
	for _, ev := range p.events[:p.pos] {
		if ev.Kind == midi.KindTempo {
			p.tempo = ev.Tempo
		}
	}
}
