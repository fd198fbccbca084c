package imuse

import (
	"go-imuse/debug"
	"go-imuse/midi"
)

// Manufacturer IDs
const (
	sysexRoland = 0x41
	sysexIMuse  = 0x7D
)

// sysEx handles a system exclusive payload (manufacturer byte first)
func (p *Player) sysEx(data []byte) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case sysexIMuse:
		if len(data) < 2 {
			return
		}
		if p.se.dialect == DialectSamNMax {
			p.sysExSamNMax(data[1], data[2:])
		} else {
			p.sysExScumm(data[1], data[2:])
		}

	case sysexRoland:
		if !p.isMIDI && !p.isMT32 {
			return
		}
		part := p.getPart(byteAt(data, 1) & 0x0F)
		if part == nil {
			return
		}
		part.setInstrument(Instrument{Kind: InstrumentRoland, Data: append([]byte(nil), data...)})

	default:
		debug.LogEvery(20, "sysex", "sound %d: unknown manufacturer 0x%02X", p.id, data[0])
	}
}

// sysExScumm dispatches the engine's own sysex commands
func (p *Player) sysExScumm(code byte, msg []byte) {
	switch code {
	case 0: // allocate new part
		p.allocatePartSysEx(byteAt(msg, 0)&0x0F, decodeSysexBytes(tail(msg, 1)))

	case 1: // shut down a part
		if part := p.getActivePart(byteAt(msg, 0) & 0x0F); part != nil {
			part.uninit()
		}

	case 2: // start of song, nothing to do

	case 16: // synth patch for one part
		part := p.getPart(byteAt(msg, 0) & 0x0F)
		if part == nil {
			return
		}
		part.setInstrument(Instrument{Kind: InstrumentCustom, Data: decodeSysexBytes(tail(msg, 2))})

	case 17: // global instrument definition
		slot := int(byteAt(msg, 2))
		if slot < maxGlobalInstruments {
			p.se.globalInstruments[slot] = Instrument{Kind: InstrumentCustom, Data: decodeSysexBytes(tail(msg, 3))}
		}

	case 33: // parameter adjust; no MIDI equivalent
		debug.Log("sysex", "sound %d: parameter adjust on chan %d ignored", p.id, byteAt(msg, 0)&0x0F)

	case 48: // hook: jump
		if p.scanning {
			return
		}
		buf := decodeSysexBytes(tail(msg, 1))
		p.maybeJump(byteAt(buf, 0), be16(buf, 1), be16(buf, 3), be16(buf, 5))

	case 49: // hook: global transpose
		p.maybeSetTranspose(decodeSysexBytes(tail(msg, 1)))

	case 50: // hook: part on/off
		p.maybePartOnOff(byteAt(msg, 0)&0x0F, decodeSysexBytes(tail(msg, 1)))

	case 51: // hook: part volume
		p.maybeSetVolume(byteAt(msg, 0)&0x0F, decodeSysexBytes(tail(msg, 1)))

	case 52: // hook: part program
		p.maybeSetProgram(byteAt(msg, 0)&0x0F, decodeSysexBytes(tail(msg, 1)))

	case 53: // hook: part transpose
		p.maybeSetTransposePart(byteAt(msg, 0)&0x0F, decodeSysexBytes(tail(msg, 1)))

	case 64: // markers
		if p.scanning {
			return
		}
		for _, id := range tail(msg, 1) {
			p.se.handleMarker(p.id, int(id))
		}

	case 80: // loop
		buf := decodeSysexBytes(tail(msg, 1))
		p.setLoop(be16(buf, 0), be16(buf, 2), be16(buf, 4), be16(buf, 6), be16(buf, 8))

	case 81: // end loop
		p.clearLoop()

	case 96: // set instrument from four nibbles
		part := p.getPart(byteAt(msg, 0) & 0x0F)
		if part == nil {
			return
		}
		b := int(byteAt(msg, 1)&0x0F)<<12 | int(byteAt(msg, 2)&0x0F)<<8 | int(byteAt(msg, 3)&0x0F)<<4 | int(byteAt(msg, 4)&0x0F)
		part.programChange(uint8(b))

	default:
		debug.LogEvery(20, "sysex", "sound %d: unknown command %d", p.id, code)
	}
}

// sysExSamNMax overrides the marker and jump commands with their raw,
// undecoded form and falls back to the common set
func (p *Player) sysExSamNMax(code byte, msg []byte) {
	switch code {
	case 0: // trigger marker
		if p.scanning {
			return
		}
		p.se.handleMarker(p.id, int(byteAt(msg, 0)))

	case 1: // maybe jump
		if p.scanning {
			return
		}
		track := int(byteAt(msg, 1)) - 1
		beat := (be16(msg, 2)-1)*4 + int(byteAt(msg, 4))
		tick := int(byteAt(msg, 5))*midi.TicksPerBeat>>2 + int(byteAt(msg, 6))
		p.maybeJump(byteAt(msg, 0), track, beat, tick)

	default:
		p.sysExScumm(code, msg)
	}
}

// allocatePartSysEx sets up a part from a decoded part definition
func (p *Player) allocatePartSysEx(ch uint8, buf []byte) {
	part := p.getPart(ch)
	if part == nil {
		return
	}

	flags := byteAt(buf, 0)
	part.setOnOff(flags&0x01 != 0)
	if flags&0x02 != 0 {
		part.setEffectLevel(127)
	} else {
		part.setEffectLevel(0)
	}
	part.setPri(int8(byteAt(buf, 1)))
	part.setVolume(byteAt(buf, 2) & 0x7F)
	part.setPan(int8(byteAt(buf, 3)))
	part.percussion = p.isMIDI && byteAt(buf, 4)&0x80 != 0
	part.setTranspose(int8(byteAt(buf, 4)), -transposeLimit, transposeLimit)
	part.setDetune(int8(byteAt(buf, 5)))
	part.pitchBendFactor(byteAt(buf, 6))

	if part.percussion {
		// percussion plays on the rhythm channel
		part.off()
		return
	}
	part.programChange(byteAt(buf, 7))
	part.sendAll()
	p.se.reallocateChannels()
}

// decodeSysexBytes packs nibble pairs into bytes
func decodeSysexBytes(src []byte) []byte {
	out := make([]byte, 0, len(src)/2)
	for i := 0; i+1 < len(src); i += 2 {
		out = append(out, src[i]<<4|src[i+1]&0x0F)
	}
	return out
}

func tail(b []byte, n int) []byte {
	if n >= len(b) {
		return nil
	}
	return b[n:]
}

func be16(b []byte, i int) int {
	return int(byteAt(b, i))<<8 | int(byteAt(b, i+1))
}
