package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-imuse/debug"
)

// Driver is the MIDI output capability the engine renders through
type Driver interface {
	Send(msg gomidi.Message) error
	Close() error
}

// NumChannels is the number of channels on one MIDI output
const NumChannels = 16

// PercussionChannel is the GM rhythm channel (channel 10, zero-based 9)
const PercussionChannel = 9

// Controller numbers
const (
	CCModulation   = 1
	CCDataEntry    = 6
	CCVolume       = 7
	CCPan          = 10
	CCDataEntryLSB = 38
	CCSustain      = 64
	CCEffectLevel  = 91
	CCChorusLevel  = 93
	CCRPNLSB       = 100
	CCRPNMSB       = 101
	CCAllNotesOff  = 123
)

// Channel sends channel voice messages on one channel of a Driver.
// The zero Channel discards everything.
type Channel struct {
	drv Driver
	num uint8
}

// NewChannel binds channel num (0-15) of drv
func NewChannel(drv Driver, num uint8) Channel {
	return Channel{drv: drv, num: num & 0x0F}
}

func (c Channel) Number() uint8 { return c.num }

func (c Channel) send(msg gomidi.Message) {
	if c.drv == nil {
		return
	}
	if err := c.drv.Send(msg); err != nil {
		debug.LogEvery(100, "midi", "send on ch %d failed: %v", c.num, err)
	}
}

func (c Channel) NoteOn(key, velocity uint8) {
	c.send(gomidi.NoteOn(c.num, key&0x7F, velocity&0x7F))
}

func (c Channel) NoteOff(key uint8) {
	c.send(gomidi.NoteOff(c.num, key&0x7F))
}

func (c Channel) ProgramChange(program uint8) {
	c.send(gomidi.ProgramChange(c.num, program&0x7F))
}

// PitchBend sends a bend in -8192..8191
func (c Channel) PitchBend(value int16) {
	c.send(gomidi.Pitchbend(c.num, value))
}

func (c Channel) ControlChange(controller, value uint8) {
	c.send(gomidi.ControlChange(c.num, controller, value&0x7F))
}

func (c Channel) Volume(v uint8)          { c.ControlChange(CCVolume, v) }
func (c Channel) Pan(v uint8)             { c.ControlChange(CCPan, v) }
func (c Channel) ModulationWheel(v uint8) { c.ControlChange(CCModulation, v) }
func (c Channel) EffectLevel(v uint8)     { c.ControlChange(CCEffectLevel, v) }
func (c Channel) ChorusLevel(v uint8)     { c.ControlChange(CCChorusLevel, v) }
func (c Channel) AllNotesOff()            { c.ControlChange(CCAllNotesOff, 0) }

func (c Channel) Sustain(on bool) {
	var v uint8
	if on {
		v = 127
	}
	c.ControlChange(CCSustain, v)
}

// PitchBendRange sets RPN 0 to the given number of semitones and then
// deselects the RPN
func (c Channel) PitchBendRange(semitones uint8) {
	c.ControlChange(CCRPNMSB, 0)
	c.ControlChange(CCRPNLSB, 0)
	c.ControlChange(CCDataEntry, semitones)
	c.ControlChange(CCDataEntryLSB, 0)
	c.ControlChange(CCRPNMSB, 127)
	c.ControlChange(CCRPNLSB, 127)
}

// SendSysEx sends a system exclusive payload (without F0/F7) on drv
func SendSysEx(drv Driver, payload []byte) {
	if drv == nil {
		return
	}
	if err := drv.Send(gomidi.SysEx(payload)); err != nil {
		debug.LogEvery(100, "midi", "sysex send failed: %v", err)
	}
}

// Silence sends all-notes-off and resets sustain and pitch bend on every channel
func Silence(drv Driver) {
	for ch := uint8(0); ch < NumChannels; ch++ {
		c := NewChannel(drv, ch)
		c.Sustain(false)
		c.AllNotesOff()
		c.PitchBend(0)
	}
}

// GMReset sends the General MIDI System On message
func GMReset(drv Driver) {
	SendSysEx(drv, []byte{0x7E, 0x7F, 0x09, 0x01})
}
