package midi

import (
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ChannelState is the last value seen for each controller of one channel
type ChannelState struct {
	Program    int // -1 until a program change is seen
	Volume     uint8
	Pan        uint8
	Modulation uint8
	Effect     uint8
	Chorus     uint8
	Sustain    bool
	Bend       int16
	BendRange  uint8
	Notes      [128]bool

	rpn [2]uint8
}

// Recorder is a Driver that keeps every message it is sent and tracks
// the resulting state of each channel. Used for offline rendering and tests.
type Recorder struct {
	mu       sync.Mutex
	messages []gomidi.Message
	channels [NumChannels]ChannelState
	closed   bool
}

func NewRecorder() *Recorder {
	r := &Recorder{}
	r.resetChannels()
	return r
}

func (r *Recorder) resetChannels() {
	for i := range r.channels {
		r.channels[i] = ChannelState{Program: -1, Volume: 100, Pan: 64, BendRange: 2, rpn: [2]uint8{127, 127}}
	}
}

func (r *Recorder) Send(msg gomidi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := make(gomidi.Message, len(msg))
	copy(cp, msg)
	r.messages = append(r.messages, cp)
	r.apply(cp)
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) apply(msg []byte) {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return
	}
	st := &r.channels[msg[0]&0x0F]
	arg := func(i int) uint8 {
		if i < len(msg) {
			return msg[i] & 0x7F
		}
		return 0
	}

	switch msg[0] & 0xF0 {
	case 0x80:
		st.Notes[arg(1)] = false
	case 0x90:
		st.Notes[arg(1)] = arg(2) != 0
	case 0xB0:
		v := arg(2)
		switch arg(1) {
		case CCModulation:
			st.Modulation = v
		case CCVolume:
			st.Volume = v
		case CCPan:
			st.Pan = v
		case CCSustain:
			st.Sustain = v >= 64
		case CCEffectLevel:
			st.Effect = v
		case CCChorusLevel:
			st.Chorus = v
		case CCRPNMSB:
			st.rpn[0] = v
		case CCRPNLSB:
			st.rpn[1] = v
		case CCDataEntry:
			if st.rpn == [2]uint8{0, 0} {
				st.BendRange = v
			}
		case CCAllNotesOff:
			st.Notes = [128]bool{}
		}
	case 0xC0:
		st.Program = int(arg(1))
	case 0xE0:
		st.Bend = int16(uint16(arg(2))<<7|uint16(arg(1))) - 0x2000
	}
}

// Messages returns a copy of everything sent so far
func (r *Recorder) Messages() []gomidi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]gomidi.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Channel returns the tracked state of channel ch
func (r *Recorder) Channel(ch uint8) ChannelState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[ch&0x0F]
}

// SoundingNotes counts notes currently held on channel ch
func (r *Recorder) SoundingNotes(ch uint8) int {
	st := r.Channel(ch)
	n := 0
	for _, on := range st.Notes {
		if on {
			n++
		}
	}
	return n
}

// Reset forgets recorded messages and channel state
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.resetChannels()
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
