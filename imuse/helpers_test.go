package imuse

import (
	"bytes"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/stretchr/testify/require"

	"go-imuse/midi"
)

// ev is one event of a test track, delta in ticks at 480 per beat
type ev struct {
	delta uint32
	msg   []byte
}

func tempo(usPerBeat uint32) []byte {
	return []byte{0xFF, 0x51, 0x03, byte(usPerBeat >> 16), byte(usPerBeat >> 8), byte(usPerBeat)}
}

// imuseSysEx wraps an engine sysex command
func imuseSysEx(code byte, body ...byte) []byte {
	return gomidi.SysEx(append([]byte{sysexIMuse, code}, body...))
}

// nibbles encodes bytes the way engine sysex payloads carry them
func nibbles(b ...byte) []byte {
	out := make([]byte, 0, 2*len(b))
	for _, x := range b {
		out = append(out, x>>4, x&0x0F)
	}
	return out
}

func buildSMF(t *testing.T, tracks ...[]ev) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	for _, events := range tracks {
		var track smf.Track
		for _, e := range events {
			track.Add(e.delta, e.msg)
		}
		track.Close(0)
		require.NoError(t, s.Add(track))
	}
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// resource wraps SMF data in a sound resource with an MDhd header
func resource(tag string, priority, volume, speed byte, data []byte) []byte {
	var out []byte
	out = append(out, tag...)
	out = append(out, 0, 0, 0, 0)
	out = append(out, "MDhd"...)
	out = append(out, 0, 0, 0, 8)
	out = append(out, 0, 0, priority, volume, 0, 0, 0, speed)
	return append(out, data...)
}

// beats builds a track with one note per beat on channel ch, each held
// for half a beat
func beats(ch uint8, program uint8, notes ...uint8) []ev {
	events := []ev{{0, gomidi.ProgramChange(ch, program)}}
	for i, n := range notes {
		delta := uint32(0)
		if i > 0 {
			delta = 240
		}
		events = append(events,
			ev{delta, gomidi.NoteOn(ch, n, 100)},
			ev{240, gomidi.NoteOff(ch, n)},
		)
	}
	return events
}

// longSong holds one note for many beats
func longSong(t *testing.T, ch uint8) []byte {
	return buildSMF(t, []ev{
		{0, gomidi.ProgramChange(ch, 1)},
		{0, gomidi.NoteOn(ch, 60, 100)},
		{480 * 100, gomidi.NoteOff(ch, 60)},
	})
}

func newTestEngine(t *testing.T, bank MapBank, opts ...Option) (*Engine, *midi.Recorder) {
	t.Helper()
	rec := midi.NewRecorder()
	return New(rec, bank, opts...), rec
}

func runTicks(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.OnTimer()
	}
}

// runUntilStopped drives the timer until sound stops or limit ticks pass
func runUntilStopped(e *Engine, sound, limit int) int {
	for i := 0; i < limit; i++ {
		if e.SoundStatus(sound) == 0 {
			return i
		}
		e.OnTimer()
	}
	return limit
}

// noteOns counts note-on messages for note on any channel
func noteOns(rec *midi.Recorder, note uint8) int {
	n := 0
	for _, m := range rec.Messages() {
		if len(m) == 3 && m[0]&0xF0 == 0x90 && m[1] == note && m[2] > 0 {
			n++
		}
	}
	return n
}

func playerStatus(t *testing.T, e *Engine, sound int) PlayerStatus {
	t.Helper()
	for _, p := range e.Status().Players {
		if p.Sound == sound && p.Mode != "free" {
			return p
		}
	}
	t.Fatalf("sound %d not playing", sound)
	return PlayerStatus{}
}
