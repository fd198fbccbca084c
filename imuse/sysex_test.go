package imuse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-imuse/midi"
)

func TestDecodeSysexBytes(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0xAB}, decodeSysexBytes([]byte{1, 2, 0xA, 0xB}))
	assert.Equal(t, []byte{0x34}, decodeSysexBytes([]byte{3, 4, 5}), "odd nibble dropped")
	assert.Empty(t, decodeSysexBytes(nil))
	assert.Equal(t, nibbles(0x80, 0x7F), []byte{8, 0, 7, 0xF})
}

// held keeps a part on ch alive for a long time
func held(ch uint8, head ...ev) []ev {
	return append(head,
		ev{0, gomidi.NoteOn(ch, 60, 100)},
		ev{480 * 100, gomidi.NoteOff(ch, 60)},
	)
}

func TestAllocatePartSysEx(t *testing.T) {
	def := append([]byte{2}, nibbles(0x01, 5, 100, 16, 2, 0, 2, 33)...)
	song := buildSMF(t, held(2, ev{0, imuseSysEx(0, def...)}))
	e, rec := newTestEngine(t, MapBank{1: song})

	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	st := playerStatus(t, e, 1)
	require.Len(t, st.Parts, 1)
	part := st.Parts[0]
	assert.Equal(t, 2, part.Chan)
	assert.True(t, part.On)
	assert.Equal(t, 33, part.Program)
	assert.Equal(t, 100, part.Volume)
	assert.Equal(t, 16, part.Pan)
	assert.Equal(t, 2, part.Transpose)
	assert.Equal(t, 133, part.Priority)

	require.GreaterOrEqual(t, part.Output, 0)
	out := rec.Channel(uint8(part.Output))
	assert.Equal(t, 33, out.Program)
	assert.Equal(t, uint8(100), out.Volume)
	assert.Equal(t, uint8(0x40+16), out.Pan)
	assert.Equal(t, uint8(0), out.Effect, "reverb flag clear")
	assert.Equal(t, uint8(2), out.BendRange)
	assert.Equal(t, int16(8191), out.Bend, "two semitones at a two semitone range")
	assert.True(t, out.Notes[60])
}

func TestPercussionPartPlaysOnRhythmChannel(t *testing.T) {
	def := append([]byte{5}, nibbles(0x01, 0, 90, 0, 0x80, 0, 2, 0)...)
	song := buildSMF(t, held(5, ev{0, imuseSysEx(0, def...)}))
	e, rec := newTestEngine(t, MapBank{1: song})

	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	part := playerStatus(t, e, 1).Parts[0]
	assert.True(t, part.Percussion)
	assert.Equal(t, -1, part.Output)

	rhythm := rec.Channel(midi.PercussionChannel)
	assert.True(t, rhythm.Notes[60])
	assert.Equal(t, uint8(90), rhythm.Volume)

	require.NoError(t, e.StopSound(1))
	assert.False(t, rec.Channel(midi.PercussionChannel).Notes[60])
}

func TestShutdownPartSysEx(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.ProgramChange(3, 4)},
		{0, gomidi.NoteOn(3, 60, 100)},
		{240, imuseSysEx(1, 3)},
		{480 * 10, gomidi.NoteOff(3, 60)},
	})
	e, rec := newTestEngine(t, MapBank{1: song})
	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)
	out := playerStatus(t, e, 1).Parts[0].Output
	require.GreaterOrEqual(t, out, 0)

	runTicks(e, 30)
	assert.Empty(t, playerStatus(t, e, 1).Parts)
	assert.Zero(t, rec.SoundingNotes(uint8(out)))
}

func TestMT32SoundOnGeneralMIDI(t *testing.T) {
	song := buildSMF(t, held(0, ev{0, gomidi.ProgramChange(0, 8)}))
	e, rec := newTestEngine(t, MapBank{1: resource("ROL ", 0, 0, 0, song)})
	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	out := uint8(playerStatus(t, e, 1).Parts[0].Output)
	assert.Equal(t, 16, rec.Channel(out).Program, "MT-32 program mapped to GM")

	var velocity uint8
	for _, m := range rec.Messages() {
		if len(m) == 3 && m[0] == 0x90|out && m[1] == 60 {
			velocity = m[2]
		}
	}
	assert.Equal(t, uint8(107), velocity, "MT-32 velocities are scaled")
}

func TestMT32SoundOnNativeMT32(t *testing.T) {
	song := buildSMF(t, held(0, ev{0, gomidi.ProgramChange(0, 8)}))
	e, rec := newTestEngine(t, MapBank{1: resource("ROL ", 0, 0, 0, song)}, WithNativeMT32(true))
	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	out := uint8(playerStatus(t, e, 1).Parts[0].Output)
	assert.Equal(t, 8, rec.Channel(out).Program)
	assert.Equal(t, uint8(127), rec.Channel(out).Effect)
}

func TestProgramFromNibbles(t *testing.T) {
	song := buildSMF(t, held(1, ev{0, imuseSysEx(96, 1, 0, 0, 2, 9)}))
	e, rec := newTestEngine(t, MapBank{1: song})
	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	part := playerStatus(t, e, 1).Parts[0]
	assert.Equal(t, 41, part.Program)
	assert.Equal(t, 41, rec.Channel(uint8(part.Output)).Program)
}

func TestLoopSysEx(t *testing.T) {
	loop := append([]byte{0}, nibbles(0, 2, 0, 2, 0, 0, 0, 4, 0, 0)...)
	events := append([]ev{{0, imuseSysEx(80, loop...)}}, beats(0, 1, 60, 62, 64, 65)...)
	e, rec := newTestEngine(t, MapBank{1: buildSMF(t, events)})

	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)
	assert.Equal(t, 2, e.DoCommand(PlayerCmd|0, 1, 9))

	runUntilStopped(e, 1, 2000)
	assert.Equal(t, 1, noteOns(rec, 60))
	assert.Equal(t, 3, noteOns(rec, 62))
	assert.Equal(t, 3, noteOns(rec, 64))
	assert.Equal(t, 1, noteOns(rec, 65))
}

func TestPartHooks(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.ProgramChange(0, 1)},
		{0, gomidi.ControlChange(0, 7, 127)},
		{0, gomidi.NoteOn(0, 60, 100)},
		{480, imuseSysEx(51, append([]byte{0}, nibbles(7, 40)...)...)},
		{480, imuseSysEx(50, append([]byte{0}, nibbles(0, 0)...)...)},
		{480 * 10, gomidi.NoteOff(0, 60)},
	})
	e, _ := newTestEngine(t, MapBank{1: song})
	require.NoError(t, e.StartSound(1))
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|12, 1, HookPartVolume, 7, 0))
	assert.Equal(t, 7, e.DoCommand(PlayerCmd|19, 1, 21, 0))

	// volume hook matches and is consumed
	runTicks(e, 60)
	part := playerStatus(t, e, 1).Parts[0]
	assert.Equal(t, 40, part.Volume)
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|19, 1, 21, 0))

	// a hook value of 0 in the data always fires
	runTicks(e, 60)
	assert.False(t, playerStatus(t, e, 1).Parts[0].On)
}
