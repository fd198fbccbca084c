package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestCueInputTranslatesMessages(t *testing.T) {
	in := newCueInput("pads")
	in.handle(gomidi.NoteOn(9, 36, 100))
	in.handle(gomidi.NoteOn(9, 36, 0))
	in.handle(gomidi.NoteOff(2, 40))
	in.handle(gomidi.ControlChange(0, CCVolume, 64))
	in.handle(gomidi.ProgramChange(0, 5))
	require.NoError(t, in.Close())

	var got []Cue
	for c := range in.Events() {
		got = append(got, c)
	}
	assert.Equal(t, []Cue{
		{Kind: CueNoteOn, Channel: 9, Note: 36, Value: 100},
		{Kind: CueNoteOff, Channel: 9, Note: 36},
		{Kind: CueNoteOff, Channel: 2, Note: 40},
		{Kind: CueControl, Channel: 0, Note: CCVolume, Value: 64},
	}, got)
}

func TestCueInputAfterClose(t *testing.T) {
	in := newCueInput("pads")
	require.NoError(t, in.Close())
	require.NoError(t, in.Close())
	assert.NotPanics(t, func() { in.handle(gomidi.NoteOn(0, 60, 1)) })
}

func TestCueInputDropsWhenFull(t *testing.T) {
	in := newCueInput("pads")
	for i := 0; i < cap(in.events)+5; i++ {
		in.handle(gomidi.NoteOn(0, 60, 1))
	}
	assert.Len(t, in.events, cap(in.events))
}
