package imuse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestStartSoundPlaysToEnd(t *testing.T) {
	bank := MapBank{1: buildSMF(t, beats(0, 5, 60, 62))}
	e, rec := newTestEngine(t, bank)

	require.NoError(t, e.StartSound(1))
	assert.Equal(t, 1, e.SoundStatus(1))

	runTicks(e, 1)
	assert.Equal(t, 1, noteOns(rec, 60))
	assert.Equal(t, 5, rec.Channel(0).Program)

	ticks := runUntilStopped(e, 1, 500)
	assert.Less(t, ticks, 500)
	assert.Equal(t, 1, noteOns(rec, 62))
	assert.Zero(t, rec.SoundingNotes(0))
	for _, c := range e.Status().Channels {
		assert.Equal(t, -1, c.Part, "channel %d still held", c.Channel)
	}
}

func TestStartSoundErrors(t *testing.T) {
	bank := MapBank{2: []byte("ADL junk that has no midi in it at all......................")}
	e, _ := newTestEngine(t, bank)

	err := e.StartSound(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSound))
	assert.Equal(t, ftag.NotFound, ftag.Get(err))

	err = e.StartSound(2)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	assert.ErrorIs(t, e.StopSound(1), ErrNotPlaying)
}

func TestPlayerEvictionByPriority(t *testing.T) {
	bank := MapBank{
		1: resource("GMD ", 10, 127, 128, longSong(t, 0)),
		2: resource("GMD ", 20, 127, 128, longSong(t, 1)),
		3: resource("GMD ", 15, 127, 128, longSong(t, 2)),
		4: resource("GMD ", 5, 127, 128, longSong(t, 3)),
	}
	e, _ := newTestEngine(t, bank)
	require.NoError(t, e.SetProperty(PropLimitPlayers, 2))

	require.NoError(t, e.StartSound(1))
	require.NoError(t, e.StartSound(2))
	require.NoError(t, e.StartSound(3))
	assert.Equal(t, 0, e.SoundStatus(1), "lowest priority sound evicted")
	assert.Equal(t, 1, e.SoundStatus(2))
	assert.Equal(t, 1, e.SoundStatus(3))

	err := e.StartSound(4)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPlayer)
	assert.Equal(t, ResourceExhausted, ftag.Get(err))

	require.NoError(t, e.SetProperty(PropRecyclePlayers, 1))
	require.NoError(t, e.StartSound(4))
	assert.Equal(t, 0, e.SoundStatus(3))
}

func TestUnparsableSoundEvictsNothing(t *testing.T) {
	bank := MapBank{99: resource("GMD ", 200, 127, 128, []byte("MThd\x00\x00"))}
	for id := 1; id <= 8; id++ {
		bank[id] = resource("GMD ", 10, 127, 128, longSong(t, uint8(id%8)))
	}
	e, _ := newTestEngine(t, bank)
	for id := 1; id <= 8; id++ {
		require.NoError(t, e.StartSound(id))
	}

	err := e.StartSound(99)
	require.Error(t, err)
	assert.Equal(t, ftag.InvalidArgument, ftag.Get(err))
	assert.Equal(t, 0, e.SoundStatus(99))
	for id := 1; id <= 8; id++ {
		assert.Equal(t, 1, e.SoundStatus(id), "sound %d still playing", id)
	}
}

func TestRestartKeepsPlayerSlot(t *testing.T) {
	bank := MapBank{1: longSong(t, 0)}
	e, rec := newTestEngine(t, bank)

	require.NoError(t, e.StartSound(1))
	runTicks(e, 5)
	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	assert.Equal(t, 2, noteOns(rec, 60))
	assert.Equal(t, 1, playerStatus(t, e, 1).Beat)
	assert.Equal(t, []int{1}, e.Sounds())
}

func TestLoopRepeatsExactly(t *testing.T) {
	bank := MapBank{1: buildSMF(t, beats(0, 1, 60, 62, 64, 65))}
	e, rec := newTestEngine(t, bank)

	require.NoError(t, e.StartSound(1))
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|9, 1, 2, 2, 0, 4, 0))
	assert.Equal(t, 2, e.DoCommand(PlayerCmd|0, 1, 9))

	// an empty or inverted range is refused
	assert.Equal(t, -1, e.DoCommand(PlayerCmd|9, 1, 2, 3, 0, 4, 0))

	ticks := runUntilStopped(e, 1, 2000)
	assert.Less(t, ticks, 2000)

	assert.Equal(t, 1, noteOns(rec, 60))
	assert.Equal(t, 3, noteOns(rec, 62))
	assert.Equal(t, 3, noteOns(rec, 64))
	assert.Equal(t, 1, noteOns(rec, 65))
}

func TestJumpHookFiresOnce(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.ProgramChange(0, 1)},
		{0, gomidi.NoteOn(0, 60, 100)},
		{240, gomidi.NoteOff(0, 60)},
		{240, gomidi.NoteOn(0, 62, 100)},
		{240, gomidi.NoteOff(0, 62)},
		{240, imuseSysEx(48, append([]byte{0}, nibbles(3, 0, 0, 0, 1, 0, 0)...)...)},
		{0, gomidi.NoteOn(0, 64, 100)},
		{240, gomidi.NoteOff(0, 64)},
	})
	e, rec := newTestEngine(t, MapBank{1: song})

	require.NoError(t, e.StartSound(1))
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|12, 1, HookJump, 3, 0))
	assert.Equal(t, 3, e.DoCommand(PlayerCmd|19, 1, 18))

	runUntilStopped(e, 1, 1000)
	assert.Equal(t, 2, noteOns(rec, 60))
	assert.Equal(t, 2, noteOns(rec, 62))
	assert.Equal(t, 1, noteOns(rec, 64))
}

func TestJumpPastEndStops(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: buildSMF(t, beats(0, 1, 60, 62))})
	require.NoError(t, e.StartSound(1))

	assert.Equal(t, -1, e.DoCommand(PlayerCmd|7, 1, 0, 500, 0))
	assert.Equal(t, 0, e.SoundStatus(1))
}

func TestScanRestartsSoundingNotes(t *testing.T) {
	e, rec := newTestEngine(t, MapBank{1: buildSMF(t, beats(0, 7, 60, 62, 64))})
	require.NoError(t, e.StartSound(1))

	assert.Equal(t, 0, e.DoCommand(PlayerCmd|8, 1, 0, 2, 100))
	st := playerStatus(t, e, 1)
	assert.Equal(t, 2, st.Beat)
	assert.Equal(t, 100, st.Tick)

	require.Len(t, st.Parts, 1)
	out := st.Parts[0].Output
	require.GreaterOrEqual(t, out, 0)
	assert.Equal(t, 1, rec.SoundingNotes(uint8(out)))
	assert.True(t, rec.Channel(uint8(out)).Notes[62])
	assert.Equal(t, 7, rec.Channel(uint8(out)).Program, "program replayed while scanning")
	assert.Equal(t, 0, noteOns(rec, 60), "notes before the target are not played")
}

func TestVolumeFadeIsMonotonic(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: longSong(t, 0)})
	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	assert.Equal(t, 0, e.DoCommand(PlayerCmd|13, 1, 20, 7))
	prev := playerStatus(t, e, 1).Volume
	require.Equal(t, 127, prev)
	for i := 0; i < 7; i++ {
		e.OnTimer()
		v := playerStatus(t, e, 1).Volume
		assert.LessOrEqual(t, v, prev)
		assert.GreaterOrEqual(t, v, 20)
		prev = v
	}
	assert.Equal(t, 20, prev)
	assert.False(t, playerStatus(t, e, 1).FadingOut)
}

func TestFadeToSilenceStops(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: longSong(t, 0)})
	require.NoError(t, e.StartSound(1))

	assert.Equal(t, 0, e.DoCommand(PlayerCmd|13, 1, 0, 3))
	assert.Equal(t, 0, e.SoundStatus(1), "fading out counts as stopped")
	assert.True(t, e.SoundActive(1))

	runTicks(e, 3)
	assert.False(t, e.SoundActive(1))
}

func TestDeferredCommandTiming(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: longSong(t, 0), 2: longSong(t, 1)})

	require.True(t, e.AddDeferredCommand(0, CmdStartSound, 1))
	assert.Equal(t, 2, e.SoundStatus(1))
	e.OnTimer()
	assert.Equal(t, 1, e.SoundStatus(1))

	require.True(t, e.AddDeferredCommand(3, CmdStartSound, 2))
	runTicks(e, 2)
	assert.Equal(t, 2, e.SoundStatus(2))
	e.OnTimer()
	assert.Equal(t, 1, e.SoundStatus(2))
}

func TestDeferredTableFull(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	for i := 0; i < maxDeferred; i++ {
		require.True(t, e.AddDeferredCommand(100, CmdStopAll))
	}
	assert.False(t, e.AddDeferredCommand(100, CmdStopAll))
	assert.Equal(t, maxDeferred, e.Status().Deferred)
}

func TestStoppingDropsDeferredPlayerCommands(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: longSong(t, 0)})
	require.NoError(t, e.StartSound(1))
	require.True(t, e.AddDeferredCommand(5, PlayerCmd|2, 1, 10))
	require.True(t, e.AddDeferredCommand(5, CmdStartSound, 1))

	require.NoError(t, e.StopSound(1))
	assert.Equal(t, 1, e.Status().Deferred)
}

func TestMarkerFiresTrigger(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.ProgramChange(0, 1)},
		{0, gomidi.NoteOn(0, 60, 100)},
		{240, gomidi.NoteOff(0, 60)},
		{240, imuseSysEx(64, 0, 5)},
		{0, gomidi.NoteOn(0, 62, 100)},
		{480 * 20, gomidi.NoteOff(0, 62)},
	})
	e, _ := newTestEngine(t, MapBank{1: song, 2: longSong(t, 1)})

	assert.Equal(t, -1, e.SetTrigger(1, 0, CmdStartSound, 2), "id 0 marks a free slot")
	assert.Equal(t, 0, e.SetTrigger(1, 5, CmdStartSound, 2))
	require.NoError(t, e.StartSound(1))

	assert.ErrorIs(t, e.StartSound(2), ErrPendingTrigger)

	for i := 0; i < 100 && e.SoundStatus(2) == 0; i++ {
		e.OnTimer()
	}
	assert.Equal(t, 1, e.SoundStatus(2))
	assert.Equal(t, 0, e.Status().Triggers)
}

func TestStopFiresTriggers(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: longSong(t, 0), 2: longSong(t, 1)})
	require.NoError(t, e.StartSound(1))
	assert.Equal(t, 0, e.SetTrigger(1, 7, CmdStartSound, 2))

	require.NoError(t, e.StopSound(1))
	assert.Equal(t, 2, e.SoundStatus(2))
	e.OnTimer()
	assert.Equal(t, 1, e.SoundStatus(2))
}

func TestFireAllTriggers(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{2: longSong(t, 1), 3: longSong(t, 2)})
	e.SetTrigger(1, 4, CmdStartSound, 2)
	e.SetTrigger(1, 5, CmdStartSound, 3)
	e.SetTrigger(9, 1, CmdStopAll)

	assert.Equal(t, 0, e.FireAllTriggers(0))
	assert.Equal(t, 2, e.FireAllTriggers(1))
	assert.Equal(t, 1, e.Status().Triggers)
	assert.Equal(t, 2, e.Status().PendingDepth)

	e.OnTimer()
	assert.True(t, e.SoundActive(2))
	assert.True(t, e.SoundActive(3))
	assert.Equal(t, 0, e.FireAllTriggers(1))
}

func TestClearTriggerWildcards(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	e.SetTrigger(1, 1, CmdStopAll)
	e.SetTrigger(1, 2, CmdStopAll)
	e.SetTrigger(2, 1, CmdStopAll)

	assert.Equal(t, 0, e.ClearTrigger(-1, 1))
	assert.Equal(t, 1, e.Status().Triggers)
	assert.Equal(t, -1, e.ClearTrigger(3, -1))
	assert.Equal(t, 0, e.ClearTrigger(-1, -1))
	assert.Equal(t, 0, e.Status().Triggers)
}

func TestTriggerTableReplacesOldest(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	for i := 1; i <= maxTriggers; i++ {
		require.Equal(t, 0, e.SetTrigger(1, i, CmdStopAll))
	}
	require.Equal(t, 0, e.SetTrigger(1, 99, CmdStopAll))

	assert.Equal(t, maxTriggers, e.Status().Triggers)
	assert.Equal(t, -1, e.ClearTrigger(1, 1), "oldest trigger was replaced")
	assert.Equal(t, 0, e.ClearTrigger(1, 99))
}

func TestScriptQueueReleasedByMarker(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.NoteOn(0, 60, 100)},
		{480, imuseSysEx(64, 0, 5)},
		{480 * 20, gomidi.NoteOff(0, 60)},
	})
	e, _ := newTestEngine(t, MapBank{1: song, 2: longSong(t, 1)})

	assert.Equal(t, 0, e.DoCommand(PlayerCmd|14, 1, 5))
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|15, CmdStartSound, 2))
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|15, -1))
	assert.Equal(t, 1, e.DoCommand(PlayerCmd|23, 0))
	assert.Equal(t, 1, e.DoCommand(PlayerCmd|23, 1), "head block waits on sound 1")
	assert.Equal(t, 2, e.SoundStatus(2))

	require.NoError(t, e.StartSound(1))
	started := false
	for i := 0; i < 100 && !started; i++ {
		e.OnTimer()
		for _, p := range e.Status().Players {
			started = started || (p.Mode != "free" && p.Sound == 2)
		}
	}
	assert.True(t, started)
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|23, 0))
	assert.Equal(t, 0, e.Status().QueueDepth)
}

func TestStopReleasesChannels(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.ProgramChange(0, 1)},
		{0, gomidi.ProgramChange(1, 2)},
		{0, gomidi.NoteOn(0, 60, 100)},
		{0, gomidi.NoteOn(1, 64, 100)},
		{480 * 50, gomidi.NoteOff(0, 60)},
	})
	e, rec := newTestEngine(t, MapBank{1: song})
	require.NoError(t, e.StartSound(1))
	runTicks(e, 2)

	held := 0
	for _, c := range e.Status().Channels {
		if c.Part >= 0 {
			held++
			assert.Equal(t, 1, c.Sound)
		}
	}
	assert.Equal(t, 2, held)

	require.NoError(t, e.StopSound(1))
	for _, c := range e.Status().Channels {
		assert.Equal(t, -1, c.Part)
		assert.Zero(t, rec.SoundingNotes(uint8(c.Channel)))
	}

	// nothing more reaches the output after stop returns
	n := len(rec.Messages())
	runTicks(e, 10)
	assert.Len(t, rec.Messages(), n)
}

func TestUnknownCommands(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: longSong(t, 0)})

	assert.Equal(t, -1, e.DoCommand(0x5F))
	assert.Equal(t, -1, e.DoCommand(2<<8))
	assert.Equal(t, -1, e.DoCommand(PlayerCmd|2, 1, 64), "player command without a player")

	require.NoError(t, e.StartSound(1))
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|2, 1, 64))
	assert.Equal(t, -1, e.DoCommand(PlayerCmd|2, 1, 200))
	assert.Equal(t, 129, e.DoCommand(PlayerCmd|0, 1, 15, 5), "no part on channel 5")
	assert.Equal(t, -1, e.DoCommand(PlayerCmd|0, 1, 99))
}

func TestPlayerParamQueries(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.ProgramChange(3, 33)},
		{0, gomidi.NoteOn(3, 60, 100)},
		{480 * 100, gomidi.NoteOff(3, 60)},
	})
	e, _ := newTestEngine(t, MapBank{1: song})
	require.NoError(t, e.StartSound(1))
	runTicks(e, 2)

	assert.Equal(t, 33, e.DoCommand(PlayerCmd|0, 1, 16, 3))
	assert.Equal(t, 129, e.DoCommand(PlayerCmd|0, 1, 16, 4), "no part on channel 4")

	assert.Equal(t, 0, e.DoCommand(PlayerCmd|3, 1, -10))
	assert.Equal(t, 246, e.DoCommand(PlayerCmd|0, 1, 2), "pan reads back as a byte")
	assert.Equal(t, 0, e.DoCommand(PlayerCmd|3, 1, 20))
	assert.Equal(t, 20, e.DoCommand(PlayerCmd|0, 1, 2))
}

func TestProperties(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	require.NoError(t, e.SetProperty(PropTempoBase, 150))
	v, err := e.Property(PropTempoBase)
	require.NoError(t, err)
	assert.Equal(t, 150, v)

	err = e.SetProperty(PropTempoBase, 10)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = e.Property(42)
	assert.ErrorIs(t, err, ErrUnknownProperty)
	assert.Equal(t, ftag.InvalidArgument, ftag.Get(err))

	require.NoError(t, e.SetProperty(PropDialect, int(DialectSamNMax)))
	assert.Equal(t, "samnmax", e.Status().Dialect)
}

func TestTempoFactorScalesPlayback(t *testing.T) {
	bank := MapBank{1: buildSMF(t, beats(0, 1, 60, 62, 64, 65))}

	normal, _ := newTestEngine(t, bank)
	require.NoError(t, normal.StartSound(1))
	base := runUntilStopped(normal, 1, 2000)

	fast, _ := newTestEngine(t, bank)
	require.NoError(t, fast.SetProperty(PropTempoBase, 200))
	require.NoError(t, fast.StartSound(1))
	quick := runUntilStopped(fast, 1, 2000)

	assert.InDelta(t, base/2, quick, 2)
}

func TestTempoEventChangesRate(t *testing.T) {
	slow := buildSMF(t, []ev{
		{0, tempo(1000000)},
		{0, gomidi.NoteOn(0, 60, 100)},
		{480, gomidi.NoteOff(0, 60)},
	})
	e, _ := newTestEngine(t, MapBank{1: slow})
	require.NoError(t, e.StartSound(1))

	// one beat at one second per beat takes about 100 timer ticks
	ticks := runUntilStopped(e, 1, 1000)
	assert.InDelta(t, 100, ticks, 3)
}

func TestSamNMaxTriggerCommands(t *testing.T) {
	e, _ := newTestEngine(t, nil, WithDialect(DialectSamNMax))

	assert.Equal(t, 0, e.DoCommand(CmdChannelVolume, 1, 0, 5, CmdStartSound, 2))
	assert.Equal(t, 1, e.Status().Triggers)
	assert.Equal(t, 1, e.DoCommand(CmdVolchanEntry, 1, 0, 5))
	assert.Equal(t, 0, e.DoCommand(CmdChannelVolume, 1, 0, 5, 0))
	assert.Equal(t, 0, e.DoCommand(CmdVolchanEntry, 1, 0, -1))
}

func TestSamNMaxMarker(t *testing.T) {
	song := buildSMF(t, []ev{
		{0, gomidi.NoteOn(0, 60, 100)},
		{480, imuseSysEx(0, 9)},
		{480 * 20, gomidi.NoteOff(0, 60)},
	})
	e, _ := newTestEngine(t, MapBank{1: song, 2: longSong(t, 1)}, WithDialect(DialectSamNMax))
	assert.Equal(t, 0, e.SetTrigger(1, 9, CmdStartSound, 2))
	require.NoError(t, e.StartSound(1))

	for i := 0; i < 100 && e.SoundStatus(2) != 1; i++ {
		e.OnTimer()
	}
	assert.Equal(t, 1, e.SoundStatus(2))
}

func TestRunDrivesTimer(t *testing.T) {
	e, rec := newTestEngine(t, MapBank{1: longSong(t, 0)}, WithTimerPeriod(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Run(ctx)
	}()

	require.NoError(t, e.StartSound(1))
	assert.Eventually(t, func() bool { return noteOns(rec, 60) > 0 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return e.MusicTimer() > 0 }, 2*time.Second, time.Millisecond)

	require.NoError(t, e.StopSound(1))
	cancel()
	wg.Wait()
	assert.Zero(t, rec.SoundingNotes(0))
}

func TestShutdownSilences(t *testing.T) {
	e, rec := newTestEngine(t, MapBank{1: longSong(t, 0), 2: longSong(t, 1)})
	require.NoError(t, e.StartSound(1))
	require.NoError(t, e.StartSound(2))
	runTicks(e, 1)

	e.Shutdown()
	assert.Equal(t, 0, e.SoundStatus(1))
	assert.Equal(t, 0, e.SoundStatus(2))
	for ch := uint8(0); ch < 16; ch++ {
		assert.Zero(t, rec.SoundingNotes(ch))
	}
}

func TestSetDriverResendsParts(t *testing.T) {
	e, _ := newTestEngine(t, MapBank{1: longSong(t, 0)})
	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)

	_, rec2 := newTestEngine(t, nil)
	e.SetDriver(rec2)
	assert.Equal(t, 1, rec2.Channel(0).Program)
	assert.Equal(t, uint8(127), rec2.Channel(0).Volume)
}
