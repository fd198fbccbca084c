package imuse

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"go-imuse/debug"
	"go-imuse/midi"
)

// Engine properties
const (
	PropTempoBase      = 0
	PropLimitPlayers   = 1
	PropRecyclePlayers = 2
	PropDialect        = 3
)

// Command opcodes, the low byte of the first command argument. Player
// commands carry 1 in the second byte.
const (
	CmdSetMasterVolume = 6
	CmdGetMasterVolume = 7
	CmdStartSound      = 8
	CmdStopSound       = 9
	CmdStopAll         = 10
	CmdGetSoundStatus  = 13
	CmdFader           = 14
	CmdSetHookAll      = 15
	CmdSetVolchan      = 16
	CmdChannelVolume   = 17
	CmdVolchanEntry    = 18
	CmdClearTrigger    = 19
	CmdDeferCommand    = 20

	PlayerCmd = 1 << 8
)

// playerScope lists player opcodes that need an active player
const playerScope = 0x783FFF

// DoCommand runs one game command. The first argument selects the
// opcode; the rest are its parameters. Unknown opcodes return -1.
func (e *Engine) DoCommand(args ...int) int {
	var a [8]int
	copy(a[:], args)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doCommand(a)
}

func (e *Engine) doCommand(a [8]int) int {
	cmd := a[0] & 0xFF
	param := a[0] >> 8

	switch param {
	case 0:
		return e.doEngineCommand(cmd, a)
	case 1:
		return e.doPlayerCommand(cmd, a)
	}
	debug.Log("command", "unknown command class %d (%v)", param, a)
	return -1
}

func (e *Engine) doEngineCommand(cmd int, a [8]int) int {
	switch cmd {
	case 2, 3:
		return 0
	case CmdSetMasterVolume:
		if a[1] < 0 || a[1] > 127 {
			return -1
		}
		v := a[1] << 1
		if a[1] == 0 {
			v |= 1
		}
		e.setMasterVolume(v)
		return 0
	case CmdGetMasterVolume:
		return int(e.masterVolume) >> 1
	case CmdStartSound:
		if err := e.startSound(a[1], 0, false); err != nil {
			debug.Log("command", "start %d: %v", a[1], err)
			return -1
		}
		return 0
	case CmdStopSound:
		if err := e.stopSound(a[1]); err != nil {
			return -1
		}
		return 0
	case CmdStopAll, 11:
		e.stopAllSounds()
		return 0
	case 12:
		// player volume through the engine class
		p := e.findActivePlayer(a[1])
		if p == nil || a[3] != 6 {
			return -1
		}
		return p.setVolume(a[4])
	case CmdGetSoundStatus:
		return e.soundStatus(a[1], true)
	case CmdFader:
		p := e.findActivePlayer(a[1])
		if p == nil {
			return -1
		}
		return p.addParameterFader(a[3], a[4], a[5])
	case CmdSetHookAll:
		p := e.findActivePlayer(a[1])
		if p == nil {
			return -1
		}
		return p.setHook(HookJump, a[3], 0)
	case CmdSetVolchan:
		return e.setVolchan(a[1], a[2])
	case CmdChannelVolume:
		if e.dialect == DialectSamNMax {
			if a[4] != 0 {
				return e.setTrigger(a[1], a[3], [8]int{a[4], a[5], a[6], a[7]})
			}
			return e.clearTrigger(a[1], a[3])
		}
		return e.setChannelVolume(a[1], a[2])
	case CmdVolchanEntry:
		if e.dialect == DialectSamNMax {
			return e.countTriggers(a[1], a[3])
		}
		return e.setVolchanEntry(a[1], a[2])
	case CmdClearTrigger:
		return e.clearTrigger(a[1], a[3])
	case CmdDeferCommand:
		if e.addDeferredCommand(a[1], [8]int{a[2], a[3], a[4], a[5], a[6], a[7]}) {
			return 0
		}
		return -1
	}
	debug.Log("command", "unknown engine command %d", cmd)
	return -1
}

func (e *Engine) doPlayerCommand(cmd int, a [8]int) int {
	var p *Player
	if cmd < 32 && playerScope&(1<<cmd) != 0 {
		p = e.findActivePlayer(a[1])
		if p == nil {
			return -1
		}
	}
	var part *Part
	if cmd == 11 || cmd == 22 {
		if a[2] < 0 || a[2] > 15 {
			return -1
		}
		part = p.getPart(uint8(a[2]))
		if part == nil {
			return -1
		}
	}

	switch cmd {
	case 0:
		if e.dialect == DialectSamNMax {
			switch a[2] {
			case 0:
				return (p.beatIndex()-1)/4 + 1
			case 1:
				return (p.beatIndex()-1)%4 + 1
			}
			return -1
		}
		return p.getParam(a[2], a[3])
	case 1:
		if e.dialect == DialectSamNMax {
			// measure and beat are one based
			if a[3] < 1 || a[4] < 1 {
				return -1
			}
			if !p.jump(a[2]-1, (a[3]-1)*4+a[4], a[5]*midi.TicksPerBeat/4+a[6]) {
				return -1
			}
			return 0
		}
		p.setPriority(a[2])
		return 0
	case 2:
		return p.setVolume(a[2])
	case 3:
		p.setPan(a[2])
		return 0
	case 4:
		return p.setTranspose(a[2], a[3])
	case 5:
		p.setDetune(a[2])
		return 0
	case 6:
		if a[2] < 0 || a[2] > 255 {
			return -1
		}
		p.setSpeed(uint8(a[2]))
		return 0
	case 7:
		if !p.jump(a[2], a[3], a[4]) {
			return -1
		}
		return 0
	case 8:
		return p.scan(a[2], a[3], a[4])
	case 9:
		if !p.setLoop(a[2], a[3], a[4], a[5], a[6]) {
			return -1
		}
		return 0
	case 10:
		p.clearLoop()
		return 0
	case 11:
		part.setOnOff(a[3] != 0)
		return 0
	case 12, 20:
		return p.setHook(a[2], a[3], a[4])
	case 13:
		return p.addParameterFader(FaderVolume, a[2], a[3])
	case 14:
		return e.enqueueTrigger(a[1], a[2])
	case 15:
		return e.enqueueCommand([8]int{a[1], a[2], a[3], a[4], a[5], a[6], a[7]})
	case 16:
		return e.clearQueue()
	case 19:
		return p.getParam(a[2], a[3])
	case 21:
		return -1
	case 22:
		if a[3] < 0 || a[3] > 127 {
			return -1
		}
		part.setVolume(uint8(a[3]))
		return 0
	case 23:
		return e.queryQueue(a[1])
	case 24:
		return 0
	}
	debug.Log("command", "unknown player command %d", cmd)
	return -1
}

// soundStatus is 1 while sound plays, 2 while a start is queued and 0
// otherwise. With ignoreFadeouts a sound fading to silence counts as
// stopped.
func (e *Engine) soundStatus(sound int, ignoreFadeouts bool) int {
	for i := range e.players {
		p := &e.players[i]
		if p.active && p.id == sound && (!ignoreFadeouts || !p.isFadingOut()) {
			return 1
		}
	}
	return e.queueSoundStatus(sound)
}

func (e *Engine) startSound(sound, noteOffset int, sfx bool) error {
	if e.triggerStartPending(sound) {
		return ErrPendingTrigger
	}
	data, ok := e.bank.Sound(sound)
	if !ok {
		return fault.Wrap(ErrNoSound, fmsg.With(fmt.Sprintf("sound %d", sound)))
	}
	// parse before choosing a player so a bad resource evicts nothing
	stream, err := e.parseSound(data)
	if err != nil {
		return err
	}

	p := e.findActivePlayer(sound)
	if p == nil {
		pri := uint8(128)
		if hdr := startParameters(data); hdr != nil {
			pri = hdr[2]
		}
		p = e.allocatePlayer(pri)
	}
	if p == nil {
		return ErrNoPlayer
	}

	p.clear()
	p.noteOffset = noteOffset
	p.sfx = sfx
	p.startSound(sound, data, stream)
	return nil
}

func (e *Engine) stopSound(sound int) error {
	p := e.findActivePlayer(sound)
	if p == nil {
		return ErrNotPlaying
	}
	p.clear()
	return nil
}

func (e *Engine) stopAllSounds() {
	for i := range e.players {
		e.players[i].clear()
	}
}

// StartSound starts sound from the top, restarting it if it is already
// playing
func (e *Engine) StartSound(sound int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startSound(sound, 0, false)
}

// StartSoundWithNoteOffset starts sound transposed by offset semitones
func (e *Engine) StartSoundWithNoteOffset(sound, offset int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startSound(sound, offset, false)
}

// StartSFX starts sound scaled by the sfx volume
func (e *Engine) StartSFX(sound int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startSound(sound, 0, true)
}

// StopSound stops sound. Once it returns no further events from the
// sound reach the output.
func (e *Engine) StopSound(sound int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopSound(sound)
}

func (e *Engine) StopAllSounds() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAllSounds()
}

// SoundStatus returns 1 while sound plays, 2 while a start is queued
// and 0 otherwise. Sounds fading out count as stopped.
func (e *Engine) SoundStatus(sound int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.soundStatus(sound, true)
}

// SoundActive reports whether sound is playing, fading out included
func (e *Engine) SoundActive(sound int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.soundStatus(sound, false) != 0
}

// MusicTimer returns the furthest position of any player in half beats
func (e *Engine) MusicTimer() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	best := 0
	for i := range e.players {
		if p := &e.players[i]; p.active {
			best = max(best, p.musicTimer())
		}
	}
	return best
}

// SetTrigger runs cmd when sound reaches marker id
func (e *Engine) SetTrigger(sound, id int, cmd ...int) int {
	var a [8]int
	copy(a[:], cmd)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setTrigger(sound, id, a)
}

// ClearTrigger removes triggers; -1 matches any sound or id
func (e *Engine) ClearTrigger(sound, id int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clearTrigger(sound, id)
}

// FireAllTriggers queues every trigger waiting on sound to run at the
// end of the next tick and returns how many fired
func (e *Engine) FireAllTriggers(sound int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fireAllTriggers(sound)
}

// AddDeferredCommand runs cmd after ticks timer ticks
func (e *Engine) AddDeferredCommand(ticks int, cmd ...int) bool {
	var a [8]int
	copy(a[:], cmd)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addDeferredCommand(ticks, a)
}

// SetProperty changes an engine property
func (e *Engine) SetProperty(prop, value int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch prop {
	case PropTempoBase:
		if value < 50 || value > 200 {
			return fault.Wrap(ErrOutOfRange, fmsg.With("tempo base must be 50-200"))
		}
		e.tempoFactor = value
	case PropLimitPlayers:
		if value < 1 || value > maxPlayers {
			return fault.Wrap(ErrOutOfRange, fmsg.With("player limit must be 1-8"))
		}
		e.playerLimit = value
	case PropRecyclePlayers:
		e.recyclePlayers = value != 0
	case PropDialect:
		if value != int(DialectScumm) && value != int(DialectSamNMax) {
			return fault.Wrap(ErrOutOfRange, fmsg.With("unknown dialect"))
		}
		e.dialect = Dialect(value)
	default:
		return ErrUnknownProperty
	}
	return nil
}

// Property reads an engine property
func (e *Engine) Property(prop int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch prop {
	case PropTempoBase:
		return e.tempoFactor, nil
	case PropLimitPlayers:
		return e.playerLimit, nil
	case PropRecyclePlayers:
		if e.recyclePlayers {
			return 1, nil
		}
		return 0, nil
	case PropDialect:
		return int(e.dialect), nil
	}
	return 0, ErrUnknownProperty
}
