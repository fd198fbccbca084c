package imuse

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-imuse/debug"
	"go-imuse/midi"
)

// StateVersion is written into saved states; Load rejects other versions
const StateVersion = 1

// State is the saved form of an Engine. Sounds are saved by id and
// re-read from the bank on load; effective values are derived again.
type State struct {
	Version        int     `json:"version"`
	Dialect        Dialect `json:"dialect"`
	TempoFactor    int     `json:"tempoFactor"`
	PlayerLimit    int     `json:"playerLimit"`
	RecyclePlayers bool    `json:"recyclePlayers"`

	MasterVolume uint8 `json:"masterVolume"`
	MusicVolume  uint8 `json:"musicVolume"`
	SfxVolume    uint8 `json:"sfxVolume"`

	ChannelVolume [numVolumeChannels]uint16 `json:"channelVolume"`
	VolchanTable  [numVolumeChannels]uint16 `json:"volchanTable"`

	Triggers     [maxTriggers]ImTrigger       `json:"triggers"`
	TriggerIndex uint16                       `json:"triggerIndex"`
	Deferred     [maxDeferred]DeferredCommand `json:"deferred"`

	Queue        CommandQueue `json:"queue"`
	QueueAdding  bool         `json:"queueAdding"`
	QueueSound   int          `json:"queueSound"`
	QueueMarker  int          `json:"queueMarker"`
	TriggerCount int          `json:"triggerCount"`
	Pending      CommandQueue `json:"pending"`

	GlobalInstruments [maxGlobalInstruments]Instrument `json:"globalInstruments"`
	Players           [maxPlayers]PlayerState          `json:"players"`
	Parts             [maxParts]PartState              `json:"parts"`
}

// PlayerState holds the saved fields of one player slot
type PlayerState struct {
	Active     bool   `json:"active"`
	Sound      int    `json:"sound"`
	SFX        bool   `json:"sfx,omitempty"`
	Priority   uint8  `json:"priority"`
	Volume     uint8  `json:"volume"`
	Pan        int8   `json:"pan"`
	Transpose  int8   `json:"transpose"`
	Detune     int16  `json:"detune"`
	NoteOffset int    `json:"noteOffset"`
	VolChan    uint16 `json:"volChan"`
	Speed      uint8  `json:"speed"`
	Parts      int    `json:"parts"`

	Track int    `json:"track"`
	Tick  uint32 `json:"tick"`
	Pos   int    `json:"pos"`
	Tempo uint32 `json:"tempo"`
	Accum uint64 `json:"accum"`

	LoopStartBeat int `json:"loopStartBeat"`
	LoopStartTick int `json:"loopStartTick"`
	LoopEndBeat   int `json:"loopEndBeat"`
	LoopEndTick   int `json:"loopEndTick"`
	LoopCounter   int `json:"loopCounter"`

	Hook   HookDatas                 `json:"hook"`
	Faders [maxFaders]ParameterFader `json:"faders"`

	VolEff uint8 `json:"-"` // derived
}

// PartState holds the saved fields of one part slot
type PartState struct {
	Player     int   `json:"player"` // -1 when free
	Next       int   `json:"next"`
	Prev       int   `json:"prev"`
	Chan       uint8 `json:"chan"`
	On         bool  `json:"on"`
	Percussion bool  `json:"percussion"`

	Pitchbend       int16 `json:"pitchbend"`
	PitchbendFactor uint8 `json:"pitchbendFactor"`
	Transpose       int8  `json:"transpose"`
	Vol             uint8 `json:"vol"`
	Detune          int8  `json:"detune"`
	Pan             int8  `json:"pan"`
	Pri             int8  `json:"pri"`
	Polyphony       uint8 `json:"polyphony"`
	Modwheel        uint8 `json:"modwheel"`
	Pedal           bool  `json:"pedal"`
	EffectLevel     uint8 `json:"effectLevel"`
	Chorus          uint8 `json:"chorus"`
	Bank            uint8 `json:"bank"`

	Instrument           Instrument `json:"instrument"`
	UnassignedInstrument bool       `json:"unassignedInstrument"`

	// derived, recomputed on load
	TransposeEff int8  `json:"-"`
	VolEff       uint8 `json:"-"`
	DetuneEff    int16 `json:"-"`
	PanEff       int8  `json:"-"`
	PriEff       uint8 `json:"-"`
	HasChannel   bool  `json:"-"`
}

// Save writes the engine state as JSON
func (e *Engine) Save(w io.Writer) error {
	e.mu.Lock()
	st := e.captureState()
	e.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		return fault.Wrap(err, fmsg.With("failed to write state"))
	}
	return nil
}

// Load replaces the engine state with a saved one. Playing sounds are
// resumed where they were; a sound missing from the bank is dropped.
func (e *Engine) Load(r io.Reader) error {
	var st State
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return fault.Wrap(err,
			fmsg.WithDesc("failed to read state", "The saved state is not valid JSON."),
			ftag.With(ftag.InvalidArgument))
	}
	if err := st.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.restoreState(&st)
	return nil
}

// Snapshot returns the current state in saved form, derived values
// included
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captureState()
}

func (e *Engine) captureState() *State {
	st := &State{
		Version:           StateVersion,
		Dialect:           e.dialect,
		TempoFactor:       e.tempoFactor,
		PlayerLimit:       e.playerLimit,
		RecyclePlayers:    e.recyclePlayers,
		MasterVolume:      e.masterVolume,
		MusicVolume:       e.musicVolume,
		SfxVolume:         e.sfxVolume,
		ChannelVolume:     e.channelVolume,
		VolchanTable:      e.volchanTable,
		Triggers:          e.triggers,
		TriggerIndex:      e.triggerIndex,
		Deferred:          e.deferred,
		Queue:             e.queue,
		QueueAdding:       e.queueAdding,
		QueueSound:        e.queueSound,
		QueueMarker:       e.queueMarker,
		TriggerCount:      e.triggerCount,
		Pending:           e.pending,
		GlobalInstruments: e.globalInstruments,
	}

	for i := range e.players {
		p := &e.players[i]
		if !p.active {
			st.Players[i] = PlayerState{Parts: -1}
			continue
		}
		st.Players[i] = PlayerState{
			Active:        true,
			Sound:         p.id,
			SFX:           p.sfx,
			Priority:      p.priority,
			Volume:        p.volume,
			Pan:           p.pan,
			Transpose:     p.transpose,
			Detune:        p.detune,
			NoteOffset:    p.noteOffset,
			VolChan:       p.volChan,
			Speed:         p.speed,
			Parts:         p.parts,
			Track:         p.track,
			Tick:          p.tick,
			Pos:           p.pos,
			Tempo:         p.tempo,
			Accum:         p.accum,
			LoopStartBeat: p.loopStartBeat,
			LoopStartTick: p.loopStartTick,
			LoopEndBeat:   p.loopEndBeat,
			LoopEndTick:   p.loopEndTick,
			LoopCounter:   p.loopCounter,
			Hook:          p.hook,
			Faders:        p.faders,
			VolEff:        p.volEff,
		}
	}

	for i := range e.parts {
		p := &e.parts[i]
		if p.player == nil {
			st.Parts[i] = PartState{Player: -1, Next: -1, Prev: -1}
			continue
		}
		st.Parts[i] = PartState{
			Player:               p.player.slot,
			Next:                 p.next,
			Prev:                 p.prev,
			Chan:                 p.chanNum,
			On:                   p.on,
			Percussion:           p.percussion,
			Pitchbend:            p.pitchbend,
			PitchbendFactor:      p.pitchbendFactor,
			Transpose:            p.transpose,
			Vol:                  p.vol,
			Detune:               p.detune,
			Pan:                  p.pan,
			Pri:                  p.pri,
			Polyphony:            p.polyphony,
			Modwheel:             p.modwheel,
			Pedal:                p.pedal,
			EffectLevel:          p.effectLevel,
			Chorus:               p.chorus,
			Bank:                 p.bank,
			Instrument:           p.instrument,
			UnassignedInstrument: p.unassignedInstrument,
			TransposeEff:         p.transposeEff,
			VolEff:               p.volEff,
			DetuneEff:            p.detuneEff,
			PanEff:               p.panEff,
			PriEff:               p.priEff,
			HasChannel:           p.ch >= 0,
		}
	}
	return st
}

func badState(format string, args ...any) error {
	return fault.Wrap(ErrBadState, fmsg.With(fmt.Sprintf(format, args...)))
}

// validate checks indices and ranges before anything is restored
func (st *State) validate() error {
	if st.Version != StateVersion {
		return badState("version %d, want %d", st.Version, StateVersion)
	}
	if st.TempoFactor < 50 || st.TempoFactor > 200 {
		return badState("tempo factor %d", st.TempoFactor)
	}
	if st.PlayerLimit < 1 || st.PlayerLimit > maxPlayers {
		return badState("player limit %d", st.PlayerLimit)
	}
	if !st.Queue.valid() || !st.Pending.valid() {
		return badState("queue bounds")
	}
	link := func(i int) bool { return i >= -1 && i < maxParts }

	for i, ps := range st.Players {
		if !ps.Active {
			continue
		}
		if !link(ps.Parts) || ps.Track < 0 || ps.Pos < 0 || ps.Volume > 127 {
			return badState("player %d", i)
		}
		if ps.Parts >= 0 && st.Parts[ps.Parts].Player != i {
			return badState("player %d part list", i)
		}
	}
	for i, ps := range st.Parts {
		if ps.Player == -1 {
			continue
		}
		if ps.Player < 0 || ps.Player >= maxPlayers || !st.Players[ps.Player].Active {
			return badState("part %d owner %d", i, ps.Player)
		}
		if !link(ps.Next) || !link(ps.Prev) || ps.Chan > 15 {
			return badState("part %d links", i)
		}
		if ps.Next >= 0 && st.Parts[ps.Next].Player != ps.Player {
			return badState("part %d next", i)
		}
		if ps.Prev >= 0 && st.Parts[ps.Prev].Player != ps.Player {
			return badState("part %d prev", i)
		}
	}
	return st.validatePartLists()
}

// validatePartLists walks each player's part list: it must be a
// well-formed doubly linked chain, and every part owned by the player
// must be on it
func (st *State) validatePartLists() error {
	var seen [maxParts]bool
	for i, ps := range st.Players {
		if !ps.Active {
			continue
		}
		prev := -1
		for cur, steps := ps.Parts, 0; cur >= 0; cur, steps = st.Parts[cur].Next, steps+1 {
			if steps >= maxParts || seen[cur] {
				return badState("player %d part list loops at part %d", i, cur)
			}
			if st.Parts[cur].Player != i || st.Parts[cur].Prev != prev {
				return badState("player %d part list broken at part %d", i, cur)
			}
			seen[cur] = true
			prev = cur
		}
	}
	for i, ps := range st.Parts {
		if ps.Player >= 0 && !seen[i] {
			return badState("part %d not on player %d list", i, ps.Player)
		}
	}
	return nil
}

func (e *Engine) restoreState(st *State) {
	for i := range e.parts {
		if e.parts[i].ch >= 0 {
			e.parts[i].channel().AllNotesOff()
		}
	}
	if e.driver != nil {
		midi.NewChannel(e.driver, midi.PercussionChannel).AllNotesOff()
	}
	e.alloc.reset()
	e.rhythm = rhythmState{}

	e.dialect = st.Dialect
	e.tempoFactor = st.TempoFactor
	e.playerLimit = st.PlayerLimit
	e.recyclePlayers = st.RecyclePlayers
	e.masterVolume = st.MasterVolume
	e.musicVolume = st.MusicVolume
	e.musicVolumeEff = st.MusicVolume
	e.sfxVolume = st.SfxVolume
	e.reductionUS = 0
	e.channelVolume = st.ChannelVolume
	e.volchanTable = st.VolchanTable
	e.triggers = st.Triggers
	e.triggerIndex = st.TriggerIndex
	e.deferred = st.Deferred
	e.queue = st.Queue
	e.queueAdding = st.QueueAdding
	e.queueSound = st.QueueSound
	e.queueMarker = st.QueueMarker
	e.triggerCount = st.TriggerCount
	e.pending = st.Pending
	e.globalInstruments = st.GlobalInstruments
	e.recomputeChannelVolumes()

	for i, ps := range st.Parts {
		part := &e.parts[i]
		part.init(e, i)
		if ps.Player < 0 {
			continue
		}
		part.player = &e.players[ps.Player]
		part.next, part.prev = ps.Next, ps.Prev
		part.chanNum = ps.Chan
		part.on = ps.On
		part.percussion = ps.Percussion
		part.pitchbend = ps.Pitchbend
		part.pitchbendFactor = ps.PitchbendFactor
		part.transpose = ps.Transpose
		part.vol = ps.Vol
		part.detune = ps.Detune
		part.pan = ps.Pan
		part.pri = ps.Pri
		part.polyphony = ps.Polyphony
		part.modwheel = ps.Modwheel
		part.pedal = ps.Pedal
		part.effectLevel = ps.EffectLevel
		part.chorus = ps.Chorus
		part.bank = ps.Bank
		part.instrument = ps.Instrument
		part.unassignedInstrument = ps.UnassignedInstrument
		e.stamp++
		part.waitingSince = e.stamp
	}

	for i, ps := range st.Players {
		p := &e.players[i]
		p.init(e, i)
		if !ps.Active {
			continue
		}
		if err := e.restorePlayer(p, &ps); err != nil {
			debug.Log("state", "player %d: sound %d dropped: %v", i, ps.Sound, err)
			e.dropRestoredPlayer(p)
		}
	}

	// derive effective values and hand out channels again
	for i := range e.players {
		if p := &e.players[i]; p.active {
			p.volEff = uint8(e.playerBaseVolume(p) * (int(p.volume) + 1) >> 7)
		}
	}
	for i := range e.parts {
		e.parts[i].recompute()
	}
	e.reallocateChannels()
	debug.Log("state", "state restored")
}

func (e *Engine) restorePlayer(p *Player, ps *PlayerState) error {
	data, ok := e.bank.Sound(ps.Sound)
	if !ok {
		return ErrNoSound
	}
	p.active = true
	p.id = ps.Sound
	p.sfx = ps.SFX
	p.isMIDI, p.isMT32, p.supportsPercussion = classifySound(data)
	p.priority = ps.Priority
	p.volume = ps.Volume
	p.pan = ps.Pan
	p.transpose = ps.Transpose
	p.detune = ps.Detune
	p.noteOffset = ps.NoteOffset
	p.volChan = ps.VolChan
	p.speed = ps.Speed
	p.parts = ps.Parts
	p.loopStartBeat, p.loopStartTick = ps.LoopStartBeat, ps.LoopStartTick
	p.loopEndBeat, p.loopEndTick = ps.LoopEndBeat, ps.LoopEndTick
	p.loopCounter = ps.LoopCounter
	p.hook = ps.Hook
	p.faders = ps.Faders
	p.track = ps.Track

	stream, err := p.se.parseSound(data)
	if err != nil {
		return err
	}
	p.startSeqSound(stream, false)
	if p.track >= len(p.stream.Tracks) {
		return badState("track %d", p.track)
	}
	p.pos = min(ps.Pos, len(p.events))
	p.tick = ps.Tick
	p.accum = ps.Accum
	if ps.Tempo > 0 {
		p.tempo = ps.Tempo
	}
	return nil
}

// dropRestoredPlayer frees a player whose sound could not be resumed
// along with its parts
func (e *Engine) dropRestoredPlayer(p *Player) {
	for i := range e.parts {
		if e.parts[i].player == p {
			e.parts[i].init(e, i)
		}
	}
	p.init(e, p.slot)
}
