package imuse

import "go-imuse/midi"

// Status is a read-only view of the engine for monitors and the API
type Status struct {
	Paused       bool           `json:"paused"`
	Dialect      string         `json:"dialect"`
	MasterVolume int            `json:"masterVolume"`
	MusicVolume  int            `json:"musicVolume"`
	SfxVolume    int            `json:"sfxVolume"`
	TempoFactor  int            `json:"tempoFactor"`
	MusicTimer   int            `json:"musicTimer"`
	Players      []PlayerStatus `json:"players"`
	Channels     []ChannelUse   `json:"channels"`
	Triggers     int            `json:"triggers"`
	Deferred     int            `json:"deferred"`
	QueueDepth   int            `json:"queueDepth"`
	PendingDepth int            `json:"pendingDepth"`
}

// PlayerStatus describes one player slot
type PlayerStatus struct {
	Slot        int          `json:"slot"`
	Mode        string       `json:"mode"`
	Sound       int          `json:"sound,omitempty"`
	Priority    int          `json:"priority"`
	Volume      int          `json:"volume"`
	VolEff      int          `json:"volumeEffective"`
	Pan         int          `json:"pan"`
	Transpose   int          `json:"transpose"`
	Detune      int          `json:"detune"`
	Speed       int          `json:"speed"`
	Track       int          `json:"track"`
	Beat        int          `json:"beat"`
	Tick        int          `json:"tick"`
	LoopCounter int          `json:"loopCounter"`
	FadingOut   bool         `json:"fadingOut"`
	Parts       []PartStatus `json:"parts,omitempty"`
}

// PartStatus describes one part bound to a player
type PartStatus struct {
	Slot       int  `json:"slot"`
	Chan       int  `json:"chan"`
	Output     int  `json:"output"` // output channel, -1 while suspended
	On         bool `json:"on"`
	Percussion bool `json:"percussion"`
	Program    int  `json:"program"` // -1 without a program instrument
	Volume     int  `json:"volume"`
	Pan        int  `json:"pan"`
	Transpose  int  `json:"transpose"`
	Detune     int  `json:"detune"`
	Priority   int  `json:"priority"`
}

// ChannelUse is one allocator channel and who holds it
type ChannelUse struct {
	Channel  int `json:"channel"`
	Part     int `json:"part"`  // -1 when free
	Sound    int `json:"sound"` // 0 when free
	Priority int `json:"priority"`
}

// Status returns a copy of the engine's state for display
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Paused:       e.paused,
		Dialect:      e.dialect.String(),
		MasterVolume: int(e.masterVolume),
		MusicVolume:  int(e.musicVolume),
		SfxVolume:    int(e.sfxVolume),
		TempoFactor:  e.tempoFactor,
		QueueDepth:   e.queue.Len(),
		PendingDepth: e.pending.Len(),
	}

	for i := range e.players {
		p := &e.players[i]
		ps := PlayerStatus{Slot: i, Mode: p.mode().String()}
		if p.active {
			ps.Sound = p.id
			ps.Priority = int(p.priority)
			ps.Volume = int(p.volume)
			ps.VolEff = int(p.volEff)
			ps.Pan = int(p.pan)
			ps.Transpose = int(p.transpose)
			ps.Detune = int(p.detune)
			ps.Speed = int(p.speed)
			ps.Track = p.track
			ps.Beat = p.beatIndex()
			ps.Tick = int(p.tick) % midi.TicksPerBeat
			ps.LoopCounter = p.loopCounter
			ps.FadingOut = p.isFadingOut()
			st.MusicTimer = max(st.MusicTimer, p.musicTimer())
			p.eachPart(func(part *Part) {
				ps.Parts = append(ps.Parts, part.status())
			})
		}
		st.Players = append(st.Players, ps)
	}

	for _, s := range e.alloc.slots {
		cu := ChannelUse{Channel: int(s.num), Part: s.owner}
		if s.owner >= 0 {
			owner := &e.parts[s.owner]
			cu.Priority = int(owner.priEff)
			if owner.player != nil {
				cu.Sound = owner.player.id
			}
		}
		st.Channels = append(st.Channels, cu)
	}

	for _, t := range e.triggers {
		if t.ID != 0 {
			st.Triggers++
		}
	}
	for _, d := range e.deferred {
		if d.Active {
			st.Deferred++
		}
	}
	return st
}

func (p *Part) status() PartStatus {
	ps := PartStatus{
		Slot:       p.slot,
		Chan:       int(p.chanNum),
		Output:     -1,
		On:         p.on,
		Percussion: p.percussion,
		Program:    -1,
		Volume:     int(p.volEff),
		Pan:        int(p.panEff),
		Transpose:  int(p.transposeEff),
		Detune:     int(p.detuneEff),
		Priority:   int(p.priEff),
	}
	if p.ch >= 0 {
		ps.Output = int(p.se.alloc.slots[p.ch].num)
	}
	if p.instrument.Kind == InstrumentProgram {
		ps.Program = int(p.instrument.Program)
	}
	return ps
}

// Sounds lists the ids in the bank when it can enumerate them
func (e *Engine) Sounds() []int {
	if b, ok := e.bank.(interface{ IDs() []int }); ok {
		return b.IDs()
	}
	return nil
}
