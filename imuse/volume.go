package imuse

import "go-imuse/debug"

// playerBaseVolume is the volume a player's own volume is scaled by
func (e *Engine) playerBaseVolume(p *Player) int {
	switch {
	case e.paused:
		return 0
	case p.sfx:
		return int(e.masterVolume) * int(e.sfxVolume) / 255 / 2
	case p.volChan < numVolumeChannels:
		return int(e.channelVolumeEff[p.volChan])
	}
	return int(e.masterVolume) * int(e.musicVolumeEff) / 255 / 2
}

func (e *Engine) recomputeChannelVolumes() {
	for i := range e.channelVolume {
		e.channelVolumeEff[i] = uint16(int(e.channelVolume[i]) * int(e.masterVolume) * int(e.musicVolumeEff) / 255 / 255)
	}
}

// updateVolumes pushes the volume chain down to every active player
func (e *Engine) updateVolumes() {
	for i := range e.players {
		if p := &e.players[i]; p.active {
			p.setVolume(int(p.volume))
		}
	}
}

func (e *Engine) setChannelVolume(ch, vol int) int {
	if ch < 0 || ch >= numVolumeChannels || vol < 0 || vol > 127 {
		return -1
	}
	e.channelVolume[ch] = uint16(vol)
	e.recomputeChannelVolumes()
	e.updateVolumes()
	return 0
}

// setVolchanEntry limits how many players may share volume channel ch;
// 8 or more means unlimited
func (e *Engine) setVolchanEntry(ch, limit int) int {
	if ch < 0 || ch >= numVolumeChannels {
		return -1
	}
	e.volchanTable[ch] = uint16(limit)
	return 0
}

// setVolchan moves sound onto volume channel ch, evicting the lowest
// priority player already there if the channel is full
func (e *Engine) setVolchan(sound, ch int) int {
	if ch < 0 || ch >= numVolumeChannels {
		return -1
	}
	limit := int(e.volchanTable[ch])

	if limit >= numVolumeChannels {
		p := e.findActivePlayer(sound)
		if p == nil || p.volChan == uint16(ch) {
			return -1
		}
		p.volChan = uint16(ch)
		p.setVolume(int(p.volume))
		return 0
	}

	var best, same *Player
	num := 0
	for i := range e.players {
		p := &e.players[i]
		if !p.active {
			continue
		}
		if p.volChan == uint16(ch) {
			num++
			if best == nil || p.priority <= best.priority {
				best = p
			}
		} else if p.id == sound {
			same = p
		}
	}
	if same == nil {
		return -1
	}
	if num >= limit && best != nil {
		debug.Log("volume", "volume channel %d full, stopping sound %d", ch, best.id)
		best.clear()
	}
	same.volChan = uint16(ch)
	same.setVolume(int(same.volume))
	return 0
}

// musicVolumeReduction steps the music volume toward its target, one
// unit per 60 Hz period. Speech halves the target.
func (e *Engine) musicVolumeReduction(elapsedUS int) {
	e.reductionUS += elapsedUS
	changed := false
	for e.reductionUS >= musReductionUS {
		e.reductionUS -= musReductionUS
		target := e.musicVolume
		if e.speechActive {
			target /= 2
		}
		switch {
		case e.musicVolumeEff < target:
			e.musicVolumeEff++
			changed = true
		case e.musicVolumeEff > target:
			e.musicVolumeEff--
			changed = true
		}
	}
	if changed {
		e.recomputeChannelVolumes()
		e.updateVolumes()
	}
}

func (e *Engine) setMasterVolume(vol int) {
	e.masterVolume = uint8(clamp(vol, 0, 255))
	e.recomputeChannelVolumes()
	e.updateVolumes()
}

// SetMasterVolume sets the overall volume, 0-255
func (e *Engine) SetMasterVolume(vol int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setMasterVolume(vol)
}

func (e *Engine) MasterVolume() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.masterVolume)
}

// SetMusicVolume sets the music volume, 0-255. While speech is active the
// effective volume glides to the new target instead.
func (e *Engine) SetMusicVolume(vol int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.musicVolume = uint8(clamp(vol, 0, 255))
	if !e.speechActive {
		e.musicVolumeEff = e.musicVolume
	}
	e.recomputeChannelVolumes()
	e.updateVolumes()
}

// SetSfxVolume sets the volume of sounds started with StartSFX, 0-255
func (e *Engine) SetSfxVolume(vol int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sfxVolume = uint8(clamp(vol, 0, 255))
	e.updateVolumes()
}

// SetSpeechActive ducks the music while speech plays
func (e *Engine) SetSpeechActive(active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speechActive = active
}

// SetChannelVolume sets one of the eight volume channels, 0-127
func (e *Engine) SetChannelVolume(ch, vol int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setChannelVolume(ch, vol)
}

// Pause silences every player and stops the sequencers; resuming
// restores the volumes
func (e *Engine) Pause(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused == paused {
		return
	}
	e.paused = paused
	e.updateVolumes()
	debug.Log("engine", "paused=%v", paused)
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}
