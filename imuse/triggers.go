package imuse

import "go-imuse/debug"

// ImTrigger runs Command when Sound reaches marker ID, or when Sound
// stops first. A trigger with ID 0 is free.
type ImTrigger struct {
	Sound   int    `json:"sound"`
	ID      int    `json:"id"`
	Expire  uint16 `json:"expire"`
	Command [8]int `json:"command"`
}

// DeferredCommand runs Args once TicksLeft timer ticks have passed
type DeferredCommand struct {
	Active    bool   `json:"active"`
	TicksLeft int    `json:"ticksLeft"`
	Args      [8]int `json:"args"`
}

// setTrigger stores a trigger in a free slot, a slot with the same
// sound, id and command, or the oldest slot
func (e *Engine) setTrigger(sound, id int, cmd [8]int) int {
	if sound == 0 || id == 0 {
		return -1
	}

	slot := -1
	oldest := -1
	var oldestAge uint16
	for i := range e.triggers {
		t := &e.triggers[i]
		if t.ID == 0 || (t.ID == id && t.Sound == sound && t.Command[0] == cmd[0]) {
			slot = i
			break
		}
		age := e.triggerIndex - t.Expire
		if oldest < 0 || age > oldestAge {
			oldest, oldestAge = i, age
		}
	}
	if slot < 0 {
		debug.Log("trigger", "table full, replacing trigger for sound %d marker %d", e.triggers[oldest].Sound, e.triggers[oldest].ID)
		slot = oldest
	}

	e.triggerIndex++
	e.triggers[slot] = ImTrigger{Sound: sound, ID: id, Expire: e.triggerIndex, Command: cmd}

	// a trigger that will start a sound supersedes that sound playing now
	if cmd[0] == 8 && e.soundStatus(cmd[1], true) != 0 && e.soundStatus(sound, true) != 0 {
		e.stopSound(cmd[1])
	}
	return 0
}

// clearTrigger removes triggers matching sound and id; -1 matches any
func (e *Engine) clearTrigger(sound, id int) int {
	count := 0
	for i := range e.triggers {
		t := &e.triggers[i]
		if t.ID == 0 {
			continue
		}
		if (sound == -1 || t.Sound == sound) && (id == -1 || t.ID == id) {
			*t = ImTrigger{}
			count++
		}
	}
	if count > 0 {
		return 0
	}
	return -1
}

func (e *Engine) countTriggers(sound, id int) int {
	count := 0
	for _, t := range e.triggers {
		if t.ID != 0 && (sound == -1 || t.Sound == sound) && (id == -1 || t.ID == id) {
			count++
		}
	}
	return count
}

// fireAllTriggers queues the commands of every trigger on sound
func (e *Engine) fireAllTriggers(sound int) int {
	if sound == 0 {
		return 0
	}
	count := 0
	for i := range e.triggers {
		t := &e.triggers[i]
		if t.ID != 0 && t.Sound == sound {
			cmd := t.Command
			*t = ImTrigger{}
			e.pushPending(cmd)
			count++
		}
	}
	return count
}

// fireMarkerTrigger queues the command of the first trigger waiting on
// this marker
func (e *Engine) fireMarkerTrigger(sound, marker int) bool {
	for i := range e.triggers {
		t := &e.triggers[i]
		if t.ID != 0 && t.Sound == sound && t.ID == marker {
			cmd := t.Command
			*t = ImTrigger{}
			debug.Log("trigger", "sound %d marker %d fired command %v", sound, marker, cmd)
			e.pushPending(cmd)
			return true
		}
	}
	return false
}

// triggerStartPending reports whether a trigger on a playing sound will
// start sound
func (e *Engine) triggerStartPending(sound int) bool {
	for _, t := range e.triggers {
		if t.ID != 0 && t.Command[0] == 8 && t.Command[1] == sound && e.soundStatus(t.Sound, true) != 0 {
			return true
		}
	}
	return false
}

func (e *Engine) addDeferredCommand(ticks int, args [8]int) bool {
	for i := range e.deferred {
		if !e.deferred[i].Active {
			e.deferred[i] = DeferredCommand{Active: true, TicksLeft: max(ticks, 0), Args: args}
			return true
		}
	}
	debug.Log("queue", "deferred command table full, dropping %v", args)
	return false
}

// handleDeferredCommands counts deferred commands down and fires those
// that reach zero. A command added with n ticks fires on the nth tick
// after it was added, or on the next tick when n is 0.
func (e *Engine) handleDeferredCommands() {
	for i := range e.deferred {
		d := &e.deferred[i]
		if !d.Active {
			continue
		}
		d.TicksLeft--
		if d.TicksLeft <= 0 {
			d.Active = false
			e.pushPending(d.Args)
		}
	}
}

// clearDeferred drops deferred player commands addressed to sound
func (e *Engine) clearDeferred(sound int) {
	for i := range e.deferred {
		d := &e.deferred[i]
		if d.Active && d.Args[0]>>8 == 1 && d.Args[1] == sound {
			d.Active = false
		}
	}
}
