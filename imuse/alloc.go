package imuse

// channelSlot is one physical output channel the allocator hands out
type channelSlot struct {
	num   uint8  // MIDI channel
	owner int    // part slot, -1 when free
	since uint64 // allocation order, for tie-breaks
}

// allocator owns the melodic output channels. Parts compete for them by
// effective priority.
type allocator struct {
	slots []channelSlot
	seq   uint64
}

func newAllocator(channels []uint8) allocator {
	a := allocator{slots: make([]channelSlot, len(channels))}
	for i, ch := range channels {
		a.slots[i] = channelSlot{num: ch, owner: -1}
	}
	return a
}

// allocate finds a channel for a part of priority pri. A free channel is
// preferred; otherwise the holder with the lowest priority strictly below
// pri is chosen, the earliest allocated on ties. evicted is the part that
// must give the channel up, or -1.
func (a *allocator) allocate(pri uint8, priorityOf func(part int) uint8) (slot, evicted int, ok bool) {
	victim := -1
	for i, s := range a.slots {
		if s.owner < 0 {
			return i, -1, true
		}
		p := priorityOf(s.owner)
		if p >= pri {
			continue
		}
		if victim < 0 {
			victim = i
			continue
		}
		vp := priorityOf(a.slots[victim].owner)
		if p < vp || (p == vp && s.since < a.slots[victim].since) {
			victim = i
		}
	}
	if victim < 0 {
		return -1, -1, false
	}
	return victim, a.slots[victim].owner, true
}

func (a *allocator) assign(slot, part int) {
	a.seq++
	a.slots[slot].owner = part
	a.slots[slot].since = a.seq
}

func (a *allocator) release(slot int) {
	if slot >= 0 && slot < len(a.slots) {
		a.slots[slot].owner = -1
	}
}

func (a *allocator) reset() {
	for i := range a.slots {
		a.slots[i].owner = -1
	}
}
