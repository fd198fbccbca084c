package imuse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorPrefersFreeChannel(t *testing.T) {
	a := newAllocator([]uint8{0, 1})
	pri := map[int]uint8{}

	slot, evicted, ok := a.allocate(10, func(p int) uint8 { return pri[p] })
	require.True(t, ok)
	assert.Equal(t, 0, slot)
	assert.Equal(t, -1, evicted)
	a.assign(slot, 7)
	pri[7] = 10

	slot, evicted, ok = a.allocate(1, func(p int) uint8 { return pri[p] })
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	assert.Equal(t, -1, evicted)
}

func TestAllocatorEvictsLowestThenOldest(t *testing.T) {
	a := newAllocator([]uint8{0, 1, 2})
	pri := map[int]uint8{4: 30, 5: 20, 6: 20}
	a.assign(0, 4)
	a.assign(1, 5)
	a.assign(2, 6)
	priorityOf := func(p int) uint8 { return pri[p] }

	slot, evicted, ok := a.allocate(25, priorityOf)
	require.True(t, ok)
	assert.Equal(t, 1, slot, "ties go to the earliest allocation")
	assert.Equal(t, 5, evicted)

	// equal priority never evicts
	_, _, ok = a.allocate(20, priorityOf)
	assert.False(t, ok)

	a.release(1)
	slot, evicted, ok = a.allocate(0, priorityOf)
	require.True(t, ok)
	assert.Equal(t, 1, slot)
	assert.Equal(t, -1, evicted)
}

func TestHigherPriorityPartTakesChannel(t *testing.T) {
	bank := MapBank{
		1: resource("GMD ", 10, 127, 128, longSong(t, 0)),
		2: resource("GMD ", 50, 127, 128, longSong(t, 3)),
	}
	e, _ := newTestEngine(t, bank, WithChannels(0))

	require.NoError(t, e.StartSound(1))
	runTicks(e, 1)
	low := playerStatus(t, e, 1)
	require.Len(t, low.Parts, 1)
	assert.Equal(t, 0, low.Parts[0].Output)

	require.NoError(t, e.StartSound(2))
	runTicks(e, 1)
	assert.Equal(t, -1, playerStatus(t, e, 1).Parts[0].Output, "low priority part suspended")
	assert.Equal(t, 0, playerStatus(t, e, 2).Parts[0].Output)

	require.NoError(t, e.StopSound(2))
	assert.Equal(t, 0, playerStatus(t, e, 1).Parts[0].Output, "suspended part resumes when the channel frees")
}

func TestPartAllocationTakesLowestPriority(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	for i := range e.parts {
		e.parts[i].player = &e.players[0]
		e.parts[i].priEff = 100
	}
	e.players[0].active = true
	e.parts[7].priEff = 40

	assert.Nil(t, e.allocatePart(30))

	part := e.allocatePart(60)
	require.NotNil(t, part)
	assert.Equal(t, 7, part.slot)
	assert.Nil(t, part.player)
}
