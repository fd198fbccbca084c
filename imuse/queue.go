package imuse

import "go-imuse/debug"

// Queue entry kinds
const (
	EntryTrigger = 0 // Args[0] sound, Args[1] marker
	EntryCommand = 1 // Args is a command
)

// QueueEntry is one slot of a CommandQueue
type QueueEntry struct {
	Kind int    `json:"kind"`
	Args [8]int `json:"args"`
}

// CommandQueue is a fixed ring. Pushing onto a full ring overwrites the
// oldest entry.
type CommandQueue struct {
	Entries [queueSize]QueueEntry `json:"entries"`
	Head    int                   `json:"head"`
	Count   int                   `json:"count"`
}

// Push appends e and reports whether the oldest entry was overwritten
func (q *CommandQueue) Push(e QueueEntry) bool {
	if q.Count == len(q.Entries) {
		q.Entries[q.Head] = e
		q.Head = (q.Head + 1) % len(q.Entries)
		return true
	}
	q.Entries[(q.Head+q.Count)%len(q.Entries)] = e
	q.Count++
	return false
}

func (q *CommandQueue) Peek() (QueueEntry, bool) {
	if q.Count == 0 {
		return QueueEntry{}, false
	}
	return q.Entries[q.Head], true
}

func (q *CommandQueue) Pop() (QueueEntry, bool) {
	e, ok := q.Peek()
	if ok {
		q.Entries[q.Head] = QueueEntry{}
		q.Head = (q.Head + 1) % len(q.Entries)
		q.Count--
	}
	return e, ok
}

// At returns the i-th entry from the head
func (q *CommandQueue) At(i int) QueueEntry {
	return q.Entries[(q.Head+i)%len(q.Entries)]
}

func (q *CommandQueue) Len() int { return q.Count }

func (q *CommandQueue) Clear() {
	*q = CommandQueue{}
}

func (q *CommandQueue) valid() bool {
	return q.Head >= 0 && q.Head < len(q.Entries) && q.Count >= 0 && q.Count <= len(q.Entries)
}

// enqueueTrigger opens a script block that runs when sound hits marker
func (e *Engine) enqueueTrigger(sound, marker int) int {
	if e.queue.Push(QueueEntry{Kind: EntryTrigger, Args: [8]int{sound, marker}}) {
		debug.Log("queue", "script queue full, oldest entry overwritten")
	}
	e.queueAdding = true
	e.queueSound = sound
	e.queueMarker = marker
	return 0
}

// enqueueCommand adds a command to the open block; a first argument of
// -1 closes the block
func (e *Engine) enqueueCommand(args [8]int) int {
	if args[0] == -1 {
		e.queueAdding = false
		e.triggerCount++
		return 0
	}
	if e.queue.Push(QueueEntry{Kind: EntryCommand, Args: args}) {
		debug.Log("queue", "script queue full, oldest entry overwritten")
	}
	return 0
}

func (e *Engine) queryQueue(param int) int {
	switch param {
	case 0:
		return e.triggerCount
	case 1, 2:
		head, ok := e.queue.Peek()
		if !ok {
			return -1
		}
		return head.Args[param-1]
	}
	return -1
}

func (e *Engine) clearQueue() int {
	e.queue.Clear()
	e.queueAdding = false
	e.triggerCount = 0
	return 0
}

// handleMarker runs when a playing sound passes a marker. It fires a
// matching trigger and releases the script block waiting on the marker.
func (e *Engine) handleMarker(sound, marker int) {
	if e.queueAdding && e.queueSound == sound && e.queueMarker == marker {
		return
	}
	e.fireMarkerTrigger(sound, marker)

	head, ok := e.queue.Peek()
	if !ok || head.Kind != EntryTrigger || head.Args[0] != sound || head.Args[1] != marker {
		return
	}

	e.queue.Pop()
	e.triggerCount--
	for {
		next, ok := e.queue.Peek()
		if !ok || next.Kind != EntryCommand {
			break
		}
		e.queue.Pop()
		e.pushPending(next.Args)
	}
}

func (e *Engine) pushPending(args [8]int) {
	if e.pending.Push(QueueEntry{Kind: EntryCommand, Args: args}) {
		debug.Log("queue", "pending queue full, oldest command overwritten")
	}
}

// dispatchPending runs the commands queued during this tick. Commands
// they queue in turn wait for the next tick.
func (e *Engine) dispatchPending() {
	for n := e.pending.Len(); n > 0; n-- {
		entry, ok := e.pending.Pop()
		if !ok {
			return
		}
		e.doCommand(entry.Args)
	}
}

// queueSoundStatus reports 2 when a start of sound is waiting in a
// queue or the deferred table
func (e *Engine) queueSoundStatus(sound int) int {
	isStart := func(a [8]int) bool { return a[0] == 8 && a[1] == sound }

	for i := 0; i < e.queue.Len(); i++ {
		if en := e.queue.At(i); en.Kind == EntryCommand && isStart(en.Args) {
			return 2
		}
	}
	for i := 0; i < e.pending.Len(); i++ {
		if isStart(e.pending.At(i).Args) {
			return 2
		}
	}
	for _, d := range e.deferred {
		if d.Active && isStart(d.Args) {
			return 2
		}
	}
	return 0
}
