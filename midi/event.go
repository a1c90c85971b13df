package midi

import (
	"container/heap"
	"time"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// Event is a note message due at a wall-clock time.
type Event struct {
	At       time.Time
	Type     uint8 // NoteOn, NoteOff
	Channel  uint8
	Note     uint8
	Velocity uint8
	seq      uint64
}

// eventQueue is a min-heap ordered by time, then by insertion.
type eventQueue []Event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].At.Equal(q[j].At) {
		return q[i].seq < q[j].seq
	}
	return q[i].At.Before(q[j].At)
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)   { *q = append(*q, x.(Event)) }
func (q *eventQueue) Pop() any {
	old := *q
	ev := old[len(old)-1]
	*q = old[:len(old)-1]
	return ev
}

func (q *eventQueue) push(ev Event) { heap.Push(q, ev) }
func (q *eventQueue) pop() Event    { return heap.Pop(q).(Event) }

func (q eventQueue) peek() (Event, bool) {
	if len(q) == 0 {
		return Event{}, false
	}
	return q[0], true
}

// dropNoteOns removes queued note-ons and keeps note-offs so nothing hangs.
func (q *eventQueue) dropNoteOns() int {
	kept := (*q)[:0]
	n := 0
	for _, ev := range *q {
		if ev.Type == NoteOn {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	*q = kept
	heap.Init(q)
	return n
}
