package hal

import "sync/atomic"

const fifoSlots = 64

// byteFIFO is the terminal receive buffer: many producers (keyboard pumps),
// one consumer (the context reading the data port). It never allocates.
type byteFIFO struct {
	_     [0]func() // prevent accidental copying.
	head  atomic.Uint32
	tail  atomic.Uint32
	slots [fifoSlots]atomic.Uint32
}

// tryPush reserves a slot and stores b, returning false when full.
func (q *byteFIFO) tryPush(b byte) bool {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		if head-tail >= fifoSlots {
			return false
		}
		if q.head.CompareAndSwap(head, head+1) {
			// Slot values carry a ready bit so the consumer never reads a
			// reserved but unwritten slot.
			q.slots[head%fifoSlots].Store(uint32(b) | 0x100)
			return true
		}
	}
}

// tryPop removes the oldest byte, returning false when empty.
func (q *byteFIFO) tryPop() (byte, bool) {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail == head {
		return 0, false
	}
	slot := &q.slots[tail%fifoSlots]
	v := slot.Load()
	if v&0x100 == 0 {
		return 0, false
	}
	slot.Store(0)
	q.tail.Store(tail + 1)
	return byte(v), true
}

func (q *byteFIFO) len() int {
	return int(q.head.Load() - q.tail.Load())
}
