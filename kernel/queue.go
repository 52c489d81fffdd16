package kernel

// queue is a FIFO of PCBs linked through PCB.next. Links are slot indexes
// into the process table, so a queue never holds a dangling reference.
type queue struct {
	id   queueID
	head PID
	tail PID
	n    int
}

func newQueue(id queueID) queue {
	return queue{id: id, head: NoPID, tail: NoPID}
}

func (q *queue) empty() bool { return q.head == NoPID }

// insertTail appends pid. The PCB must not be linked into any queue.
func (k *Kernel) insertTail(q *queue, pid PID) {
	p := k.pcb(pid)
	if p.queue != inNone {
		k.fatalf("insert pid %d into %s queue: already linked into %s queue", pid, q.id, p.queue)
		return
	}
	p.next = NoPID
	p.queue = q.id
	if q.head == NoPID {
		q.head = pid
	} else {
		k.pcb(q.tail).next = pid
	}
	q.tail = pid
	q.n++
}

// removeHead unlinks and returns the first PCB. The queue must not be empty.
func (k *Kernel) removeHead(q *queue) PID {
	pid := q.head
	if pid == NoPID {
		k.fatalf("remove head of empty %s queue", q.id)
		return NoPID
	}
	p := k.pcb(pid)
	q.head = p.next
	if q.head == NoPID {
		q.tail = NoPID
	}
	p.next = NoPID
	p.queue = inNone
	q.n--
	return pid
}

// removeSpecific unlinks pid wherever it sits in q. It reports whether pid
// was found.
func (k *Kernel) removeSpecific(q *queue, pid PID) bool {
	if pid == NoPID || q.head == NoPID {
		return false
	}
	if q.head == pid {
		k.removeHead(q)
		return true
	}
	prev := q.head
	for prev != NoPID && k.pcb(prev).next != pid {
		prev = k.pcb(prev).next
	}
	if prev == NoPID {
		return false
	}
	p := k.pcb(pid)
	k.pcb(prev).next = p.next
	if q.tail == pid {
		q.tail = prev
	}
	p.next = NoPID
	p.queue = inNone
	q.n--
	return true
}

// unlink removes pid from whichever queue it is linked into.
func (k *Kernel) unlink(pid PID) {
	switch k.pcb(pid).queue {
	case inReady:
		k.removeSpecific(&k.ready, pid)
	case inSleeping:
		k.removeSpecific(&k.sleeping, pid)
	}
}

// members returns the PIDs of q in order.
func (k *Kernel) members(q *queue) []PID {
	out := make([]PID, 0, q.n)
	for pid := q.head; pid != NoPID; pid = k.pcb(pid).next {
		out = append(out, pid)
		if len(out) > len(k.procs) {
			break
		}
	}
	return out
}
