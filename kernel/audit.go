package kernel

import (
	"errors"
	"fmt"
)

// ErrInvariant wraps every consistency violation found by CheckInvariants.
var ErrInvariant = errors.New("process table inconsistent")

// CheckInvariants walks the process table and both queues and reports the
// first inconsistency it finds.
func (k *Kernel) CheckInvariants() error {
	running := NoPID
	for i := range k.procs {
		p := &k.procs[i]
		if p.ID != PID(i) {
			return k.violation("slot %d holds pid %d", i, p.ID)
		}
		switch p.State {
		case Running:
			if running != NoPID {
				return k.violation("pids %d and %d both running", running, p.ID)
			}
			running = p.ID
			if p.queue != inNone {
				return k.violation("running pid %d linked into %s queue", p.ID, p.queue)
			}
		case Ready:
			if p.queue != inReady {
				return k.violation("ready pid %d linked into %s queue", p.ID, p.queue)
			}
		case Blocked:
			if p.queue != inSleeping {
				return k.violation("blocked pid %d linked into %s queue", p.ID, p.queue)
			}
		case Unused:
			if p.queue != inNone || p.Image != nil || p.Stack != nil || p.Context != nil {
				return k.violation("unused slot %d still holds resources", p.ID)
			}
		case Terminated:
			if p.queue != inNone {
				return k.violation("terminated pid %d linked into %s queue", p.ID, p.queue)
			}
		}
	}
	if running != NoPID && running != k.current {
		return k.violation("pid %d running but current is %d", running, k.current)
	}
	if err := k.checkQueue(&k.ready); err != nil {
		return err
	}
	return k.checkQueue(&k.sleeping)
}

func (k *Kernel) checkQueue(q *queue) error {
	n := 0
	last := NoPID
	for pid := q.head; pid != NoPID; pid = k.pcb(pid).next {
		if pid < 0 || int(pid) >= len(k.procs) {
			return k.violation("%s queue links to pid %d", q.id, pid)
		}
		if n++; n > len(k.procs) {
			return k.violation("%s queue has a cycle", q.id)
		}
		if got := k.pcb(pid).queue; got != q.id {
			return k.violation("pid %d found in %s queue but marked %s", pid, q.id, got)
		}
		last = pid
	}
	if last != q.tail {
		return k.violation("%s queue tail is %d, want %d", q.id, q.tail, last)
	}
	if n != q.n {
		return k.violation("%s queue counts %d, holds %d", q.id, q.n, n)
	}
	marked := 0
	for i := range k.procs {
		if k.procs[i].queue == q.id {
			marked++
		}
	}
	if marked != n {
		return k.violation("%d pids marked %s, %d linked", marked, q.id, n)
	}
	return nil
}

func (k *Kernel) violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
