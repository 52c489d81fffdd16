package kernel

import (
	"fmt"

	"minikernel/hal"
)

// PID identifies a process. It equals the process table slot.
type PID int

// NoPID is the null process reference.
const NoPID PID = -1

// State is the scheduling state of a process control block.
type State uint8

const (
	Unused State = iota
	Ready
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// queueID names the queue a PCB is linked into.
type queueID uint8

const (
	inNone queueID = iota
	inReady
	inSleeping
)

func (q queueID) String() string {
	switch q {
	case inNone:
		return "none"
	case inReady:
		return "ready"
	case inSleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("queue(%d)", uint8(q))
	}
}

// PCB is a process control block.
type PCB struct {
	ID      PID
	State   State
	Program string

	Context *hal.Context
	Stack   *hal.Stack
	Image   *hal.Image

	next  PID
	queue queueID

	// SleepTicks counts down while the process is blocked in sleep.
	SleepTicks int64

	// UserTicks and SystemTicks count clock interrupts that found this
	// process running in user and kernel mode.
	UserTicks   uint64
	SystemTicks uint64
}

// reset returns the slot to its boot state.
func (p *PCB) reset(id PID) {
	*p = PCB{ID: id, State: Unused, next: NoPID}
}

// findFreeSlot returns the first Unused slot.
func (k *Kernel) findFreeSlot() (PID, bool) {
	for i := range k.procs {
		if k.procs[i].State == Unused {
			return PID(i), true
		}
	}
	return NoPID, false
}

func (k *Kernel) pcb(pid PID) *PCB {
	return &k.procs[pid]
}

// ProcInfo is a read-only view of a process control block.
type ProcInfo struct {
	ID          PID
	State       State
	Program     string
	SleepTicks  int64
	UserTicks   uint64
	SystemTicks uint64
}

// Procs returns every non-Unused slot in table order.
func (k *Kernel) Procs() []ProcInfo {
	var out []ProcInfo
	for i := range k.procs {
		p := &k.procs[i]
		if p.State == Unused {
			continue
		}
		out = append(out, ProcInfo{
			ID:          p.ID,
			State:       p.State,
			Program:     p.Program,
			SleepTicks:  p.SleepTicks,
			UserTicks:   p.UserTicks,
			SystemTicks: p.SystemTicks,
		})
	}
	return out
}
