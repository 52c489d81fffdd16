package kernel

import (
	"fmt"
	"strconv"

	"minikernel/hal"

	"github.com/sirupsen/logrus"
)

// outcome tells the trap path whether the calling context still owns the CPU.
type outcome uint8

const (
	// resumed: the caller continues and its result register is live.
	resumed outcome = iota
	// transferred: control went to another context, so nothing may be
	// written on the caller's behalf.
	transferred
)

func (k *Kernel) arithFault() {
	k.userFault("arithmetic exception")
}

func (k *Kernel) memFault() {
	k.userFault("memory exception")
}

// userFault retires the current process, or halts if the fault hit kernel code.
func (k *Kernel) userFault(what string) {
	if !k.p.FromUserMode() {
		k.fatalf("%s while inside the kernel", what)
		return
	}
	k.procLog(k.current).Warn(what + " in process, terminating it")
	k.retire()
}

// clockTick advances time, wakes expired sleepers in queue order and charges
// the tick to the running process.
func (k *Kernel) clockTick() {
	k.ticks++
	k.log.WithField("tick", k.ticks).Trace("clock interrupt")

	k.masked(func() {
		pid := k.sleeping.head
		for pid != NoPID {
			p := k.pcb(pid)
			next := p.next
			p.SleepTicks--
			if p.SleepTicks <= 0 {
				p.SleepTicks = 0
				p.State = Ready
				k.removeSpecific(&k.sleeping, pid)
				k.insertTail(&k.ready, pid)
				k.procLog(pid).Debug("woke up")
			}
			pid = next
		}
	})

	if k.current != NoPID {
		if p := k.pcb(k.current); p.State == Running {
			if k.p.FromUserMode() {
				p.UserTicks++
			} else {
				p.SystemTicks++
			}
		}
	}
	k.audit("clock")
}

func (k *Kernel) terminalInterrupt() {
	c := k.p.ReadPort(hal.PortTerminal)
	k.log.WithFields(logrus.Fields{"char": strconv.QuoteRune(rune(c)), "tick": k.ticks}).Info("terminal interrupt")
}

func (k *Kernel) softwareInterrupt() {
	k.log.WithField("tick", k.ticks).Info("software interrupt")
}

// String renders the process table for diagnostics.
func (k *Kernel) String() string {
	s := fmt.Sprintf("tick=%d current=%d ready=%v sleeping=%v", k.ticks, k.current, k.ReadyQueue(), k.SleepingQueue())
	for _, p := range k.Procs() {
		s += fmt.Sprintf("\n  %d %-10s %-16q sleep=%d user=%d sys=%d", p.ID, p.State, p.Program, p.SleepTicks, p.UserTicks, p.SystemTicks)
	}
	return s
}
