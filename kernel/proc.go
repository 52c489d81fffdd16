package kernel

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// createProcess loads prog into a free slot and queues it as Ready. On
// failure the table is left untouched.
func (k *Kernel) createProcess(prog string) (PID, error) {
	pid, ok := k.findFreeSlot()
	if !ok {
		return NoPID, fmt.Errorf("create %q: %w", prog, ErrNoFreeSlot)
	}

	img, entry, err := k.p.CreateImage(prog)
	if err != nil {
		return NoPID, fmt.Errorf("create %q: %w", prog, err)
	}

	// The slot stays Unused until everything is allocated: the clock may
	// audit the table from any platform call.
	stack := k.p.AllocateStack(k.cfg.StackSize)
	ctx := k.p.BuildInitialContext(img, stack, k.cfg.StackSize, entry)

	p := k.pcb(pid)
	p.reset(pid)
	p.Program = prog
	p.Image = img
	p.Stack = stack
	p.Context = ctx

	k.masked(func() {
		p.State = Ready
		k.insertTail(&k.ready, pid)
	})

	k.procLog(pid).WithField("prog", prog).Debug("process created")
	return pid, nil
}

// retire ends the current process: its image goes first, it is taken off the
// CPU, the next process is chosen, its stack is freed, the slot returns to
// the pool and control passes to the next process without saving anything.
func (k *Kernel) retire() outcome {
	old := k.current
	p := k.pcb(old)

	k.p.ReleaseImage(p.Image)
	p.Image = nil
	k.masked(func() {
		p.State = Terminated
		k.unlink(old)
	})

	next := k.dispatch()
	k.log.WithFields(logrus.Fields{"from": old, "to": next, "tick": k.ticks}).Info("context switch on exit")

	k.p.ReleaseStack(p.Stack)
	p.reset(old)
	k.audit("retire")

	k.p.SwitchContext(nil, k.pcb(next).Context)
	return transferred
}
