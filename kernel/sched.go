package kernel

import "minikernel/hal"

// waitInterrupt idles the CPU with only software interrupts masked until an
// interrupt has been handled.
func (k *Kernel) waitInterrupt() {
	k.log.WithField("tick", k.ticks).Debug("no ready process, waiting for interrupt")

	prev := k.p.SetInterruptLevel(hal.Level1)
	k.p.WaitForInterrupt()
	k.p.SetInterruptLevel(prev)
}

// selectNext returns the head of the ready queue, idling until there is one.
// Plain FIFO: no priorities, no aging.
func (k *Kernel) selectNext() PID {
	for k.ready.empty() {
		k.waitInterrupt()
	}
	return k.ready.head
}

// dispatch takes the next ready process off the queue and makes it current.
// The state change and the unlink happen under one mask: lowering the level
// may deliver a clock tick, which audits the table.
func (k *Kernel) dispatch() PID {
	k.selectNext()
	pid := NoPID
	k.masked(func() {
		pid = k.removeHead(&k.ready)
		k.pcb(pid).State = Running
		k.current = pid
	})
	return pid
}
