package hal

import (
	"fmt"
	"runtime"
)

// BuildInitialContext prepares a context that starts executing entry in user
// mode, with every interrupt enabled, inside img's address space.
func (c *CPU) BuildInitialContext(img *Image, stack *Stack, size int, entry Entry) *Context {
	c.poll()
	if img == nil || stack == nil || entry == nil {
		c.Fatal("build context: missing image, stack or entry")
	}
	if size <= 0 || size > stack.Size() {
		c.Fatal(fmt.Sprintf("build context: stack size %d out of range", size))
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()
	return &Context{
		id:    id,
		st:    cpuState{user: true, level: Level0, space: img},
		entry: entry,
		wake:  make(chan struct{}, 1),
	}
}

// SwitchContext saves the running state into save and resumes restore on
// its own thread. A nil save slot discards the caller: its thread exits and
// SwitchContext never returns.
func (c *CPU) SwitchContext(save, restore *Context) {
	c.exitIfHalted()
	if restore == nil {
		c.Fatal("switch context: nothing to restore")
	}
	c.mu.Lock()
	c.switches++
	c.mu.Unlock()

	if save == restore {
		return
	}
	if save != nil {
		save.st = c.st
	}
	c.st = restore.st

	if !restore.started {
		restore.started = true
		go c.thread(restore)
	} else {
		restore.wake <- struct{}{}
	}

	if save == nil {
		runtime.Goexit()
	}
	select {
	case <-save.wake:
	case <-c.done:
		runtime.Goexit()
	}
}

// thread runs a context from its entry point. A Go panic in user mode is a
// memory exception; in kernel mode it is fatal.
func (c *CPU) thread(ctx *Context) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if !c.st.user {
			c.Fatal(fmt.Sprintf("kernel fault: %v", r))
		}
		c.log.WithField("fault", r).Debug("user fault")
		c.trap(EventMemFault)
		c.Fatal("memory exception handler returned to a dead program")
	}()

	c.poll()
	ctx.entry()
	c.Fatal("program ran past its entry point without terminating")
}
