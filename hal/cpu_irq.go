package hal

import (
	"context"
	"fmt"
)

// Raise posts an interrupt request. It is safe to call from any goroutine.
func (c *CPU) Raise(ev Event) {
	c.raise(ev)
}

func (c *CPU) raise(ev Event) uint64 {
	if !ev.async() {
		panic(fmt.Sprintf("hal: %s cannot be raised by a device", ev))
	}
	c.mu.Lock()
	c.pending[ev]++
	c.raised[ev]++
	n := c.raised[ev]
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
	return n
}

// RaiseSync posts an interrupt request and waits until its handler has run.
func (c *CPU) RaiseSync(ctx context.Context, ev Event) error {
	target := c.raise(ev)
	for {
		c.mu.Lock()
		got := c.delivered[ev]
		ch := c.progress
		c.mu.Unlock()
		if got >= target {
			return nil
		}
		select {
		case <-ch:
		case <-c.done:
			if err := c.Err(); err != nil {
				return err
			}
			return ErrHalted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Type latches a byte in the terminal data register and raises the terminal
// interrupt. It reports false if the receive buffer overflowed.
func (c *CPU) Type(b byte) bool {
	if !c.terminal.tryPush(b) {
		return false
	}
	c.Raise(EventTerminal)
	return true
}

// next picks the highest-priority pending request above the current level.
func (c *CPU) next() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range [...]Event{EventClock, EventTerminal, EventSoftware} {
		if c.pending[ev] > 0 && ev.priority() > c.st.level {
			c.pending[ev]--
			return ev, true
		}
	}
	return 0, false
}

func (c *CPU) deliverable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ev := range [...]Event{EventClock, EventTerminal, EventSoftware} {
		if c.pending[ev] > 0 && ev.priority() > c.st.level {
			return true
		}
	}
	return false
}

// poll is an instruction boundary: it delivers every pending interrupt the
// current level lets through.
func (c *CPU) poll() {
	c.exitIfHalted()
	for {
		ev, ok := c.next()
		if !ok {
			return
		}
		c.trap(ev)
	}
}

// trap enters kernel mode and runs the handler for ev. The saved frame lives
// on the calling thread, so a handler that switches context returns here only
// when this thread is resumed.
func (c *CPU) trap(ev Event) {
	saved := c.st
	c.st.fromUser = c.st.user
	c.st.user = false
	if p := ev.priority(); p > c.st.level {
		c.st.level = p
	}

	h := c.handlers[ev]
	if h == nil {
		c.Fatal(fmt.Sprintf("%s with no handler installed", ev))
	}
	h()
	c.markDelivered(ev)

	c.st.user = saved.user
	c.st.fromUser = saved.fromUser
	c.st.level = saved.level
	c.poll()
}

func (c *CPU) markDelivered(ev Event) {
	c.mu.Lock()
	c.delivered[ev]++
	close(c.progress)
	c.progress = make(chan struct{})
	c.mu.Unlock()
}
