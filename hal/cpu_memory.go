package hal

import (
	"bytes"
	"fmt"
)

// CreateImage loads prog into a fresh address space.
func (c *CPU) CreateImage(prog string) (*Image, Entry, error) {
	c.poll()
	if c.loader == nil {
		return nil, nil, fmt.Errorf("load %q: %w", prog, ErrNoProgram)
	}
	entry, err := c.loader.Load(prog)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	img := &Image{id: c.nextID, ref: prog, mem: make([]byte, c.cfg.ImageSize)}
	c.images[img] = struct{}{}
	return img, entry, nil
}

// ReleaseImage frees an image. Releasing one twice is fatal.
func (c *CPU) ReleaseImage(img *Image) {
	c.poll()
	c.mu.Lock()
	_, ok := c.images[img]
	delete(c.images, img)
	c.mu.Unlock()
	if !ok {
		c.Fatal("release image: not allocated (double free?)")
	}
	img.mem = nil
}

// AllocateStack returns a zeroed stack of size bytes.
func (c *CPU) AllocateStack(size int) *Stack {
	c.poll()
	if size <= 0 {
		c.Fatal(fmt.Sprintf("allocate stack: bad size %d", size))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	s := &Stack{id: c.nextID, buf: make([]byte, size)}
	c.stacks[s] = struct{}{}
	return s
}

// ReleaseStack frees a stack. Releasing one twice is fatal.
func (c *CPU) ReleaseStack(s *Stack) {
	c.poll()
	c.mu.Lock()
	_, ok := c.stacks[s]
	delete(c.stacks, s)
	c.mu.Unlock()
	if !ok {
		c.Fatal("release stack: not allocated (double free?)")
	}
}

// Stats reports resources currently held through the CPU.
func (c *CPU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Images: len(c.images), Stacks: len(c.stacks), Switches: c.switches}
}

// span returns the bytes [addr, addr+n) of the current address space.
func (c *CPU) span(addr uint64, n int) ([]byte, bool) {
	img := c.st.space
	if img == nil || img.mem == nil || n < 0 {
		return nil, false
	}
	size := uint64(len(img.mem))
	if addr < NullGuard || addr >= size || uint64(n) > size-addr {
		return nil, false
	}
	return img.mem[addr : addr+uint64(n)], true
}

// fault raises a memory exception for the current mode and reports ErrFault
// if the handler returns.
func (c *CPU) fault(addr uint64) error {
	c.trap(EventMemFault)
	return fmt.Errorf("access %#x: %w", addr, ErrFault)
}

// WriteOutput copies n bytes at addr of the current address space to the console.
func (c *CPU) WriteOutput(addr uint64, n int) error {
	c.poll()
	b, ok := c.span(addr, n)
	if !ok {
		return c.fault(addr)
	}
	_, _ = c.cfg.Out.Write(b)
	return nil
}

// CopyOut stores b at addr of the current address space.
func (c *CPU) CopyOut(addr uint64, b []byte) error {
	c.poll()
	dst, ok := c.span(addr, len(b))
	if !ok {
		return c.fault(addr)
	}
	copy(dst, b)
	return nil
}

// CopyInString reads a NUL-terminated string of at most max bytes at addr.
func (c *CPU) CopyInString(addr uint64, max int) (string, error) {
	c.poll()
	if _, ok := c.span(addr, 1); !ok {
		return "", c.fault(addr)
	}
	img := c.st.space
	end := addr + uint64(max)
	if end > uint64(len(img.mem)) {
		end = uint64(len(img.mem))
	}
	b := img.mem[addr:end]
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", fmt.Errorf("string at %#x: no terminator within %d bytes: %w", addr, max, ErrFault)
	}
	return string(b[:i]), nil
}
