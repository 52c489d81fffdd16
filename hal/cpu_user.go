package hal

// User-mode instructions. These are what a user program executes; each one is
// an instruction boundary where pending interrupts are taken.

// Syscall loads nr and args into registers 0..n, traps into the kernel and
// returns register 0.
func (c *CPU) Syscall(nr uint64, args ...uint64) uint64 {
	c.poll()
	if len(args) >= NumRegisters {
		args = args[:NumRegisters-1]
	}
	c.st.regs[0] = nr
	for i, a := range args {
		c.st.regs[i+1] = a
	}
	c.trap(EventSyscall)
	return c.st.regs[0]
}

// Step executes one instruction that touches nothing.
func (c *CPU) Step() {
	c.poll()
}

// Div divides a by b, raising an arithmetic exception on a zero divisor.
func (c *CPU) Div(a, b int64) int64 {
	c.poll()
	if b == 0 {
		c.trap(EventArithFault)
		return 0
	}
	return a / b
}

// Load reads one byte of the current address space.
func (c *CPU) Load(addr uint64) byte {
	c.poll()
	b, ok := c.span(addr, 1)
	if !ok {
		_ = c.fault(addr)
		return 0
	}
	return b[0]
}

// Store writes one byte of the current address space.
func (c *CPU) Store(addr uint64, v byte) {
	c.poll()
	b, ok := c.span(addr, 1)
	if !ok {
		_ = c.fault(addr)
		return
	}
	b[0] = v
}

// StoreBytes writes p at addr of the current address space.
func (c *CPU) StoreBytes(addr uint64, p []byte) {
	c.poll()
	b, ok := c.span(addr, len(p))
	if !ok {
		_ = c.fault(addr)
		return
	}
	copy(b, p)
}

// LoadBytes reads n bytes at addr of the current address space.
func (c *CPU) LoadBytes(addr uint64, n int) []byte {
	c.poll()
	b, ok := c.span(addr, n)
	if !ok {
		_ = c.fault(addr)
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// AddressSpace returns the bounds of the usable address range.
func (c *CPU) AddressSpace() (lo, hi uint64) {
	if c.st.space == nil {
		return 0, 0
	}
	return NullGuard, uint64(len(c.st.space.mem))
}
