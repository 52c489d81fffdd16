// Package user is the library user programs link against: system call
// stubs, formatted output and a few raw machine instructions.
package user

import (
	"encoding/binary"
	"fmt"

	"minikernel/hal"
	"minikernel/kernel"
)

// Machine is the user-mode instruction set of the processor a program runs on.
type Machine interface {
	Syscall(nr uint64, args ...uint64) uint64
	Step()
	Div(a, b int64) int64
	Load(addr uint64) byte
	Store(addr uint64, v byte)
	StoreBytes(addr uint64, p []byte)
	LoadBytes(addr uint64, n int) []byte
	AddressSpace() (lo, hi uint64)
}

var _ Machine = (*hal.CPU)(nil)

// Fixed layout of the stub area at the bottom of every address space.
const (
	refArea   = 0x100 // program reference for create_process
	timesArea = 0x200 // get_times result
	bufArea   = 0x240 // write buffer, runs to the end of the space
)

// Times is the per-process accounting returned by get_times.
type Times struct {
	User   uint32
	System uint32
}

// Proc is a running program's handle on its process.
type Proc struct {
	m    Machine
	name string
	args []string
}

// NewProc returns the handle for a program started as name with args.
func NewProc(m Machine, name string, args []string) *Proc {
	return &Proc{m: m, name: name, args: args}
}

// Name returns the program name the process was created from.
func (p *Proc) Name() string { return p.name }

// Args returns the arguments that followed the program name.
func (p *Proc) Args() []string { return p.args }

func (p *Proc) call(nr uint64, args ...uint64) int {
	return int(int64(p.m.Syscall(nr, args...)))
}

// CreateProcess starts prog ("name arg ...") and returns its id, or -1.
func (p *Proc) CreateProcess(prog string) int {
	if len(prog) >= kernel.MaxProgramRef {
		return -1
	}
	p.m.StoreBytes(refArea, append([]byte(prog), 0))
	return p.call(kernel.SysCreateProcess, refArea)
}

// TerminateProcess ends the calling process. It does not return.
func (p *Proc) TerminateProcess() int {
	return p.call(kernel.SysTerminateProcess)
}

// Write sends b to the console and returns 0, or -1.
func (p *Proc) Write(b []byte) int {
	_, hi := p.m.AddressSpace()
	room := int(hi) - bufArea
	if room <= 0 {
		return -1
	}
	for len(b) > 0 {
		n := len(b)
		if n > room {
			n = room
		}
		p.m.StoreBytes(bufArea, b[:n])
		if r := p.call(kernel.SysWrite, bufArea, uint64(n)); r < 0 {
			return r
		}
		b = b[n:]
	}
	return 0
}

// Printf formats according to format and writes the result to the console.
func (p *Proc) Printf(format string, a ...any) int {
	return p.Write([]byte(fmt.Sprintf(format, a...)))
}

// GetID returns the caller's process id.
func (p *Proc) GetID() int {
	return p.call(kernel.SysGetID)
}

// Sleep blocks the caller for secs seconds.
func (p *Proc) Sleep(secs uint) int {
	return p.call(kernel.SysSleep, uint64(secs))
}

// GetTimes returns the clock ticks since boot and, when t is not nil, fills
// it with the caller's own accounting.
func (p *Proc) GetTimes(t *Times) int {
	if t == nil {
		return p.call(kernel.SysGetTimes, 0)
	}
	r := p.call(kernel.SysGetTimes, timesArea)
	if r < 0 {
		return r
	}
	b := p.m.LoadBytes(timesArea, kernel.TimesSize)
	t.User = binary.LittleEndian.Uint32(b[0:4])
	t.System = binary.LittleEndian.Uint32(b[4:8])
	return r
}

// TimesAt calls get_times with a raw result address.
func (p *Proc) TimesAt(addr uint64) int {
	return p.call(kernel.SysGetTimes, addr)
}

// Spin executes n instructions that do nothing.
func (p *Proc) Spin(n int) {
	for i := 0; i < n; i++ {
		p.m.Step()
	}
}

// Div divides a by b. A zero divisor raises an arithmetic exception.
func (p *Proc) Div(a, b int64) int64 { return p.m.Div(a, b) }

// Load reads the byte at addr.
func (p *Proc) Load(addr uint64) byte { return p.m.Load(addr) }

// Store writes v at addr.
func (p *Proc) Store(addr uint64, v byte) { p.m.Store(addr, v) }
