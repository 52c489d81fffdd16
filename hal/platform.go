package hal

import (
	"errors"
	"fmt"
)

// Event identifies an exception, interrupt or trap source.
type Event uint8

const (
	EventArithFault Event = iota
	EventMemFault
	EventClock
	EventTerminal
	EventSyscall
	EventSoftware

	numEvents
)

func (e Event) String() string {
	switch e {
	case EventArithFault:
		return "arithmetic exception"
	case EventMemFault:
		return "memory exception"
	case EventClock:
		return "clock interrupt"
	case EventTerminal:
		return "terminal interrupt"
	case EventSyscall:
		return "system call"
	case EventSoftware:
		return "software interrupt"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// priority is the level an interrupt source needs to beat to be delivered.
// Exceptions and traps are synchronous and never masked.
func (e Event) priority() Level {
	switch e {
	case EventClock:
		return Level3
	case EventTerminal:
		return Level2
	case EventSoftware:
		return Level1
	default:
		return Level1
	}
}

func (e Event) async() bool {
	return e == EventClock || e == EventTerminal || e == EventSoftware
}

// Level is an interrupt priority mask. A source is delivered only while its
// priority is above the current level.
type Level uint8

const (
	Level0 Level = iota // everything enabled (user mode)
	Level1              // software interrupts masked
	Level2              // terminal masked too
	Level3              // clock masked too
)

// Port is an I/O port address.
type Port uint16

// PortTerminal is the terminal data register.
const PortTerminal Port = 0x60

// NumRegisters is the size of the general register file.
const NumRegisters = 8

// Handler is an installed exception/interrupt routine.
type Handler func()

// Entry is the initial program counter of a memory image.
type Entry func()

var (
	// ErrNoProgram is returned by CreateImage for an unknown program reference.
	ErrNoProgram = errors.New("no such program")
	// ErrFault reports an access outside the current address space.
	ErrFault = errors.New("bad address")
	// ErrHalted is returned once the CPU has stopped.
	ErrHalted = errors.New("cpu halted")
)

// FatalError is the diagnostic of an unrecoverable halt.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return "kernel panic: " + e.Msg }

func (e *FatalError) Is(target error) bool { return target == ErrHalted }

// Platform is the contract the kernel needs from the hardware layer.
//
// All methods are called from the context that currently owns the CPU.
type Platform interface {
	InstallHandler(ev Event, fn Handler)

	CreateImage(prog string) (*Image, Entry, error)
	ReleaseImage(img *Image)
	AllocateStack(size int) *Stack
	ReleaseStack(s *Stack)
	BuildInitialContext(img *Image, stack *Stack, size int, entry Entry) *Context

	// SwitchContext saves the running context into save (when non-nil) and
	// resumes restore. With a nil save slot it does not return.
	SwitchContext(save, restore *Context)

	SetInterruptLevel(l Level) Level
	WaitForInterrupt()

	ReadRegister(i int) uint64
	WriteRegister(i int, v uint64)
	FromUserMode() bool

	ReadPort(p Port) byte
	WriteOutput(addr uint64, n int) error
	CopyOut(addr uint64, b []byte) error
	CopyInString(addr uint64, max int) (string, error)

	// Fatal halts the system. It does not return on a real CPU.
	Fatal(msg string)
}
