package kernel

import (
	"bytes"
	"fmt"
	"io"

	"minikernel/hal"

	"github.com/sirupsen/logrus"
)

// fakeHalt is what fakePlatform.Fatal panics with.
type fakeHalt string

type switchRec struct {
	save, restore *hal.Context
}

// fakePlatform is a scripted hal.Platform. Context switches are recorded and
// return at once, so a test drives every process from one goroutine.
type fakePlatform struct {
	handlers map[hal.Event]hal.Handler

	regs     [hal.NumRegisters]uint64
	user     bool
	fromUser bool
	level    hal.Level
	levels   []hal.Level

	programs map[string]bool
	images   map[*hal.Image]bool
	stacks   map[*hal.Stack]bool
	contexts map[*hal.Context]string
	switches []switchRec
	running  *hal.Context

	mem  []byte
	out  bytes.Buffer
	port []byte

	// onWait runs each time the kernel idles; it stands in for an interrupt.
	onWait func()
	waits  int

	// tickOnUnmask delivers a clock tick every time the level drops below
	// Level3, as the CPU does with a tick that arrived while masked.
	tickOnUnmask bool
	unmaskTicks  int

	fatal string
}

func newFake(progs ...string) *fakePlatform {
	f := &fakePlatform{
		handlers: make(map[hal.Event]hal.Handler),
		programs: make(map[string]bool),
		images:   make(map[*hal.Image]bool),
		stacks:   make(map[*hal.Stack]bool),
		contexts: make(map[*hal.Context]string),
		mem:      make([]byte, 4096),
		level:    hal.Level3,
	}
	for _, p := range progs {
		f.programs[p] = true
	}
	return f
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// newTestKernel boots a kernel whose init program is init.
func newTestKernel(f *fakePlatform, procs int, init string) *Kernel {
	k := New(f, Config{MaxProcs: procs, InitProgram: init, Audit: true, Log: quietLog()})
	if err := k.Boot(); err != nil {
		panic(err)
	}
	f.level = hal.Level0
	f.user = true
	return k
}

func (f *fakePlatform) InstallHandler(ev hal.Event, fn hal.Handler) { f.handlers[ev] = fn }

func (f *fakePlatform) CreateImage(prog string) (*hal.Image, hal.Entry, error) {
	if !f.programs[prog] {
		return nil, nil, fmt.Errorf("load %q: %w", prog, hal.ErrNoProgram)
	}
	img := &hal.Image{}
	f.images[img] = true
	return img, func() {}, nil
}

func (f *fakePlatform) ReleaseImage(img *hal.Image) {
	if !f.images[img] {
		f.Fatal("double image release")
	}
	delete(f.images, img)
}

func (f *fakePlatform) AllocateStack(size int) *hal.Stack {
	s := &hal.Stack{}
	f.stacks[s] = true
	return s
}

func (f *fakePlatform) ReleaseStack(s *hal.Stack) {
	if !f.stacks[s] {
		f.Fatal("double stack release")
	}
	delete(f.stacks, s)
}

func (f *fakePlatform) BuildInitialContext(img *hal.Image, stack *hal.Stack, size int, entry hal.Entry) *hal.Context {
	ctx := &hal.Context{}
	f.contexts[ctx] = "built"
	return ctx
}

func (f *fakePlatform) SwitchContext(save, restore *hal.Context) {
	f.switches = append(f.switches, switchRec{save: save, restore: restore})
	f.running = restore
}

func (f *fakePlatform) SetInterruptLevel(l hal.Level) hal.Level {
	prev := f.level
	f.level = l
	f.levels = append(f.levels, l)
	if f.tickOnUnmask && prev == hal.Level3 && l < hal.Level3 {
		f.unmaskTicks++
		f.trap(hal.EventClock)
	}
	return prev
}

func (f *fakePlatform) WaitForInterrupt() {
	f.waits++
	if f.onWait == nil {
		f.Fatal("idle forever")
	}
	f.onWait()
}

func (f *fakePlatform) ReadRegister(i int) uint64     { return f.regs[i] }
func (f *fakePlatform) WriteRegister(i int, v uint64) { f.regs[i] = v }
func (f *fakePlatform) FromUserMode() bool            { return f.fromUser }

func (f *fakePlatform) ReadPort(p hal.Port) byte {
	if p != hal.PortTerminal || len(f.port) == 0 {
		return 0xFF
	}
	b := f.port[0]
	f.port = f.port[1:]
	return b
}

func (f *fakePlatform) span(addr uint64, n int) ([]byte, error) {
	if addr < hal.NullGuard || addr+uint64(n) > uint64(len(f.mem)) {
		f.trap(hal.EventMemFault)
		return nil, hal.ErrFault
	}
	return f.mem[addr : addr+uint64(n)], nil
}

func (f *fakePlatform) WriteOutput(addr uint64, n int) error {
	b, err := f.span(addr, n)
	if err != nil {
		return err
	}
	f.out.Write(b)
	return nil
}

func (f *fakePlatform) CopyOut(addr uint64, b []byte) error {
	dst, err := f.span(addr, len(b))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

func (f *fakePlatform) CopyInString(addr uint64, max int) (string, error) {
	b, err := f.span(addr, 1)
	if err != nil {
		return "", err
	}
	b = f.mem[addr:]
	if i := bytes.IndexByte(b, 0); i >= 0 && i <= max {
		return string(b[:i]), nil
	}
	return "", hal.ErrFault
}

func (f *fakePlatform) Fatal(msg string) {
	f.fatal = msg
	panic(fakeHalt(msg))
}

// trap enters a handler the way the CPU does: kernel mode, level raised.
func (f *fakePlatform) trap(ev hal.Event) {
	user, fromUser, level := f.user, f.fromUser, f.level
	f.fromUser = f.user
	f.user = false
	if ev == hal.EventClock && f.level < hal.Level3 {
		f.level = hal.Level3
	} else if f.level < hal.Level1 {
		f.level = hal.Level1
	}
	f.handlers[ev]()
	f.user, f.fromUser, f.level = user, fromUser, level
}

// syscall issues a system call from the current mode and returns register 0.
func (f *fakePlatform) syscall(nr uint64, args ...uint64) int64 {
	f.regs[0] = nr
	for i, a := range args {
		f.regs[i+1] = a
	}
	f.trap(hal.EventSyscall)
	return int64(f.regs[0])
}

// poke stores a NUL-terminated string in fake memory and returns its address.
func (f *fakePlatform) poke(addr uint64, s string) uint64 {
	copy(f.mem[addr:], s)
	f.mem[addr+uint64(len(s))] = 0
	return addr
}

// catchFatal runs fn and returns the Fatal message it raised, if any.
func catchFatal(fn func()) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			h, ok := r.(fakeHalt)
			if !ok {
				panic(r)
			}
			msg = string(h)
		}
	}()
	fn()
	return ""
}
