package hal

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader resolves a program reference into an entry point.
type Loader interface {
	Load(prog string) (Entry, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(prog string) (Entry, error)

func (f LoaderFunc) Load(prog string) (Entry, error) { return f(prog) }

// CPUConfig controls the host CPU simulator.
type CPUConfig struct {
	// ImageSize is the size of each process address space in bytes.
	ImageSize int
	// Out receives console output (WriteOutput).
	Out io.Writer
	// Log receives CPU diagnostics. Defaults to the logrus standard logger.
	Log *logrus.Entry
}

// DefaultImageSize is the address-space size used when CPUConfig.ImageSize is zero.
const DefaultImageSize = 16 * 1024

// NullGuard is the size of the unmapped region at address 0.
const NullGuard = 256

// CPU is a simulated single-core processor implementing Platform.
//
// Every Context is backed by a goroutine, and only the goroutine holding the
// CPU executes. Devices post interrupts from any goroutine with Raise; they
// are delivered at instruction boundaries on the goroutine holding the CPU.
type CPU struct {
	cfg    CPUConfig
	loader Loader
	log    *logrus.Entry

	handlers [numEvents]Handler

	mu        sync.Mutex
	pending   [numEvents]uint64
	raised    [numEvents]uint64
	delivered [numEvents]uint64
	progress  chan struct{}
	err       error

	kick     chan struct{}
	done     chan struct{}
	haltOnce sync.Once

	terminal byteFIFO

	// Owned by the goroutine holding the CPU.
	st       cpuState
	images   map[*Image]struct{}
	stacks   map[*Stack]struct{}
	nextID   uint32
	switches uint64
}

type cpuState struct {
	regs     [NumRegisters]uint64
	user     bool
	fromUser bool
	level    Level
	space    *Image
}

// Context is a saved processor state plus the execution thread behind it.
type Context struct {
	id      uint32
	st      cpuState
	entry   Entry
	started bool
	wake    chan struct{}
}

// Image is a loaded program and its address space.
type Image struct {
	id  uint32
	ref string
	mem []byte
}

// Ref returns the program reference the image was created from.
func (img *Image) Ref() string { return img.ref }

// Stack is a process execution stack.
type Stack struct {
	id  uint32
	buf []byte
}

// Size returns the stack size in bytes.
func (s *Stack) Size() int { return len(s.buf) }

// Stats reports resources currently held through the CPU.
type Stats struct {
	Images   int
	Stacks   int
	Switches uint64
}

var _ Platform = (*CPU)(nil)

// NewCPU returns a CPU ready to Run.
func NewCPU(loader Loader, cfg CPUConfig) *CPU {
	if cfg.ImageSize <= NullGuard {
		cfg.ImageSize = DefaultImageSize
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CPU{
		cfg:      cfg,
		loader:   loader,
		log:      cfg.Log.WithField("dev", "cpu"),
		progress: make(chan struct{}),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		images:   make(map[*Image]struct{}),
		stacks:   make(map[*Stack]struct{}),
	}
}

// Run executes boot on a fresh thread in kernel mode with every interrupt
// masked, and blocks until the CPU halts or ctx is done.
func (c *CPU) Run(ctx context.Context, boot func()) error {
	c.st = cpuState{level: Level3}
	go func() {
		defer c.recoverKernel()
		boot()
		c.Fatal("kernel reactivated unexpectedly")
	}()

	select {
	case <-ctx.Done():
		c.halt(ctx.Err())
	case <-c.done:
	}
	return c.Err()
}

// Err returns why the CPU halted, or nil while it is running.
func (c *CPU) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the CPU halts.
func (c *CPU) Done() <-chan struct{} { return c.done }

// Fatal halts the system with a diagnostic and stops the calling thread.
func (c *CPU) Fatal(msg string) {
	c.log.WithField("panic", msg).Error("system halted")
	c.halt(&FatalError{Msg: msg})
	runtime.Goexit()
}

func (c *CPU) halt(err error) {
	c.haltOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *CPU) halted() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// exitIfHalted stops the calling thread once the CPU is gone.
func (c *CPU) exitIfHalted() {
	if c.halted() {
		runtime.Goexit()
	}
}

func (c *CPU) recoverKernel() {
	if r := recover(); r != nil {
		c.Fatal(fmt.Sprintf("kernel fault: %v", r))
	}
}

// InstallHandler registers the routine for an event.
func (c *CPU) InstallHandler(ev Event, fn Handler) {
	if ev >= numEvents {
		c.Fatal(fmt.Sprintf("install handler: bad event %d", ev))
	}
	c.handlers[ev] = fn
}

// SetInterruptLevel sets the mask and returns the previous one. Lowering it
// delivers anything that became unmasked.
func (c *CPU) SetInterruptLevel(l Level) Level {
	prev := c.st.level
	c.st.level = l
	if l < prev {
		c.poll()
	}
	return prev
}

// WaitForInterrupt halts the processor until an interrupt that the current
// level lets through has been handled.
func (c *CPU) WaitForInterrupt() {
	for {
		if c.deliverable() {
			c.poll()
			return
		}
		select {
		case <-c.kick:
		case <-c.done:
			runtime.Goexit()
		}
	}
}

// FromUserMode reports whether the innermost trap interrupted user code.
func (c *CPU) FromUserMode() bool { return c.st.fromUser }

// ReadRegister returns general register i.
func (c *CPU) ReadRegister(i int) uint64 {
	c.poll()
	if i < 0 || i >= NumRegisters {
		c.Fatal(fmt.Sprintf("read register %d: no such register", i))
	}
	return c.st.regs[i]
}

// WriteRegister sets general register i.
func (c *CPU) WriteRegister(i int, v uint64) {
	c.poll()
	if i < 0 || i >= NumRegisters {
		c.Fatal(fmt.Sprintf("write register %d: no such register", i))
	}
	c.st.regs[i] = v
}

// ReadPort reads one byte from an I/O port.
func (c *CPU) ReadPort(p Port) byte {
	c.poll()
	if p != PortTerminal {
		return 0xFF
	}
	b, _ := c.terminal.tryPop()
	return b
}
