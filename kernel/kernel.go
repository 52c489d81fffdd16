// Package kernel is a single-core kernel with a fixed process table, a FIFO
// ready queue, timed sleep and table-driven system calls. Everything it
// needs from the machine goes through hal.Platform.
package kernel

import (
	"errors"
	"fmt"

	"minikernel/hal"

	"github.com/sirupsen/logrus"
)

// Config sizes the kernel. Zero values take the defaults below.
type Config struct {
	// MaxProcs is the size of the process table.
	MaxProcs int
	// TicksPerSecond converts sleep seconds into clock ticks.
	TicksPerSecond int
	// StackSize is the stack handed to each process.
	StackSize int
	// InitProgram is the first process created at boot.
	InitProgram string
	// Audit checks the queue invariants after every handler and halts on a
	// violation.
	Audit bool
	// Log receives the kernel trace. Defaults to the logrus standard logger.
	Log *logrus.Entry
}

const (
	DefaultMaxProcs       = 16
	DefaultTicksPerSecond = 100
	DefaultStackSize      = 32 * 1024
	DefaultInitProgram    = "init"
)

var (
	// ErrNoFreeSlot is returned when the process table is full.
	ErrNoFreeSlot = errors.New("process table full")
	// ErrUnknownProgram is returned when no program matches a reference.
	ErrUnknownProgram = hal.ErrNoProgram
)

// Kernel owns every piece of process state. It is driven entirely by the
// handlers it installs on the platform and is not safe for use from more
// than one execution context at a time, which the platform guarantees.
type Kernel struct {
	p   hal.Platform
	cfg Config
	log *logrus.Entry

	procs    []PCB
	ready    queue
	sleeping queue
	current  PID
	ticks    uint64

	services [numSyscalls]service
}

// New builds a kernel on top of p. Call Boot to start it.
func New(p hal.Platform, cfg Config) *Kernel {
	if cfg.MaxProcs <= 0 {
		cfg.MaxProcs = DefaultMaxProcs
	}
	if cfg.TicksPerSecond <= 0 {
		cfg.TicksPerSecond = DefaultTicksPerSecond
	}
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.InitProgram == "" {
		cfg.InitProgram = DefaultInitProgram
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	k := &Kernel{
		p:        p,
		cfg:      cfg,
		log:      cfg.Log.WithField("sub", "kernel"),
		procs:    make([]PCB, cfg.MaxProcs),
		ready:    newQueue(inReady),
		sleeping: newQueue(inSleeping),
		current:  NoPID,
	}
	k.services = [numSyscalls]service{
		SysCreateProcess:    k.sysCreateProcess,
		SysTerminateProcess: k.sysTerminateProcess,
		SysWrite:            k.sysWrite,
		SysGetID:            k.sysGetID,
		SysSleep:            k.sysSleep,
		SysGetTimes:         k.sysGetTimes,
	}
	k.resetTable()
	return k
}

func (k *Kernel) resetTable() {
	for i := range k.procs {
		k.procs[i].reset(PID(i))
	}
	k.ready = newQueue(inReady)
	k.sleeping = newQueue(inSleeping)
	k.current = NoPID
}

// Boot installs the handlers, creates the init process and transfers control
// to it. On a real platform it does not return unless init cannot be created.
func (k *Kernel) Boot() error {
	k.p.InstallHandler(hal.EventArithFault, k.arithFault)
	k.p.InstallHandler(hal.EventMemFault, k.memFault)
	k.p.InstallHandler(hal.EventClock, k.clockTick)
	k.p.InstallHandler(hal.EventTerminal, k.terminalInterrupt)
	k.p.InstallHandler(hal.EventSyscall, k.syscallTrap)
	k.p.InstallHandler(hal.EventSoftware, k.softwareInterrupt)

	k.resetTable()

	pid, err := k.createProcess(k.cfg.InitProgram)
	if err != nil {
		err = fmt.Errorf("boot: %w", err)
		k.p.Fatal(fmt.Sprintf("init process not found: %v", err))
		return err
	}
	k.log.WithFields(logrus.Fields{"pid": pid, "prog": k.cfg.InitProgram}).Info("starting init")

	next := k.dispatch()
	k.p.SwitchContext(nil, k.pcb(next).Context)
	return nil
}

// Current returns the running process, or NoPID before boot.
func (k *Kernel) Current() PID { return k.current }

// Ticks returns the number of clock interrupts since boot.
func (k *Kernel) Ticks() uint64 { return k.ticks }

// ReadyQueue returns the ready queue in scheduling order.
func (k *Kernel) ReadyQueue() []PID { return k.members(&k.ready) }

// SleepingQueue returns the sleeping queue in wake-up order.
func (k *Kernel) SleepingQueue() []PID { return k.members(&k.sleeping) }

// masked runs fn with the clock masked and restores the previous level on
// every exit path.
func (k *Kernel) masked(fn func()) {
	prev := k.p.SetInterruptLevel(hal.Level3)
	defer k.p.SetInterruptLevel(prev)
	fn()
}

func (k *Kernel) fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	k.log.WithField("panic", msg).Error("kernel panic")
	k.p.Fatal(msg)
}

// audit runs the invariant check when Config.Audit is on.
func (k *Kernel) audit(where string) {
	if !k.cfg.Audit {
		return
	}
	if err := k.CheckInvariants(); err != nil {
		k.fatalf("%s: %v", where, err)
	}
}

func (k *Kernel) procLog(pid PID) *logrus.Entry {
	return k.log.WithFields(logrus.Fields{"pid": pid, "tick": k.ticks})
}
