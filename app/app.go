// Package app wires a HAL to the simulated CPU, the kernel and the sample
// programs.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"minikernel/hal"
	"minikernel/internal/buildinfo"
	"minikernel/internal/klog"
	"minikernel/kernel"
	"minikernel/user"
	"minikernel/user/programs"

	"github.com/sirupsen/logrus"
)

// Config selects the kernel and machine parameters.
type Config struct {
	Kernel kernel.Config
	// ImageSize is the address-space size of each process.
	ImageSize int
	// LogLevel is a logrus level name ("info" by default).
	LogLevel string
	// Programs adds or replaces user programs after the samples.
	Programs map[string]user.Program
}

// System is a booted kernel running on the simulated CPU.
type System struct {
	h   hal.HAL
	cpu *hal.CPU
	k   *kernel.Kernel
	log *logrus.Entry

	cancel context.CancelFunc
	done   chan struct{}

	fatalOnce sync.Once
}

// New initializes and starts the OS with default config.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, Config{})
}

// NewWithConfig starts the OS and returns its step function, which reports
// why the system halted once it has.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	s, err := Start(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	return s.Step
}

// Start boots the kernel on a fresh CPU and feeds it the HAL's clock and
// keyboard.
func Start(h hal.HAL, cfg Config) (*System, error) {
	log, err := klog.New(h.Logger(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	reg := user.NewRegistry()
	programs.Register(reg)
	for name, prog := range cfg.Programs {
		reg.Register(name, prog)
	}

	var out io.Writer = io.Discard
	if ser := h.Serial(); ser != nil {
		out = ser
	}
	cpu := hal.NewCPU(reg, hal.CPUConfig{ImageSize: cfg.ImageSize, Out: out, Log: log})
	reg.Bind(cpu)

	kcfg := cfg.Kernel
	kcfg.Log = log
	k := kernel.New(cpu, kcfg)

	ctx, cancel := context.WithCancel(context.Background())
	s := &System{h: h, cpu: cpu, k: k, log: log, cancel: cancel, done: make(chan struct{})}

	log.WithField("programs", len(reg.Names())).Info(buildinfo.Banner())

	go func() {
		defer close(s.done)
		_ = cpu.Run(ctx, func() { _ = k.Boot() })
	}()
	if t := h.Time(); t != nil {
		if ch := t.Ticks(); ch != nil {
			go s.pumpClock(ch)
		}
	}
	if in := h.Input(); in != nil {
		if kb := in.Keyboard(); kb != nil {
			go s.pumpKeys(kb.Events())
		}
	}
	return s, nil
}

func (s *System) pumpClock(ch <-chan uint64) {
	for {
		select {
		case <-ch:
			s.cpu.Raise(hal.EventClock)
		case <-s.cpu.Done():
			return
		}
	}
}

func (s *System) pumpKeys(ch <-chan hal.KeyEvent) {
	for {
		select {
		case ev := <-ch:
			b, ok := ev.Byte()
			if !ok {
				continue
			}
			if !s.cpu.Type(b) {
				s.log.WithField("char", fmt.Sprintf("%q", b)).Warn("terminal overrun, key dropped")
			}
		case <-s.cpu.Done():
			return
		}
	}
}

// Step returns nil while the system runs. Once it halts it shows the fatal
// screen and returns the reason.
func (s *System) Step() error {
	select {
	case <-s.done:
	default:
		return nil
	}
	err := s.cpu.Err()
	var fe *hal.FatalError
	if errors.As(err, &fe) {
		s.fatalOnce.Do(func() { s.showFatal(fe) })
	}
	return err
}

// Kernel returns the kernel. Its state may only be read once the system has
// halted.
func (s *System) Kernel() *kernel.Kernel { return s.k }

// CPU returns the simulated processor.
func (s *System) CPU() *hal.CPU { return s.cpu }

// Done is closed once the CPU has stopped.
func (s *System) Done() <-chan struct{} { return s.done }

// Close halts the CPU and waits for it.
func (s *System) Close() error {
	s.cancel()
	<-s.done
	err := s.cpu.Err()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
