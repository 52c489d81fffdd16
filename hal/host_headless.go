//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz is the clock interrupt rate.
	Hz int
	// Ticks stops the run after that many clock ticks (0 = run forever).
	Ticks uint64
	// TTY puts the controlling terminal in raw mode and feeds keystrokes to
	// the terminal device.
	TTY bool
}

// RunHeadless runs the OS without opening a window. newApp is called once
// with the host HAL; the step it returns runs after every clock tick and
// stops the run by returning an error.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 100
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}

	h := newHost(HostConfig{TickRate: cfg.Hz, TTY: cfg.TTY})
	defer h.close()
	step := newApp(h)

	t := time.NewTicker(d)
	defer t.Stop()

	var tick uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			h.t.stepN(1)
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			tick++
			if cfg.Ticks > 0 && tick >= cfg.Ticks {
				return nil
			}
		}
	}
}
