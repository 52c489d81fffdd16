//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// HostConfig selects the host devices.
type HostConfig struct {
	// TickRate is the clock interrupt frequency in Hz.
	TickRate int
	// TTY reads raw keystrokes from the controlling terminal.
	TTY bool
	// Out is the console sink. Defaults to stdout.
	Out io.Writer
	// Log is the diagnostics sink. Defaults to stderr.
	Log io.Writer
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	tty    *hostTTY
	t      *hostTime
	serial *hostSerial
}

// New returns a host HAL implementation with default devices.
func New() HAL {
	return newHost(HostConfig{})
}

func newHost(cfg HostConfig) *hostHAL {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 100
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Log == nil {
		cfg.Log = os.Stderr
	}
	h := &hostHAL{
		logger: &hostLogger{w: cfg.Log},
		fb:     newHostFramebuffer(320, 320),
		kbd:    newHostKeyboard(),
		t:      newHostTime(time.Second / time.Duration(cfg.TickRate)),
		serial: &hostSerial{w: cfg.Out},
	}
	if cfg.TTY {
		tty, err := openHostTTY()
		if err != nil {
			h.logger.WriteLineString(fmt.Sprintf("tty: %v (keyboard disabled)", err))
		} else {
			h.tty = tty
		}
	}
	return h
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Serial() Serial   { return h.serial }

func (h *hostHAL) Input() Input {
	if h.tty != nil {
		return hostInput{kbd: h.tty}
	}
	return hostInput{kbd: h.kbd}
}

func (h *hostHAL) close() {
	if h.tty != nil {
		h.tty.close()
	}
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd Keyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}
