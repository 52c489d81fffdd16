package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"minikernel/hal"
	"minikernel/kernel"
	"minikernel/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHAL struct {
	mu    sync.Mutex
	lines []string
	out   bytes.Buffer

	fb    *testFB
	ticks chan uint64
	keys  chan hal.KeyEvent
}

func newTestHAL() *testHAL {
	return &testHAL{
		fb:    &testFB{w: 64, h: 32, buf: make([]byte, 64*32*2)},
		ticks: make(chan uint64, 16),
		keys:  make(chan hal.KeyEvent, 16),
	}
}

func (h *testHAL) Logger() hal.Logger   { return h }
func (h *testHAL) Display() hal.Display { return h }
func (h *testHAL) Input() hal.Input     { return h }
func (h *testHAL) Time() hal.Time       { return h }
func (h *testHAL) Serial() hal.Serial   { return h }

func (h *testHAL) Framebuffer() hal.Framebuffer  { return h.fb }
func (h *testHAL) Keyboard() hal.Keyboard        { return h }
func (h *testHAL) Events() <-chan hal.KeyEvent   { return h.keys }
func (h *testHAL) Ticks() <-chan uint64          { return h.ticks }
func (h *testHAL) WriteLineBytes(b []byte)       { h.WriteLineString(string(b)) }

func (h *testHAL) WriteLineString(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, s)
}

func (h *testHAL) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out.Write(p)
}

func (h *testHAL) output() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out.String()
}

func (h *testHAL) log() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.lines, "\n")
}

// clock ticks until stop is closed.
func (h *testHAL) clock(stop <-chan struct{}) {
	var seq uint64
	for {
		seq++
		select {
		case h.ticks <- seq:
		case <-stop:
			return
		}
		time.Sleep(100 * time.Microsecond)
	}
}

type testFB struct {
	w, h int
	buf  []byte
}

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) Present() error          { return nil }

func (f *testFB) ClearRGB(r, g, b uint8) {
	for i := range f.buf {
		f.buf[i] = 0xFF
	}
}

func TestSystemRunsSamplePrograms(t *testing.T) {
	h := newTestHAL()
	stop := make(chan struct{})
	defer close(stop)
	go h.clock(stop)

	s, err := Start(h, Config{Kernel: kernel.Config{TicksPerSecond: 10, Audit: true}})
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		return strings.Count(h.output(), "despierto") == 2
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Step())

	out := h.output()
	assert.Contains(t, out, "init: pid 0\n")
	assert.Equal(t, 2, strings.Count(out, "yosoy: soy el proceso 1\n"))
	assert.Contains(t, out, "simplon: vuelta 3\n")
	assert.Contains(t, out, "tiempos 5: ticks")
	assert.Contains(t, out, "excep_arit: dividiendo por cero\n")
	assert.Contains(t, out, "excep_mem: escribiendo en la direccion 0\n")
	assert.NotContains(t, out, "no debe verse")

	first := strings.Index(out, "dormilon 4: despierto")
	second := strings.Index(out, "dormilon 3: despierto")
	assert.True(t, first >= 0 && second > first, "shorter sleep wakes first:\n%s", out)

	assert.Contains(t, h.log(), "minikernel dev")
}

func TestSystemHaltsOnKernelFault(t *testing.T) {
	h := newTestHAL()
	s, err := Start(h, Config{Kernel: kernel.Config{InitProgram: "mal_tiempos"}})
	require.NoError(t, err)

	var stepErr error
	require.Eventually(t, func() bool {
		stepErr = s.Step()
		return stepErr != nil
	}, 5*time.Second, time.Millisecond)

	var fe *hal.FatalError
	require.True(t, errors.As(stepErr, &fe))
	assert.Contains(t, fe.Msg, "memory exception while inside the kernel")
	assert.Contains(t, h.log(), "minikernel panic:")
	assert.Contains(t, h.log(), "mal_tiempos")
	assert.Contains(t, h.output(), "mal_tiempos: llamando con un puntero invalido\n")

	painted := false
	for _, b := range h.fb.buf {
		if b != 0xFF {
			painted = true
			break
		}
	}
	assert.True(t, painted, "fatal text drawn")
	assert.Equal(t, stepErr, s.Close())
}

func TestKeyboardRaisesTerminalInterrupt(t *testing.T) {
	h := newTestHAL()
	s, err := Start(h, Config{Programs: map[string]user.Program{
		"init": func(p *user.Proc) { p.Sleep(1000) },
	}})
	require.NoError(t, err)
	defer s.Close()

	h.keys <- hal.KeyEvent{Press: true, Rune: 'a'}
	h.keys <- hal.KeyEvent{Press: false, Rune: 'b'}

	require.Eventually(t, func() bool {
		return strings.Contains(h.log(), "terminal interrupt")
	}, 5*time.Second, time.Millisecond)
	assert.Contains(t, h.log(), "'a'")
	assert.NotContains(t, h.log(), "'b'")
}

func TestBadLogLevel(t *testing.T) {
	step := NewWithConfig(newTestHAL(), Config{LogLevel: "loud"})
	assert.Error(t, step())
}

func TestCloseIsClean(t *testing.T) {
	s, err := Start(newTestHAL(), Config{})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.True(t, errors.Is(s.CPU().Err(), context.Canceled))
}
