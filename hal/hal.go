package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
)

// KeyEvent is a keyboard event.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Byte maps a key press to the byte the terminal device latches, if any.
func (ev KeyEvent) Byte() (byte, bool) {
	if !ev.Press {
		return 0, false
	}
	switch ev.Code {
	case KeyEnter:
		return '\n', true
	case KeyEscape:
		return 0x1b, true
	case KeyBackspace:
		return 0x08, true
	case KeyTab:
		return '\t', true
	}
	if ev.Rune > 0 && ev.Rune < 0x80 {
		return byte(ev.Rune), true
	}
	return 0, false
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Input provides access to input devices (if available).
type Input interface {
	Keyboard() Keyboard
}

// Time provides the clock interrupt source.
//
// Each value received is one clock tick.
type Time interface {
	Ticks() <-chan uint64
}

// Serial is the console output device.
type Serial interface {
	Write(p []byte) (int, error)
}

// HAL provides the only contact point between the OS and the outside world.
type HAL interface {
	Logger() Logger
	Display() Display
	Input() Input
	Time() Time
	Serial() Serial
}
