//go:build !tinygo && !cgo

package hal

// hostKeyboard has no source without the window backend; use -tty for
// keyboard input in such builds.
type hostKeyboard struct {
	ch chan KeyEvent
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

func (k *hostKeyboard) poll() {}
