//go:build !tinygo

package hal

import (
	"fmt"
	"os"

	"github.com/mattn/go-tty"
)

// hostTTY reads raw keystrokes from the controlling terminal.
type hostTTY struct {
	t       *tty.TTY
	restore func() error
	ch      chan KeyEvent
}

func openHostTTY() (*hostTTY, error) {
	t, err := tty.Open()
	if err != nil {
		return nil, fmt.Errorf("open tty: %w", err)
	}
	restore, err := t.Raw()
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("raw tty: %w", err)
	}
	k := &hostTTY{t: t, restore: restore, ch: make(chan KeyEvent, 64)}
	go k.pump()
	return k, nil
}

func (k *hostTTY) Events() <-chan KeyEvent { return k.ch }

func (k *hostTTY) pump() {
	for {
		r, err := k.t.ReadRune()
		if err != nil {
			return
		}
		if r == 0x03 {
			// Raw mode swallows ^C; hand it back to the signal handler.
			if p, err := os.FindProcess(os.Getpid()); err == nil {
				_ = p.Signal(os.Interrupt)
			}
			continue
		}
		ev := KeyEvent{Press: true, Rune: r}
		switch r {
		case '\r', '\n':
			ev = KeyEvent{Code: KeyEnter, Press: true}
		case 0x7f:
			ev = KeyEvent{Code: KeyBackspace, Press: true}
		}
		select {
		case k.ch <- ev:
		default:
		}
	}
}

func (k *hostTTY) close() {
	if k.restore != nil {
		_ = k.restore()
	}
	_ = k.t.Close()
}
