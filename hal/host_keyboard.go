//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type hostKeyboard struct {
	ch chan KeyEvent
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

func (k *hostKeyboard) poll() {
	send := func(ev KeyEvent) {
		select {
		case k.ch <- ev:
		default:
		}
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl {
		emitCtrl := func(key ebiten.Key, r rune) {
			if inpututil.IsKeyJustPressed(key) {
				send(KeyEvent{Press: true, Rune: r})
			}
		}
		emitCtrl(ebiten.KeyC, 0x03)
		emitCtrl(ebiten.KeyD, 0x04)
		emitCtrl(ebiten.KeyU, 0x15)
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		send(KeyEvent{Press: true, Rune: r})
	}

	for _, m := range [...]struct {
		key  ebiten.Key
		code KeyCode
	}{
		{ebiten.KeyEnter, KeyEnter},
		{ebiten.KeyEscape, KeyEscape},
		{ebiten.KeyBackspace, KeyBackspace},
		{ebiten.KeyTab, KeyTab},
	} {
		if inpututil.IsKeyJustPressed(m.key) {
			send(KeyEvent{Code: m.code, Press: true})
		}
		if inpututil.IsKeyJustReleased(m.key) {
			send(KeyEvent{Code: m.code, Press: false})
		}
	}
}
