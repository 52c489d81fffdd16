//go:build !tinygo && cgo

package hal

import (
	"image"

	"minikernel/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow starts a desktop window that displays the console framebuffer,
// drives the clock at hz and forwards keyboard input. It blocks until the
// window closes or the step function fails.
func RunWindow(newApp func(HAL) func() error, hz int) error {
	h := newHost(HostConfig{TickRate: hz})
	con := newConsole(h.fb)
	h.serial.mirrorTo(con)
	step := newApp(h)

	g := &hostGame{h: h, con: con, step: step}
	ebiten.SetWindowTitle("minikernel (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	if err := ebiten.RunGame(g); err != nil {
		return err
	}
	return g.err
}

type hostGame struct {
	h     *hostHAL
	con   *console
	img   *image.RGBA
	fbImg *ebiten.Image
	step  func() error
	// err is the step failure. The window stays open on it so the fatal
	// screen can be read.
	err error
}

func (g *hostGame) Update() error {
	g.h.kbd.poll()
	g.con.flush()
	if g.err != nil {
		return nil
	}
	g.h.t.step()
	if g.step != nil {
		g.err = g.step()
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}
	fb.toRGBA(g.img.Pix)
	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
