//go:build !tinygo

package hal

import (
	"image/color"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

// console renders console output onto a framebuffer as a VT100 terminal.
// Writes are queued and drawn by flush on the render thread.
type console struct {
	mu      sync.Mutex
	fb      Framebuffer
	d       *fbDisplay
	t       *tinyterm.Terminal
	pending []byte
}

func newConsole(fb Framebuffer) *console {
	c := &console{fb: fb, d: newFBDisplay(fb)}
	c.reset()
	return c
}

func (c *console) reset() {
	c.t = tinyterm.NewTerminal(c.d)
	c.t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
	c.fb.ClearRGB(0, 0, 0)
	_ = c.fb.Present()
}

func (c *console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, p...)
	return len(p), nil
}

// flush draws queued output, once per frame.
func (c *console) flush() {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(p) == 0 {
		return
	}
	_, _ = c.t.Write(p)
	c.t.Display()
}

type fbDisplay struct {
	fb Framebuffer
}

func newFBDisplay(fb Framebuffer) *fbDisplay {
	return &fbDisplay{fb: fb}
}

func (d *fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb == nil || d.fb.Format() != PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	w, h := d.fb.Width(), d.fb.Height()
	ix, iy := int(x), int(y)
	if buf == nil || ix < 0 || ix >= w || iy < 0 || iy >= h {
		return
	}
	pixel := RGB565(c.R, c.G, c.B)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *fbDisplay) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if d.fb == nil || d.fb.Format() != PixelFormatRGB565 {
		return nil
	}
	buf := d.fb.Buffer()
	if buf == nil {
		return nil
	}

	w, h := d.fb.Width(), d.fb.Height()
	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, h)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := RGB565(c.R, c.G, c.B)
	lo, hi := byte(pixel), byte(pixel>>8)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				continue
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

func (d *fbDisplay) SetScroll(line int16) {
	_ = line
}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error {
	_ = rotation
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
