package app

import (
	"image/color"
	"strings"
	"unicode/utf8"

	"minikernel/hal"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// showFatal logs the halt diagnostic with the process table and paints it
// over the console.
func (s *System) showFatal(fe *hal.FatalError) {
	lines := []string{
		"minikernel panic:",
		fe.Msg,
		"",
	}
	lines = append(lines, strings.Split(s.k.String(), "\n")...)

	if l := s.h.Logger(); l != nil {
		for _, line := range lines {
			if line != "" {
				l.WriteLineString(line)
			}
		}
	}

	disp := s.h.Display()
	if disp == nil {
		return
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return
	}
	drawLines(fb, lines)
	_ = fb.Present()
}

// drawLines fills fb with white and writes lines in black, wrapping at the
// right edge and stopping at the bottom.
func drawLines(fb hal.Framebuffer, lines []string) {
	fb.ClearRGB(255, 255, 255)

	font := &proggy.TinySZ8pt7b
	fontHeight, fontOffset := int16(10), int16(7)
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 {
		return
	}

	d := fatalDisplay{fb: fb}
	fg := color.RGBA{A: 255}
	cols := int16(fb.Width()) / fontWidth
	if cols <= 0 {
		cols = 1
	}

	y := int16(0)
	for _, line := range lines {
		if line == "" {
			y += fontHeight
			continue
		}
		for len(line) > 0 {
			if int(y+fontHeight) > fb.Height() {
				return
			}
			chunk, rest := takeRunes(line, cols)
			x := int16(0)
			for _, r := range chunk {
				tinyfont.DrawChar(d, font, x, y+fontOffset, r, fg)
				x += fontWidth
			}
			y += fontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
}

// fatalDisplay draws straight into an RGB565 framebuffer.
type fatalDisplay struct {
	fb hal.Framebuffer
}

func (d fatalDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d fatalDisplay) SetPixel(x, y int16, c color.RGBA) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	buf := d.fb.Buffer()
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}

	pixel := hal.RGB565(c.R, c.G, c.B)
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d fatalDisplay) Display() error { return nil }

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
