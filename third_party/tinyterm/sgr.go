package tinyterm

import "image/color"

// SGR (Select Graphic Rendition) parameters understood by the terminal.
const (
	SGRReset = 0
	SGRBold  = 1

	SGRFgBlack        = 30
	SGRFgRed          = 31
	SGRFgGreen        = 32
	SGRFgYellow       = 33
	SGRFgBlue         = 34
	SGRFgMagenta      = 35
	SGRFgCyan         = 36
	SGRFgWhite        = 37
	SGRSetFgColor     = 38
	SGRDefaultFgColor = 39

	SGRBgBlack        = 40
	SGRBgRed          = 41
	SGRBgGreen        = 42
	SGRBgYellow       = 43
	SGRBgBlue         = 44
	SGRBgMagenta      = 45
	SGRBgCyan         = 46
	SGRBgWhite        = 47
	SGRSetBgColor     = 48
	SGRDefaultBgColor = 49
)

// Color is an index into the 256-color palette. The first 16 entries are
// the ANSI colors.
type Color uint8

const (
	ColorBlack Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorWhite
)

var ansiColors = [16]color.RGBA{
	{0x00, 0x00, 0x00, 0xFF},
	{0xAA, 0x00, 0x00, 0xFF},
	{0x00, 0xAA, 0x00, 0xFF},
	{0xAA, 0x55, 0x00, 0xFF},
	{0x00, 0x00, 0xAA, 0xFF},
	{0xAA, 0x00, 0xAA, 0xFF},
	{0x00, 0xAA, 0xAA, 0xFF},
	{0xAA, 0xAA, 0xAA, 0xFF},
	{0x55, 0x55, 0x55, 0xFF},
	{0xFF, 0x55, 0x55, 0xFF},
	{0x55, 0xFF, 0x55, 0xFF},
	{0xFF, 0xFF, 0x55, 0xFF},
	{0x55, 0x55, 0xFF, 0xFF},
	{0xFF, 0x55, 0xFF, 0xFF},
	{0x55, 0xFF, 0xFF, 0xFF},
	{0xFF, 0xFF, 0xFF, 0xFF},
}

// RGBA returns the xterm rendition of c: the 16 ANSI colors, a 6x6x6 cube,
// then a 24-step gray ramp.
func (c Color) RGBA() color.RGBA {
	switch {
	case c < 16:
		return ansiColors[c]
	case c < 232:
		i := int(c) - 16
		level := func(v int) uint8 {
			if v == 0 {
				return 0
			}
			return uint8(55 + v*40)
		}
		return color.RGBA{level(i / 36), level(i / 6 % 6), level(i % 6), 0xFF}
	default:
		g := uint8(8 + (int(c)-232)*10)
		return color.RGBA{g, g, g, 0xFF}
	}
}

type sgrAttrs struct {
	attrs byte
	fgcol color.RGBA
	bgcol color.RGBA
}

func (a *sgrAttrs) reset() {
	a.attrs = 0
	a.fgcol = ColorWhite.RGBA()
	a.bgcol = ColorBlack.RGBA()
}

func (a *sgrAttrs) setFG(c Color) { a.fgcol = c.RGBA() }

func (a *sgrAttrs) setBG(c Color) { a.bgcol = c.RGBA() }
