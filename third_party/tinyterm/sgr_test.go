package tinyterm

import (
	"image/color"
	"testing"
)

func TestColorRGBA(t *testing.T) {
	tests := []struct {
		c    Color
		want color.RGBA
	}{
		{ColorBlack, color.RGBA{0, 0, 0, 0xFF}},
		{ColorWhite, color.RGBA{0xAA, 0xAA, 0xAA, 0xFF}},
		{15, color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}},
		{16, color.RGBA{0, 0, 0, 0xFF}},
		{196, color.RGBA{0xFF, 0, 0, 0xFF}},
		{231, color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}},
		{232, color.RGBA{8, 8, 8, 0xFF}},
		{255, color.RGBA{238, 238, 238, 0xFF}},
	}
	for _, tt := range tests {
		if got := tt.c.RGBA(); got != tt.want {
			t.Fatalf("Color(%d).RGBA() = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestSGRAttrs(t *testing.T) {
	var a sgrAttrs
	a.reset()
	a.setFG(ColorGreen)
	a.setBG(ColorBlue)
	if a.fgcol != ColorGreen.RGBA() || a.bgcol != ColorBlue.RGBA() {
		t.Fatalf("attrs = %+v, want green on blue", a)
	}
	a.reset()
	if a.fgcol != ColorWhite.RGBA() || a.bgcol != ColorBlack.RGBA() {
		t.Fatalf("reset attrs = %+v, want white on black", a)
	}
}
