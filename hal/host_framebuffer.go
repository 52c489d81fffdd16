//go:build !tinygo

package hal

import "sync"

// hostFramebuffer is the RGB565 console surface shown by the window runner
// and painted by the fatal screen.
type hostFramebuffer struct {
	mu     sync.Mutex
	width  int
	height int
	stride int
	buf    []byte
}

func newHostFramebuffer(width, height int) *hostFramebuffer {
	stride := width * 2
	return &hostFramebuffer{
		width:  width,
		height: height,
		stride: stride,
		buf:    make([]byte, stride*height),
	}
}

func (f *hostFramebuffer) Width() int          { return f.width }
func (f *hostFramebuffer) Height() int         { return f.height }
func (f *hostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *hostFramebuffer) StrideBytes() int    { return f.stride }
func (f *hostFramebuffer) Buffer() []byte      { return f.buf }
func (f *hostFramebuffer) Present() error      { return nil }

func (f *hostFramebuffer) ClearRGB(r, g, b uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pixel := RGB565(r, g, b)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i] = byte(pixel)
		f.buf[i+1] = byte(pixel >> 8)
	}
}

// toRGBA expands the framebuffer into dst, 4 bytes per pixel.
func (f *hostFramebuffer) toRGBA(dst []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := 0; i+1 < len(f.buf) && i*2+3 < len(dst); i += 2 {
		r, g, b := rgb888From565(uint16(f.buf[i]) | uint16(f.buf[i+1])<<8)
		j := i * 2
		dst[j+0] = r
		dst[j+1] = g
		dst[j+2] = b
		dst[j+3] = 0xFF
	}
}
