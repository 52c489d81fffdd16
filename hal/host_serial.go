//go:build !tinygo

package hal

import (
	"io"
	"sync"
)

type hostSerial struct {
	mu     sync.Mutex
	w      io.Writer
	mirror io.Writer
}

func (s *hostSerial) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror != nil {
		_, _ = s.mirror.Write(p)
	}
	return s.w.Write(p)
}

// mirrorTo copies everything written from now on to w as well.
func (s *hostSerial) mirrorTo(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = w
}
