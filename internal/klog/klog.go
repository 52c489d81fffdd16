// Package klog builds the kernel trace logger on top of a hal.Logger.
package klog

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"minikernel/hal"

	"github.com/sirupsen/logrus"
)

// DefaultLevel is used when no level is given.
const DefaultLevel = "info"

// New returns a logrus entry that writes one hal.Logger line per record. A
// nil sink discards everything.
func New(sink hal.Logger, level string) (*logrus.Entry, error) {
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	l := logrus.New()
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	if sink == nil {
		l.SetOutput(io.Discard)
	} else {
		l.SetOutput(&lineWriter{sink: sink})
	}
	return logrus.NewEntry(l), nil
}

// lineWriter turns a byte stream into hal.Logger lines.
type lineWriter struct {
	mu   sync.Mutex
	sink hal.Logger
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.sink.WriteLineBytes(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	return len(p), nil
}
