//go:build !tinygo

package hal

import "time"

type hostTime struct {
	ch      chan uint64
	seq     uint64
	tickDur time.Duration

	last time.Time
	acc  time.Duration
}

func newHostTime(tickDur time.Duration) *hostTime {
	if tickDur <= 0 {
		tickDur = 10 * time.Millisecond
	}
	return &hostTime{ch: make(chan uint64, 1024), tickDur: tickDur}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// step emits as many ticks as wall time allows since the previous call.
func (t *hostTime) step() {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / t.tickDur)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % t.tickDur
	t.stepN(ticks)
}

func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
