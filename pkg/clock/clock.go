// Package clock provides the real and virtual time sources the quality
// engine's driver runs on. Production wiring uses Real; tests use Virtual so
// a tick can be advanced deterministically instead of sleeping on a real
// 1-second timer.
package clock

import (
	"sync"
	"time"

	"peerqual/internal/core/ports"
)

// Real is a ports.Clock backed by the standard library.
type Real struct{}

func NewReal() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) NewTicker(d time.Duration) ports.Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Virtual is a ports.Clock a test drives explicitly via Advance. Every
// NewTicker call registers a virtual ticker that fires once per Advance
// step that crosses its period, in the order the steps were requested.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*virtualTicker
}

// NewVirtual creates a virtual clock starting at an arbitrary, fixed epoch
// so tests never depend on wall-clock time.
func NewVirtual() *Virtual {
	return &Virtual{now: time.Unix(0, 0).UTC()}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) NewTicker(d time.Duration) ports.Ticker {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := &virtualTicker{period: d, ch: make(chan time.Time, 1), due: v.now.Add(d)}
	v.tickers = append(v.tickers, t)
	return t
}

// Advance moves the virtual clock forward by d, firing every registered
// ticker whose period has elapsed. A ticker's channel holds at most one
// pending tick: when d spans several periods, or the previous tick has not
// been received yet, the extra ticks are dropped, as with time.Ticker.
// Firing is synchronous: by the time Advance returns, every due ticker's
// channel already holds a tick.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()

	target := v.now.Add(d)
	for _, t := range v.tickers {
		if t.stopped {
			continue
		}
		for !t.due.After(target) {
			select {
			case t.ch <- t.due:
			default:
			}
			t.due = t.due.Add(t.period)
		}
	}
	v.now = target
}

type virtualTicker struct {
	period  time.Duration
	due     time.Time
	ch      chan time.Time
	stopped bool
}

func (t *virtualTicker) C() <-chan time.Time { return t.ch }
func (t *virtualTicker) Stop()               { t.stopped = true }
