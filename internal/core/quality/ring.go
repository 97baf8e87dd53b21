// Package quality holds the pure, side-effect-free pieces of the analysis
// engine: the sample ring, the metric extractor, the classifier, and the
// per-channel stall/epoch state machine. Nothing here reads a clock or a
// StatsSource directly: internal/infrastructure/qualityengine wires those
// in and calls down into this package once per tick.
package quality

import (
	"github.com/gammazero/deque"

	"peerqual/internal/core/domain"
)

// WindowSize is N from the contract: the classifier's window spans the last
// five intervals.
const WindowSize = 5

// ringCapacity is N+1: the window's baseline plus its N interval endpoints.
// A channel needs this many distinct samples before it can classify.
const ringCapacity = WindowSize + 1

// SampleRing is the bounded, ordered buffer of the most recent samples for
// one channel. It never mixes samples from two different epochs: Reset
// must be called whenever the owning channel's epoch advances.
type SampleRing struct {
	buf deque.Deque[domain.Sample]
}

// NewSampleRing returns an empty ring.
func NewSampleRing() *SampleRing {
	return &SampleRing{}
}

// Push appends a new sample, evicting the oldest once the ring is at
// capacity so the window always covers exactly the last N intervals.
func (r *SampleRing) Push(s domain.Sample) {
	r.buf.PushBack(s)
	if r.buf.Len() > ringCapacity {
		r.buf.PopFront()
	}
}

// Reset empties the ring. Called on epoch change so no delta is ever
// computed across a transport reconnection.
func (r *SampleRing) Reset() {
	for r.buf.Len() > 0 {
		r.buf.PopFront()
	}
}

// Count returns the number of samples currently held.
func (r *SampleRing) Count() int {
	return r.buf.Len()
}

// Ready reports whether the ring holds enough samples (N+1) to classify.
func (r *SampleRing) Ready() bool {
	return r.buf.Len() >= ringCapacity
}

// Baseline returns the oldest retained sample, the delta reference point.
// The second return value is false on an empty ring.
func (r *SampleRing) Baseline() (domain.Sample, bool) {
	if r.buf.Len() == 0 {
		return domain.Sample{}, false
	}
	return r.buf.Front(), true
}

// Latest returns the most recently pushed sample.
func (r *SampleRing) Latest() (domain.Sample, bool) {
	if r.buf.Len() == 0 {
		return domain.Sample{}, false
	}
	return r.buf.Back(), true
}

// Previous returns the sample pushed immediately before Latest: the
// "latest-1" row the stall check compares against. Returns false when
// fewer than two samples are held.
func (r *SampleRing) Previous() (domain.Sample, bool) {
	n := r.buf.Len()
	if n < 2 {
		return domain.Sample{}, false
	}
	return r.buf.At(n - 2), true
}
