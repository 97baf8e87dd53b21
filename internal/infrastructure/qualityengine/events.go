package qualityengine

import (
	"reflect"
	"sync"

	"peerqual/internal/core/domain"
)

// channelEvent names the media kind an event fired for; both the quality
// and stats buses are keyed by it instead of a single combined string, so
// a typo in an event name is a compile error rather than a silent no-op.
type channelEvent int

const (
	eventAudio channelEvent = iota
	eventVideo
)

// QualityHandler receives the analyzer that fired the event and the
// channel's newly computed level.
type QualityHandler func(analyzer *Analyzer, level domain.QualityLevel)

// StatsHandler receives the analyzer and the raw sample the tick just
// extracted, for callers that want the underlying numbers rather than the
// derived verdict.
type StatsHandler func(analyzer *Analyzer, sample domain.Sample)

// eventBus is a generic replacement for the contract's shared event-bus
// observer pattern: one explicit handler slice per (event, channel) pair
// instead of a single dispatcher keyed by string name. Dispatch always
// copies the slice under lock before iterating, so a handler registered or
// removed from inside another handler never affects the round already in
// flight.
type eventBus[T any] struct {
	mu       sync.Mutex
	handlers map[channelEvent][]func(*Analyzer, T)
}

func newEventBus[T any]() *eventBus[T] {
	return &eventBus[T]{handlers: make(map[channelEvent][]func(*Analyzer, T))}
}

// on registers h for evt and returns a func that unregisters it.
func (b *eventBus[T]) on(evt channelEvent, h func(*Analyzer, T)) (unsubscribe func()) {
	b.mu.Lock()
	b.handlers[evt] = append(b.handlers[evt], h)
	b.mu.Unlock()

	var unsubscribed bool
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if unsubscribed {
			return
		}
		unsubscribed = true
		b.removeLocked(evt, h)
	}
}

// off removes the first handler registered for evt whose function pointer
// matches h. Kept for parity with the contract's on/off(event, handler)
// pair; the unsubscribe func returned by on is the more reliable way to
// remove a closure, since pointer identity cannot distinguish two closures
// with identical bodies.
func (b *eventBus[T]) off(evt channelEvent, h func(*Analyzer, T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(evt, h)
}

func (b *eventBus[T]) removeLocked(evt channelEvent, h func(*Analyzer, T)) {
	list := b.handlers[evt]
	target := reflect.ValueOf(h).Pointer()
	for i, existing := range list {
		if reflect.ValueOf(existing).Pointer() == target {
			b.handlers[evt] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (b *eventBus[T]) snapshot(evt channelEvent) []func(*Analyzer, T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]func(*Analyzer, T), len(b.handlers[evt]))
	copy(out, b.handlers[evt])
	return out
}

// emit dispatches value to every handler registered for evt. A panicking
// handler is recovered and logged; it neither stops dispatch to the
// remaining handlers nor corrupts engine state.
func (b *eventBus[T]) emit(a *Analyzer, evt channelEvent, value T) {
	for _, h := range b.snapshot(evt) {
		dispatchOne(a, h, value)
	}
}

func dispatchOne[T any](a *Analyzer, h func(*Analyzer, T), value T) {
	defer func() {
		if r := recover(); r != nil && a.logger != nil {
			a.logger.Warnw("observer handler panicked", "recovered", r)
		}
	}()
	h(a, value)
}
