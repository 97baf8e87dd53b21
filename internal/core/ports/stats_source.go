// Package ports declares the interfaces the analysis engine consumes from,
// and exposes to, the outside world. The engine owns no concrete transport;
// everything it needs from one is expressed here.
package ports

import (
	"context"

	"peerqual/internal/core/domain"
)

// StatsResult is the resolved value of a ReadStats call: either a snapshot
// of records, or an error describing why the read could not be completed.
// It is the Go rendering of the contract's Future<Iterable<StatRecord>>.
type StatsResult struct {
	Records []domain.StatRecord
	Err     error
}

// StatsSource is the abstraction over a live media transport. Engines never
// touch a transport directly; they attach a StatsSource instead.
type StatsSource interface {
	// State returns the transport's current connection phase.
	State() domain.TransportState

	// OnStateChange registers a handler invoked whenever the transport's
	// state changes. The returned func unregisters it.
	OnStateChange(handler func(domain.TransportState)) (unsubscribe func())

	// ReadStats asynchronously resolves with the current stats snapshot.
	// The returned channel is always eventually sent exactly one value and
	// then closed, or is closed without a value if ctx is canceled first.
	ReadStats(ctx context.Context) <-chan StatsResult
}
