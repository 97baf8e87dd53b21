package domain

import "errors"

var (
	// ErrNoTransportAttached names the state of a direction with no
	// StatsSource attached. The facade accessors do not return it; their
	// getters report UNKNOWN for such a direction instead.
	ErrNoTransportAttached = errors.New("no transport attached")

	// ErrStaleEpoch marks a StatsSource read that resolved after the
	// connectionTransitionEpoch it was issued under had already advanced.
	ErrStaleEpoch = errors.New("stats read resolved under a stale epoch")

	// ErrNoUsableRecord marks a tick where every StatRecord for a channel
	// was malformed or the required local counter was absent.
	ErrNoUsableRecord = errors.New("no usable stat record for channel this tick")
)
