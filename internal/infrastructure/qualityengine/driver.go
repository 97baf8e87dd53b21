package qualityengine

import (
	"context"

	"peerqual/internal/core/domain"
	"peerqual/internal/core/ports"
	"peerqual/internal/core/quality"
	"peerqual/pkg/tracing"
)

// run is the analyzer's single periodic task. One tick processes both
// directions in a fixed order, sender then receiver, and within each
// direction audio is always settled before video, so that a channel's
// quality-change event always fires before its stats-update event.
func (a *Analyzer) run() {
	defer close(a.doneCh)
	directions := [2]domain.PeerDirection{domain.DirSender, domain.DirReceiver}
	for {
		select {
		case <-a.stopCh:
			return
		case <-a.ticker.C():
			for _, dir := range directions {
				a.processDirection(dir)
			}
			if a.metrics != nil {
				a.metrics.RecordTick()
			}
		}
	}
}

// processDirection reads one tick's worth of stats for dir, if a transport
// is attached and connected, and feeds the single resulting snapshot into
// both of dir's channels. One StatsSource.ReadStats call covers an entire
// direction: the concrete adapters report every kind in one GetStats-style
// snapshot, and the audio and video extractors reading two separate
// snapshots could otherwise observe two different instants. Any read that
// resolves after dir's epoch has moved on, because SetPeerConnection was
// called again in the meantime, is dropped. The epoch check happens twice,
// once implicitly via epochCtx cancellation and once explicitly after the
// read resolves, since a StatsSource is free to ignore ctx cancellation and
// answer anyway.
func (a *Analyzer) processDirection(dir domain.PeerDirection) {
	idx := directionIndex(dir)

	a.mu.Lock()
	source := a.sources[idx]
	if source == nil {
		a.mu.Unlock()
		return
	}
	if !source.State().Analyzable() {
		a.mu.Unlock()
		return
	}
	epoch := a.epochs[idx]
	epochCtx := a.epochCtx[idx]
	a.mu.Unlock()

	readCtx, readSpan := tracing.TraceReadStats(context.Background(), dir.String())

	started := a.clock.Now()
	resultCh := source.ReadStats(epochCtx)

	var result ports.StatsResult
	select {
	case result = <-resultCh:
	case <-epochCtx.Done():
		readSpan.End()
		return
	case <-a.stopCh:
		readSpan.End()
		return
	}
	readSpan.End()
	if a.metrics != nil {
		a.metrics.RecordReadDuration(a.clock.Now().Sub(started))
	}

	a.mu.Lock()
	stale := a.epochs[idx] != epoch
	a.mu.Unlock()
	if stale {
		return
	}

	for _, key := range domain.ChannelsForDirection(dir) {
		a.processChannel(readCtx, key, result)
	}
}

// processChannel advances key's state machine with a snapshot already read
// for its direction this tick.
func (a *Analyzer) processChannel(ctx context.Context, key domain.ChannelKey, result ports.StatsResult) {
	_, span := tracing.TraceTick(ctx, key.Direction.String(), key.Kind.String())
	defer span.End()

	a.mu.Lock()
	state := a.channels[key]
	a.mu.Unlock()

	level, sample, haveSample := a.advance(state, key, result)
	a.emitIfChanged(key, level, sample, haveSample)

	if a.metrics != nil {
		if !haveSample {
			a.metrics.RecordReadError(key)
		}
		a.metrics.ObserveQuality(key, level, state.StallCount(), state.Lifecycle() == quality.StateDead)
	}
}

// advance feeds one tick's read result into state and returns its verdict
// along with the extracted sample, if any. A failed read or a read with no
// usable record for this channel is a TransientReadFailure/MalformedStats
// tick: it counts toward the stall tolerance but never panics the driver.
func (a *Analyzer) advance(state *quality.ChannelState, key domain.ChannelKey, result ports.StatsResult) (domain.QualityLevel, domain.Sample, bool) {
	if result.Err != nil {
		if a.logger != nil {
			a.logger.Debugw("stats read failed", "channel", key.String(), "error", result.Err)
		}
		return state.AdvanceStalled(), domain.Sample{}, false
	}

	sample, err := quality.Extract(key.Direction, key.Kind, result.Records)
	if err != nil {
		if a.logger != nil {
			a.logger.Debugw("no usable record this tick", "channel", key.String(), "error", err)
		}
		return state.AdvanceStalled(), domain.Sample{}, false
	}

	return state.AdvanceSample(sample), sample, true
}

// emitIfChanged fires the quality event only when the verdict differs from
// the last one emitted for key, and never while the verdict is UNKNOWN:
// WARMUP ticks emit nothing, and a reset into UNKNOWN (detach, or a
// transport transition out of the analyzable set) happens silently.
// Treating a missing prior value the same as UNKNOWN makes both rules fall
// out of one comparison: the first tick that produces a real verdict after
// WARMUP (or after a reset) always counts as a change, and a tick that
// produces UNKNOWN never does, regardless of what came before it.
//
// The stats event has no such rule: it fires on every successful tick
// unconditionally, so it is never deduplicated.
func (a *Analyzer) emitIfChanged(key domain.ChannelKey, level domain.QualityLevel, sample domain.Sample, haveSample bool) {
	a.mu.Lock()
	prevLevel, hadLevel := a.lastQuality[key], a.haveQuality[key]
	effectivePrev := domain.Unknown
	if hadLevel {
		effectivePrev = prevLevel
	}
	qualityChanged := level != domain.Unknown && level != effectivePrev
	a.lastQuality[key] = level
	a.haveQuality[key] = true
	a.mu.Unlock()

	evt := channelEventFor(key.Kind)
	if qualityChanged {
		a.qualityBus.emit(a, evt, level)
	}
	if haveSample {
		a.statsBus.emit(a, evt, sample)
	}
}
