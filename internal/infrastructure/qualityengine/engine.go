// Package qualityengine is the stateful shell around internal/core/quality:
// it owns the clock-driven tick loop, the four per-channel state machines,
// the attached StatsSource for each direction, and the event buses other
// code subscribes to. internal/core/quality stays pure; everything with a
// side effect (time, I/O, callbacks) lives here.
package qualityengine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"peerqual/internal/core/domain"
	"peerqual/internal/core/ports"
	"peerqual/internal/core/quality"
	"peerqual/internal/infrastructure/metrics"
	clockimpl "peerqual/pkg/clock"
)

// tickInterval is the driver's fixed period: one periodic task, one
// second, no drift-correction beyond what the clock gives it.
const tickInterval = time.Second

// Analyzer is the public facade: attach a StatsSource per direction, read
// back the current verdicts, and subscribe to change events. The zero value
// is not usable; construct with New.
type Analyzer struct {
	clock   ports.Clock
	logger  *zap.SugaredLogger
	metrics *metrics.Collector

	mu       sync.Mutex
	sources  [2]ports.StatsSource // indexed by domain.PeerDirection
	epochs   [2]uint64
	epochCtx [2]context.Context
	cancels  [2]context.CancelFunc
	unsubs   [2]func()
	channels map[domain.ChannelKey]*quality.ChannelState

	lastQuality map[domain.ChannelKey]domain.QualityLevel
	haveQuality map[domain.ChannelKey]bool

	qualityBus *eventBus[domain.QualityLevel]
	statsBus   *eventBus[domain.Sample]

	ticker ports.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
}

// Option configures an Analyzer at construction time.
type Option func(*Analyzer)

// WithClock overrides the default real-time clock, for deterministic tests
// that drive the engine through a pkg/clock.Virtual.
func WithClock(c ports.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithLogger attaches a structured logger. Nil is valid and simply
// disables logging.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithMetrics attaches a Prometheus collector. Nil is valid and simply
// disables metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(a *Analyzer) { a.metrics = c }
}

// New constructs an Analyzer with no transport attached on either
// direction and starts its tick loop.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		channels:    make(map[domain.ChannelKey]*quality.ChannelState),
		lastQuality: make(map[domain.ChannelKey]domain.QualityLevel),
		haveQuality: make(map[domain.ChannelKey]bool),
		qualityBus:  newEventBus[domain.QualityLevel](),
		statsBus:    newEventBus[domain.Sample](),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, key := range domain.AllChannels() {
		a.channels[key] = quality.NewChannelState()
	}
	for i := range a.epochCtx {
		ctx, cancel := context.WithCancel(context.Background())
		a.epochCtx[i] = ctx
		a.cancels[i] = cancel
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = clockimpl.NewReal()
	}

	a.ticker = a.clock.NewTicker(tickInterval)
	go a.run()
	return a
}

// SetPeerConnection attaches source as the transport for direction,
// replacing and detaching whatever was previously attached. Passing nil
// detaches: both of direction's channels revert to WARMUP/UNKNOWN and stop
// being sampled until a new source is attached. This is idempotent: calling
// it twice with nil, or twice with the same source, is a no-op beyond the
// epoch bump every call performs so any read already in flight against the
// old source is dropped.
func (a *Analyzer) SetPeerConnection(source ports.StatsSource, direction domain.PeerDirection) {
	idx := directionIndex(direction)

	a.mu.Lock()
	if a.unsubs[idx] != nil {
		a.unsubs[idx]()
		a.unsubs[idx] = nil
	}
	a.sources[idx] = source
	a.bumpEpochAndResetLocked(idx, direction)
	if source != nil {
		a.unsubs[idx] = source.OnStateChange(func(state domain.TransportState) {
			if a.logger != nil {
				a.logger.Debugw("transport state changed", "direction", direction.String(), "state", state.String())
			}
			if state.Analyzable() {
				return
			}
			// a transition to DISCONNECTED/FAILED/CLOSED bumps the
			// epoch and puts the direction's channels back into UNKNOWN;
			// the source stays attached and resumes sampling on its own
			// if the transport becomes Analyzable again.
			a.mu.Lock()
			a.bumpEpochAndResetLocked(idx, direction)
			a.mu.Unlock()
		})
	}
	a.mu.Unlock()
}

// bumpEpochAndResetLocked cancels any read in flight for idx, starts a fresh
// epoch, and resets direction's two channels to WARMUP/UNKNOWN. Callers must
// hold a.mu.
func (a *Analyzer) bumpEpochAndResetLocked(idx int, direction domain.PeerDirection) {
	a.cancels[idx]() // drop any read still in flight against the old epoch
	ctx, cancel := context.WithCancel(context.Background())
	a.epochCtx[idx] = ctx
	a.cancels[idx] = cancel
	a.epochs[idx]++
	for _, key := range domain.ChannelsForDirection(direction) {
		a.channels[key].Reset()
		a.haveQuality[key] = false
	}
}

// GetConnectionQualityAudio returns the sender and receiver audio channels'
// current verdicts.
func (a *Analyzer) GetConnectionQualityAudio() (sender, receiver domain.QualityLevel) {
	return a.levelOf(domain.DirSender, domain.KindAudio), a.levelOf(domain.DirReceiver, domain.KindAudio)
}

// GetConnectionQualityVideo returns the sender and receiver video channels'
// current verdicts.
func (a *Analyzer) GetConnectionQualityVideo() (sender, receiver domain.QualityLevel) {
	return a.levelOf(domain.DirSender, domain.KindVideo), a.levelOf(domain.DirReceiver, domain.KindVideo)
}

func (a *Analyzer) levelOf(dir domain.PeerDirection, kind domain.MediaKind) domain.QualityLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.channels[domain.ChannelKey{Direction: dir, Kind: kind}].Level()
}

// OnQualityChange subscribes h to changes on the given media kind's pair of
// channels (sender and receiver both route through the same event, mirroring
// the two Get* accessors). Returns an unsubscribe func.
func (a *Analyzer) OnQualityChange(kind domain.MediaKind, h QualityHandler) (unsubscribe func()) {
	return a.qualityBus.on(channelEventFor(kind), h)
}

// OffQualityChange removes a previously registered quality handler.
func (a *Analyzer) OffQualityChange(kind domain.MediaKind, h QualityHandler) {
	a.qualityBus.off(channelEventFor(kind), h)
}

// OnStats subscribes h to every tick's raw extracted sample for kind.
func (a *Analyzer) OnStats(kind domain.MediaKind, h StatsHandler) (unsubscribe func()) {
	return a.statsBus.on(channelEventFor(kind), h)
}

// OffStats removes a previously registered stats handler.
func (a *Analyzer) OffStats(kind domain.MediaKind, h StatsHandler) {
	a.statsBus.off(channelEventFor(kind), h)
}

// Close stops the tick loop and detaches both directions. An Analyzer is not
// usable after Close.
func (a *Analyzer) Close() {
	close(a.stopCh)
	<-a.doneCh
	a.SetPeerConnection(nil, domain.DirSender)
	a.SetPeerConnection(nil, domain.DirReceiver)
	a.ticker.Stop()
}

func directionIndex(dir domain.PeerDirection) int {
	if dir == domain.DirReceiver {
		return 1
	}
	return 0
}

func channelEventFor(kind domain.MediaKind) channelEvent {
	if kind == domain.KindVideo {
		return eventVideo
	}
	return eventAudio
}
