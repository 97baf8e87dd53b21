// Package metrics exposes the analyzer's per-channel state as Prometheus
// series: one promauto-registered metric per concern, a GaugeVec keyed by
// the dimensions that vary (direction and media kind), and a thin
// Collector type with one Record/Update method per event the rest of the
// program produces.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"peerqual/internal/core/domain"
)

// Collector wires the analyzer's quality verdicts and raw sample counters
// into Prometheus.
type Collector struct {
	qualityLevel   *prometheus.GaugeVec
	stallCount     *prometheus.GaugeVec
	channelsDead   *prometheus.GaugeVec
	statsLatency   prometheus.Histogram
	ticksProcessed prometheus.Counter
	readErrors     *prometheus.CounterVec
}

// NewCollector registers and returns a Collector against the default
// Prometheus registry. It must be constructed at most once per process per
// registry; promauto panics on duplicate registration, which is the
// intended behavior if this is ever called twice against the same
// registry.
func NewCollector() *Collector {
	return newCollector(promauto.With(prometheus.DefaultRegisterer))
}

// NewCollectorWith registers a Collector against reg instead of the default
// registry. Tests use this with a throwaway prometheus.NewRegistry() so
// repeated runs never collide with promauto's duplicate-registration panic.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	return newCollector(promauto.With(reg))
}

func newCollector(factory promauto.Factory) *Collector {
	return &Collector{
		qualityLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "peerqual_channel_quality_level",
			Help: "Current quality verdict per channel, as the ordinal of domain.QualityLevel (0=NO_TRANSMITTED_DATA .. 4=GOOD, 5=UNKNOWN).",
		}, []string{"direction", "kind"}),

		stallCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "peerqual_channel_consecutive_stalls",
			Help: "Consecutive zero-delta ticks observed on a channel since its last positive delta.",
		}, []string{"direction", "kind"}),

		channelsDead: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "peerqual_channel_dead",
			Help: "1 if the channel's lifecycle state is DEAD, 0 otherwise.",
		}, []string{"direction", "kind"}),

		statsLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "peerqual_stats_read_duration_seconds",
			Help:    "Time spent waiting for a StatsSource.ReadStats call to resolve.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		ticksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerqual_ticks_processed_total",
			Help: "Total number of driver ticks that ran to completion.",
		}),

		readErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerqual_stats_read_errors_total",
			Help: "Total number of ticks where ReadStats returned an error or no usable record.",
		}, []string{"direction", "kind"}),
	}
}

// ObserveQuality records a channel's current verdict and stall count.
func (c *Collector) ObserveQuality(key domain.ChannelKey, level domain.QualityLevel, stalls int, dead bool) {
	labels := prometheus.Labels{"direction": key.Direction.String(), "kind": key.Kind.String()}
	c.qualityLevel.With(labels).Set(float64(level))
	c.stallCount.With(labels).Set(float64(stalls))
	deadValue := 0.0
	if dead {
		deadValue = 1.0
	}
	c.channelsDead.With(labels).Set(deadValue)
}

// RecordReadDuration observes how long a single ReadStats call took.
func (c *Collector) RecordReadDuration(d time.Duration) {
	c.statsLatency.Observe(d.Seconds())
}

// RecordTick increments the processed-tick counter.
func (c *Collector) RecordTick() {
	c.ticksProcessed.Inc()
}

// RecordReadError increments the per-channel read-failure counter.
func (c *Collector) RecordReadError(key domain.ChannelKey) {
	c.readErrors.WithLabelValues(key.Direction.String(), key.Kind.String()).Inc()
}
