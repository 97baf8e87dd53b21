package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerqual/internal/core/domain"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollectorWith(prometheus.NewRegistry())
}

func gaugeValue(t *testing.T, g *prometheus.GaugeVec, labels prometheus.Labels) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.With(labels).Write(m))
	return m.GetGauge().GetValue()
}

func TestCollector_ObserveQuality(t *testing.T) {
	c := newTestCollector(t)
	key := domain.ChannelKey{Direction: domain.DirSender, Kind: domain.KindAudio}

	c.ObserveQuality(key, domain.Good, 0, false)

	labels := prometheus.Labels{"direction": "sender", "kind": "audio"}
	assert.Equal(t, float64(domain.Good), gaugeValue(t, c.qualityLevel, labels))
	assert.Equal(t, float64(0), gaugeValue(t, c.stallCount, labels))
	assert.Equal(t, float64(0), gaugeValue(t, c.channelsDead, labels))

	c.ObserveQuality(key, domain.NoTransmittedData, 3, true)
	assert.Equal(t, float64(domain.NoTransmittedData), gaugeValue(t, c.qualityLevel, labels))
	assert.Equal(t, float64(3), gaugeValue(t, c.stallCount, labels))
	assert.Equal(t, float64(1), gaugeValue(t, c.channelsDead, labels))
}

func TestCollector_RecordTick(t *testing.T) {
	c := newTestCollector(t)
	c.RecordTick()
	c.RecordTick()

	m := &dto.Metric{}
	require.NoError(t, c.ticksProcessed.Write(m))
	assert.Equal(t, float64(2), m.GetCounter().GetValue())
}

func TestCollector_RecordReadError(t *testing.T) {
	c := newTestCollector(t)
	key := domain.ChannelKey{Direction: domain.DirReceiver, Kind: domain.KindVideo}
	c.RecordReadError(key)

	m := &dto.Metric{}
	require.NoError(t, c.readErrors.WithLabelValues("receiver", "video").Write(m))
	assert.Equal(t, float64(1), m.GetCounter().GetValue())
}
