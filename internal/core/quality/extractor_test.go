package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerqual/internal/core/domain"
)

func outboundRecord(sent uint64, ts int64) domain.StatRecord {
	return domain.StatRecord{
		Type:        domain.StatOutboundRTP,
		Kind:        domain.KindAudio,
		PacketsSent: domain.Some(sent),
		TimestampMs: domain.Some(ts),
	}
}

func remoteInboundRecord(received uint64, lost int64, rtt float64) domain.StatRecord {
	return domain.StatRecord{
		Type:            domain.StatRemoteInboundRTP,
		Kind:            domain.KindAudio,
		PacketsReceived: domain.Some(received),
		PacketsLost:     domain.Some(lost),
		RoundTripTime:   domain.Some(rtt),
		TimestampMs:     domain.Some(int64(0)),
	}
}

func TestExtract_SenderHappyPath(t *testing.T) {
	records := []domain.StatRecord{
		outboundRecord(100, 5000),
		remoteInboundRecord(98, 2, 0.12),
	}

	s, err := Extract(domain.DirSender, domain.KindAudio, records)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), s.TMs)
	assert.Equal(t, uint64(100), s.PacketsLocal)
	remote, ok := s.PacketsRemote.Get()
	assert.True(t, ok)
	assert.Equal(t, uint64(98), remote)
	lost, ok := s.PacketsLost.Get()
	require.True(t, ok)
	assert.Equal(t, int64(2), lost)
	rtt, ok := s.RTTSeconds.Get()
	require.True(t, ok)
	assert.InDelta(t, 0.12, rtt, 1e-9)
}

func TestExtract_NoLocalRecordIsUnusable(t *testing.T) {
	records := []domain.StatRecord{remoteInboundRecord(98, 2, 0.1)}
	_, err := Extract(domain.DirSender, domain.KindAudio, records)
	assert.ErrorIs(t, err, domain.ErrNoUsableRecord)
}

func TestExtract_MissingRemoteLeavesPacketsRemoteAbsent(t *testing.T) {
	records := []domain.StatRecord{outboundRecord(100, 5000)}
	s, err := Extract(domain.DirSender, domain.KindAudio, records)
	require.NoError(t, err)
	_, ok := s.PacketsRemote.Get()
	assert.False(t, ok, "PacketsRemote must stay absent, not coerce to zero")
	_, ok = s.PacketsLost.Get()
	assert.False(t, ok, "PacketsLost must stay absent, not coerce to zero")
	_, ok = s.RTTSeconds.Get()
	assert.False(t, ok, "RTTSeconds must stay absent, not coerce to zero")
}

func TestExtract_WrongKindIgnored(t *testing.T) {
	rec := outboundRecord(100, 5000)
	rec.Kind = domain.KindVideo
	_, err := Extract(domain.DirSender, domain.KindAudio, []domain.StatRecord{rec})
	assert.ErrorIs(t, err, domain.ErrNoUsableRecord)
}

func TestExtract_InvalidRecordIgnored(t *testing.T) {
	rec := outboundRecord(100, 5000)
	rec.TimestampMs = domain.None[int64]()
	_, err := Extract(domain.DirSender, domain.KindAudio, []domain.StatRecord{rec})
	assert.ErrorIs(t, err, domain.ErrNoUsableRecord)
}

func TestExtract_FirstValidMatchWinsOnDuplicateTypes(t *testing.T) {
	records := []domain.StatRecord{
		outboundRecord(100, 5000),
		outboundRecord(999, 6000),
	}
	s, err := Extract(domain.DirSender, domain.KindAudio, records)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), s.PacketsLocal)
}

func TestExtract_ReceiverDirectionUsesInboundAndRemoteOutbound(t *testing.T) {
	inbound := domain.StatRecord{
		Type:            domain.StatInboundRTP,
		Kind:            domain.KindVideo,
		PacketsReceived: domain.Some(uint64(500)),
		TimestampMs:     domain.Some(int64(7000)),
	}
	remoteOutbound := domain.StatRecord{
		Type:        domain.StatRemoteOutboundRTP,
		Kind:        domain.KindVideo,
		PacketsSent: domain.Some(uint64(520)),
		TimestampMs: domain.Some(int64(0)),
	}

	s, err := Extract(domain.DirReceiver, domain.KindVideo, []domain.StatRecord{inbound, remoteOutbound})
	require.NoError(t, err)
	assert.Equal(t, uint64(500), s.PacketsLocal)
	remote, ok := s.PacketsRemote.Get()
	assert.True(t, ok)
	assert.Equal(t, uint64(520), remote)
}
