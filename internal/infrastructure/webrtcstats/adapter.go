// Package webrtcstats adapts a pion/webrtc PeerConnection to
// ports.StatsSource. Unlike parsing raw RTCP packets off an RTPReceiver,
// this adapter calls PeerConnection.GetStats, whose StatsReport already
// reports
// outbound-rtp/inbound-rtp/remote-inbound-rtp/remote-outbound-rtp records,
// the same four record types the domain package models directly.
package webrtcstats

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"peerqual/internal/core/domain"
	"peerqual/internal/core/ports"
)

// Adapter wraps one *webrtc.PeerConnection as a ports.StatsSource. One
// Adapter covers both directions (sender and receiver channels both read
// from the same connection's GetStats report); the engine is expected to
// attach the same Adapter for both domain.DirSender and domain.DirReceiver
// when a single PeerConnection carries both.
type Adapter struct {
	pc *webrtc.PeerConnection

	mu       sync.Mutex
	handlers []func(domain.TransportState)
}

// New wraps pc. It must not be nil. If logger is non-nil, RunDiagnostics is
// started for every sender already on pc at construction time.
func New(pc *webrtc.PeerConnection, logger *zap.SugaredLogger) *Adapter {
	a := &Adapter{pc: pc}
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		a.notify(translateICEState(state))
	})
	if logger != nil {
		for _, sender := range pc.GetSenders() {
			RunDiagnostics(logger, sender)
		}
	}
	return a
}

// State reports the connection's current ICE connection state, translated
// into domain.TransportState.
func (a *Adapter) State() domain.TransportState {
	return translateICEState(a.pc.ICEConnectionState())
}

// OnStateChange registers h to be called whenever the underlying
// PeerConnection's ICE connection state changes.
func (a *Adapter) OnStateChange(h func(domain.TransportState)) (unsubscribe func()) {
	a.mu.Lock()
	a.handlers = append(a.handlers, h)
	idx := len(a.handlers) - 1
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if idx < len(a.handlers) {
			a.handlers[idx] = nil
		}
	}
}

func (a *Adapter) notify(state domain.TransportState) {
	a.mu.Lock()
	snapshot := make([]func(domain.TransportState), len(a.handlers))
	copy(snapshot, a.handlers)
	a.mu.Unlock()

	for _, h := range snapshot {
		if h != nil {
			h(state)
		}
	}
}

// ReadStats pulls a fresh GetStats report off the PeerConnection and
// translates it into the channel's StatRecord vocabulary. GetStats itself
// has no context support, so the translated send races ctx.Done() rather
// than the call: a driver that has already moved to a new epoch simply
// never reads the result.
func (a *Adapter) ReadStats(ctx context.Context) <-chan ports.StatsResult {
	out := make(chan ports.StatsResult, 1)
	go func() {
		defer close(out)
		report := a.pc.GetStats()
		records := translateReport(report)
		select {
		case out <- ports.StatsResult{Records: records}:
		case <-ctx.Done():
		}
	}()
	return out
}

func translateICEState(state webrtc.ICEConnectionState) domain.TransportState {
	switch state {
	case webrtc.ICEConnectionStateNew:
		return domain.TransportNew
	case webrtc.ICEConnectionStateChecking:
		return domain.TransportChecking
	case webrtc.ICEConnectionStateConnected:
		return domain.TransportConnected
	case webrtc.ICEConnectionStateCompleted:
		return domain.TransportCompleted
	case webrtc.ICEConnectionStateDisconnected:
		return domain.TransportDisconnected
	case webrtc.ICEConnectionStateFailed:
		return domain.TransportFailed
	case webrtc.ICEConnectionStateClosed:
		return domain.TransportClosed
	default:
		return domain.TransportNew
	}
}

func mediaKindOf(kind string) (domain.MediaKind, bool) {
	switch kind {
	case "audio":
		return domain.KindAudio, true
	case "video":
		return domain.KindVideo, true
	default:
		return 0, false
	}
}

func translateReport(report webrtc.StatsReport) []domain.StatRecord {
	records := make([]domain.StatRecord, 0, len(report))
	for _, entry := range report {
		switch s := entry.(type) {
		case webrtc.OutboundRTPStreamStats:
			kind, ok := mediaKindOf(s.Kind)
			if !ok {
				continue
			}
			records = append(records, domain.StatRecord{
				Type:        domain.StatOutboundRTP,
				Kind:        kind,
				PacketsSent: domain.Some(uint64(s.PacketsSent)),
				TimestampMs: domain.Some(s.Timestamp.Time().UnixMilli()),
			})

		case webrtc.InboundRTPStreamStats:
			kind, ok := mediaKindOf(s.Kind)
			if !ok {
				continue
			}
			records = append(records, domain.StatRecord{
				Type:            domain.StatInboundRTP,
				Kind:            kind,
				PacketsReceived: domain.Some(uint64(s.PacketsReceived)),
				TimestampMs:     domain.Some(s.Timestamp.Time().UnixMilli()),
			})

		case webrtc.RemoteInboundRTPStreamStats:
			kind, ok := mediaKindOf(s.Kind)
			if !ok {
				continue
			}
			// remote-inbound-rtp carries loss, jitter and RTT but no absolute
			// received-packet count; PacketsReceived is left absent so the
			// classifier's deltaLocal-deltaLost fallback applies.
			records = append(records, domain.StatRecord{
				Type:          domain.StatRemoteInboundRTP,
				Kind:          kind,
				PacketsLost:   domain.Some(int64(s.PacketsLost)),
				RoundTripTime: domain.Some(s.RoundTripTime),
				TimestampMs:   domain.Some(s.Timestamp.Time().UnixMilli()),
			})

		case webrtc.RemoteOutboundRTPStreamStats:
			kind, ok := mediaKindOf(s.Kind)
			if !ok {
				continue
			}
			records = append(records, domain.StatRecord{
				Type:        domain.StatRemoteOutboundRTP,
				Kind:        kind,
				PacketsSent: domain.Some(uint64(s.PacketsSent)),
				TimestampMs: domain.Some(s.Timestamp.Time().UnixMilli()),
			})
		}
	}
	return records
}
