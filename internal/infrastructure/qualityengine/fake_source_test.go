package qualityengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"peerqual/internal/core/domain"
	"peerqual/internal/core/ports"
)

// fakeSource is a ports.StatsSource a test drives explicitly: each
// ReadStats call pops the next queued result (or blocks forever if the
// queue is empty and block is true), so a test can script exact
// per-tick sequences the way pkg/clock.Virtual scripts exact ticks.
type fakeSource struct {
	mu      sync.Mutex
	state   domain.TransportState
	queue   []ports.StatsResult
	block   bool
	handler func(domain.TransportState)
	reads   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{state: domain.TransportConnected}
}

func (f *fakeSource) State() domain.TransportState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) OnStateChange(h func(domain.TransportState)) (unsubscribe func()) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.handler = nil
		f.mu.Unlock()
	}
}

func (f *fakeSource) setState(s domain.TransportState) {
	f.mu.Lock()
	f.state = s
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(s)
	}
}

// enqueue schedules result to be returned by the next ReadStats call.
func (f *fakeSource) enqueue(result ports.StatsResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, result)
}

// blockForever makes every ReadStats call return a channel that is never
// sent to, so the driver observes it only via ctx cancellation.
func (f *fakeSource) blockForever(block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = block
}

func (f *fakeSource) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeSource) ReadStats(ctx context.Context) <-chan ports.StatsResult {
	out := make(chan ports.StatsResult, 1)

	f.mu.Lock()
	f.reads++
	block := f.block
	var result ports.StatsResult
	var have bool
	if !block && len(f.queue) > 0 {
		result = f.queue[0]
		f.queue = f.queue[1:]
		have = true
	}
	f.mu.Unlock()

	if !have {
		if !block {
			// No script left for this tick: report a transient read
			// failure rather than hang the test forever.
			out <- ports.StatsResult{Err: context.DeadlineExceeded}
			close(out)
		}
		// block is true: leave out open and unsent, so the driver
		// observes this read only via ctx cancellation, the same as a
		// StatsSource that hangs.
		return out
	}

	out <- result
	close(out)
	return out
}

func sample(local uint64, lost int64, rtt float64, tms int64) domain.Sample {
	return domain.Sample{TMs: tms, PacketsLocal: local, PacketsLost: domain.Some(lost), RTTSeconds: domain.Some(rtt)}
}

func outboundRecord(kind domain.MediaKind, sent uint64, tms int64) domain.StatRecord {
	return domain.StatRecord{
		Type:        domain.StatOutboundRTP,
		Kind:        kind,
		PacketsSent: domain.Some(sent),
		TimestampMs: domain.Some(tms),
	}
}

func remoteInboundRecord(kind domain.MediaKind, lost int64, rtt float64, tms int64) domain.StatRecord {
	return domain.StatRecord{
		Type:          domain.StatRemoteInboundRTP,
		Kind:          kind,
		PacketsLost:   domain.Some(lost),
		RoundTripTime: domain.Some(rtt),
		TimestampMs:   domain.Some(tms),
	}
}

func inboundRecord(kind domain.MediaKind, received uint64, tms int64) domain.StatRecord {
	return domain.StatRecord{
		Type:            domain.StatInboundRTP,
		Kind:            kind,
		PacketsReceived: domain.Some(received),
		TimestampMs:     domain.Some(tms),
	}
}

func remoteOutboundRecord(kind domain.MediaKind, sent uint64, tms int64) domain.StatRecord {
	return domain.StatRecord{
		Type:          domain.StatRemoteOutboundRTP,
		Kind:          kind,
		PacketsSent:   domain.Some(sent),
		PacketsLost:   domain.Some(int64(0)),
		RoundTripTime: domain.Some(0.05),
		TimestampMs:   domain.Some(tms),
	}
}

func okResult(records ...domain.StatRecord) ports.StatsResult {
	return ports.StatsResult{Records: records}
}

// waitForReads polls until source has serviced at least n ReadStats calls,
// or fails the test after a short timeout. The driver processes a tick on
// its own goroutine, so tests must not assert on post-tick state until they
// know the goroutine has actually reached it.
func waitForReads(t *testing.T, source *fakeSource, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if source.readCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d reads, got %d", n, source.readCount())
}
