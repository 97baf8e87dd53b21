package domain

// StatType is the tagged variant of a single stats snapshot entry, mirroring
// the four record types a WebRTC-style getStats() call produces.
type StatType int

const (
	StatOutboundRTP StatType = iota
	StatInboundRTP
	StatRemoteInboundRTP
	StatRemoteOutboundRTP
)

func (t StatType) String() string {
	switch t {
	case StatOutboundRTP:
		return "outbound-rtp"
	case StatInboundRTP:
		return "inbound-rtp"
	case StatRemoteInboundRTP:
		return "remote-inbound-rtp"
	case StatRemoteOutboundRTP:
		return "remote-outbound-rtp"
	default:
		return "invalid"
	}
}

// StatRecord is one entry of a stats snapshot. Any numeric field the
// transport has not yet populated is represented as an absent Optional
// rather than coerced to zero.
type StatRecord struct {
	Type StatType
	Kind MediaKind

	PacketsSent     Optional[uint64]
	PacketsReceived Optional[uint64]
	PacketsLost     Optional[int64]
	RoundTripTime   Optional[float64] // seconds
	TimestampMs     Optional[int64]   // monotonic milliseconds
}

// Valid reports whether the record carries the mandatory timestamp and a
// recognized type/kind pair. Records failing this check are treated as
// MalformedStats and ignored by the extractor.
func (r StatRecord) Valid() bool {
	if _, ok := r.TimestampMs.Get(); !ok {
		return false
	}
	switch r.Type {
	case StatOutboundRTP, StatInboundRTP, StatRemoteInboundRTP, StatRemoteOutboundRTP:
	default:
		return false
	}
	switch r.Kind {
	case KindAudio, KindVideo:
	default:
		return false
	}
	return true
}
