package domain

// Sample is one row per periodic tick, per channel. PacketsLocal is the
// count the engine's own side accounted for (sent for a sender channel,
// received for a receiver channel); PacketsRemote, PacketsLost, and
// RTTSeconds all come off the remote-facing record (remote-inbound-rtp for
// a sender channel, remote-outbound-rtp for a receiver channel) and stay
// absent, not zero, whenever that record or one of its fields is missing
// this tick.
type Sample struct {
	TMs           int64
	PacketsLocal  uint64
	PacketsRemote Optional[uint64]
	PacketsLost   Optional[int64]
	RTTSeconds    Optional[float64]
}
