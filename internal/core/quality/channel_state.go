package quality

import "peerqual/internal/core/domain"

// LifecycleState is the coarse phase a channel's stall machine is in.
// Structurally this mirrors a circuit breaker's Closed/Open/HalfOpen states
// (see DESIGN.md) repurposed for the WARMUP → READY → DEAD progression:
// WARMUP is "not enough samples yet", READY is "classifying normally", DEAD
// is "three consecutive stalls, reporting NO_TRANSMITTED_DATA". Unlike a
// breaker's half-open recovery budget, DEAD exits unconditionally on the
// very next positive delta.
type LifecycleState int

const (
	StateWarmup LifecycleState = iota
	StateReady
	StateDead
)

func (s LifecycleState) String() string {
	switch s {
	case StateWarmup:
		return "warmup"
	case StateReady:
		return "ready"
	case StateDead:
		return "dead"
	default:
		return "invalid"
	}
}

// maxConsecutiveStalls is the contract's "reaches 3" threshold: two
// consecutive zero-delta ticks are tolerated, the third declares the
// channel dead.
const maxConsecutiveStalls = 3

// ChannelState is the per-(direction,kind) state the engine owns: its
// sample ring, its last emitted verdict, its stall counter, and the
// lifecycle phase those two imply. It is a pure state machine: it has no
// notion of wall-clock time or of the transport; the driver feeds it one
// sample (or one stall) per tick.
type ChannelState struct {
	ring                  *SampleRing
	state                 LifecycleState
	currentLevel          domain.QualityLevel
	consecutiveStallCount int
}

// NewChannelState returns a channel freshly reset for a new epoch.
func NewChannelState() *ChannelState {
	c := &ChannelState{ring: NewSampleRing()}
	c.Reset()
	return c
}

// Reset clears the ring and stall counter and returns the channel to
// WARMUP/UNKNOWN. Called on attach, detach, and every epoch transition.
func (c *ChannelState) Reset() {
	c.ring.Reset()
	c.state = StateWarmup
	c.currentLevel = domain.Unknown
	c.consecutiveStallCount = 0
}

// Level returns the channel's currently emitted verdict without advancing
// anything.
func (c *ChannelState) Level() domain.QualityLevel {
	return c.currentLevel
}

// Lifecycle returns the channel's current coarse phase.
func (c *ChannelState) Lifecycle() LifecycleState {
	return c.state
}

// StallCount returns the number of consecutive zero-delta ticks observed.
func (c *ChannelState) StallCount() int {
	return c.consecutiveStallCount
}

// AdvanceSample pushes a freshly extracted sample through the state machine
// and returns the channel's verdict for this tick.
func (c *ChannelState) AdvanceSample(s domain.Sample) domain.QualityLevel {
	priorLatest, hadPrior := c.ring.Latest()
	c.ring.Push(s)

	if !c.ring.Ready() {
		c.state = StateWarmup
		c.currentLevel = domain.Unknown
		return c.currentLevel
	}

	if hadPrior && s.PacketsLocal == priorLatest.PacketsLocal {
		return c.stall()
	}

	level, ok := Classify(c.ring)
	if !ok {
		// The window's baseline or latest sample is missing loss or RTT
		// data this tick; treat it the same as a read that produced no
		// usable sample rather than guess at a verdict.
		return c.stall()
	}

	c.consecutiveStallCount = 0
	c.state = StateReady
	c.currentLevel = level
	return c.currentLevel
}

// AdvanceStalled records a tick with no usable sample, a TransientReadFailure
// or MalformedStats tick, without pushing anything into the ring. It is
// treated exactly like a zero-delta tick for stall-counting
// purposes, and the previously emitted level is retained unless the channel
// was still in WARMUP (still UNKNOWN) or this stall is the one that tips it
// into DEAD.
func (c *ChannelState) AdvanceStalled() domain.QualityLevel {
	if !c.ring.Ready() {
		c.currentLevel = domain.Unknown
		return c.currentLevel
	}
	return c.stall()
}

func (c *ChannelState) stall() domain.QualityLevel {
	c.consecutiveStallCount++
	if c.consecutiveStallCount >= maxConsecutiveStalls {
		c.state = StateDead
		c.currentLevel = domain.NoTransmittedData
	}
	// Below threshold: retain currentLevel and stay in whatever state
	// (normally StateReady) the channel was already in.
	return c.currentLevel
}
