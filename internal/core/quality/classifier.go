package quality

import (
	"peerqual/internal/core/domain"
)

// window is the set of deltas computed over a ring's baseline→latest span,
// the last WindowSize intervals.
type window struct {
	deltaLocal  int64
	deltaRemote int64
	deltaLost   int64
	deltaTMs    int64
	rttSeconds  float64
}

// computeWindow derives the deltas the classifier and the loss-only
// NO_TRANSMITTED_DATA rule need. When the remote counter is unavailable on
// either end of the window, deltaRemote falls back to deltaLocal-deltaLost,
// the one place "absent" is allowed to resolve to a derived value instead
// of staying absent. PacketsLost and RTTSeconds feed the loss-ratio and RTT
// thresholds directly, with no such fallback available: if PacketsLost is
// absent at either end of the window, or RTTSeconds is absent on the latest
// sample (the only RTT the table reads), the window is unusable and ok is
// false.
func computeWindow(baseline, latest domain.Sample) (w window, ok bool) {
	latestLost, latestLostOK := latest.PacketsLost.Get()
	baseLost, baseLostOK := baseline.PacketsLost.Get()
	rtt, rttOK := latest.RTTSeconds.Get()
	if !latestLostOK || !baseLostOK || !rttOK {
		return window{}, false
	}

	w = window{
		deltaLocal: int64(latest.PacketsLocal) - int64(baseline.PacketsLocal),
		deltaLost:  latestLost - baseLost,
		deltaTMs:   latest.TMs - baseline.TMs,
		rttSeconds: rtt,
	}

	latestRemote, latestOK := latest.PacketsRemote.Get()
	baseRemote, baseOK := baseline.PacketsRemote.Get()
	if latestOK && baseOK {
		w.deltaRemote = int64(latestRemote) - int64(baseRemote)
	} else {
		w.deltaRemote = w.deltaLocal - w.deltaLost
	}

	return w, true
}

// Classify runs the decision table against a ready ring (Ready() must
// already be true; callers that route through ChannelState never call
// this otherwise). It returns ok false when the window spanning the ring's
// baseline and latest sample lacks the loss or RTT data the table needs;
// callers must treat that the same as a stalled tick rather than guess.
// The prolonged-stall branch of the NO_TRANSMITTED_DATA rule is handled by
// ChannelState before Classify is ever invoked; the deltaLocal==0 case here
// is a defensive fallback for direct callers of this package.
func Classify(ring *SampleRing) (domain.QualityLevel, bool) {
	baseline, _ := ring.Baseline()
	latest, _ := ring.Latest()
	w, ok := computeWindow(baseline, latest)
	if !ok {
		return domain.Unknown, false
	}

	if w.deltaRemote <= 0 && w.deltaLocal > 0 {
		return domain.NoTransmittedData, true
	}
	if w.deltaLocal == 0 {
		return domain.NoTransmittedData, true
	}

	lossRatio := float64(w.deltaLost) / maxFloat(float64(w.deltaLocal), 1)
	packetsPerSecond := float64(w.deltaLocal) / (float64(w.deltaTMs) / 1000.0)
	rtt := w.rttSeconds

	switch {
	case lossRatio > 0.2 || packetsPerSecond < 10 || rtt > 1.0:
		return domain.VeryBad, true
	case (lossRatio > 0.1 && lossRatio <= 0.2) || (rtt > 0.5 && rtt <= 1.0):
		return domain.Bad, true
	case (lossRatio >= 0.03 && lossRatio <= 0.1) || (rtt > 0.3 && rtt <= 0.5):
		return domain.Medium, true
	default:
		return domain.Good, true
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
