package webrtcstats

import (
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// RunDiagnostics drains RTCP feedback off sender in the background and logs
// it. NACK and PLI counts never feed the classifier: GetStats doesn't
// surface them, and the decision table has no input for them. They're
// useful operational signal though, so they're logged rather than silently
// discarded. Returns once sender's RTCP stream closes or the connection is
// torn down.
func RunDiagnostics(logger *zap.SugaredLogger, sender *webrtc.RTPSender) {
	if logger == nil || sender == nil {
		return
	}
	go func() {
		for {
			packets, _, err := sender.ReadRTCP()
			if err != nil {
				return
			}
			for _, packet := range packets {
				switch p := packet.(type) {
				case *rtcp.TransportLayerNack:
					logger.Debugw("received NACK", "nacks", len(p.Nacks))
				case *rtcp.PictureLossIndication:
					logger.Debugw("received PLI")
				case *rtcp.ReceiverReport:
					for _, report := range p.Reports {
						logger.Debugw("receiver report",
							"fraction_lost", report.FractionLost,
							"jitter", report.Jitter,
						)
					}
				}
			}
		}
	}()
}
