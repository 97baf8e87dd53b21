package quality

import "peerqual/internal/core/domain"

// Extract pulls the single Sample a channel needs for this tick out of a raw
// stats snapshot. It tolerates multiple records of the same type (the first
// valid match wins) and ignores anything malformed. A missing local
// counter, the packet count the engine's own side is responsible for,
// means the tick has no usable record for this channel at all.
func Extract(dir domain.PeerDirection, kind domain.MediaKind, records []domain.StatRecord) (domain.Sample, error) {
	localType, remoteType := statTypesFor(dir)

	var localRec, remoteRec *domain.StatRecord
	for i := range records {
		rec := records[i]
		if !rec.Valid() || rec.Kind != kind {
			continue
		}
		switch rec.Type {
		case localType:
			if localRec == nil {
				localRec = &rec
			}
		case remoteType:
			if remoteRec == nil {
				remoteRec = &rec
			}
		}
	}

	if localRec == nil {
		return domain.Sample{}, domain.ErrNoUsableRecord
	}

	packetsLocal, ok := localCounter(dir, *localRec)
	if !ok {
		return domain.Sample{}, domain.ErrNoUsableRecord
	}

	ts, ok := localRec.TimestampMs.Get()
	if !ok {
		// Valid() already guarantees a timestamp is present; defensive only.
		return domain.Sample{}, domain.ErrNoUsableRecord
	}

	sample := domain.Sample{TMs: ts, PacketsLocal: packetsLocal}

	if remoteRec != nil {
		sample.PacketsRemote = remoteCounter(dir, *remoteRec)
		sample.PacketsLost = remoteRec.PacketsLost
		sample.RTTSeconds = remoteRec.RoundTripTime
	}

	return sample, nil
}

func statTypesFor(dir domain.PeerDirection) (local, remote domain.StatType) {
	if dir == domain.DirSender {
		return domain.StatOutboundRTP, domain.StatRemoteInboundRTP
	}
	return domain.StatInboundRTP, domain.StatRemoteOutboundRTP
}

func localCounter(dir domain.PeerDirection, rec domain.StatRecord) (uint64, bool) {
	if dir == domain.DirSender {
		return rec.PacketsSent.Get()
	}
	return rec.PacketsReceived.Get()
}

func remoteCounter(dir domain.PeerDirection, rec domain.StatRecord) domain.Optional[uint64] {
	if dir == domain.DirSender {
		return rec.PacketsReceived
	}
	return rec.PacketsSent
}
