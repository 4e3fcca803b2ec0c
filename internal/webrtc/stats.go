package webrtc

import (
	"context"
	"time"

	pion "github.com/pion/webrtc/v4"
)

// PeerStats is one sample of a stream's connection statistics.
type PeerStats struct {
	StreamID        string        `json:"streamId"`
	Timestamp       time.Time     `json:"timestamp"`
	BytesSent       uint64        `json:"bytesSent"`
	BytesReceived   uint64        `json:"bytesReceived"`
	PacketsSent     uint64        `json:"packetsSent"`
	PacketsReceived uint64        `json:"packetsReceived"`
	PacketsLost     int64         `json:"packetsLost"`
	Jitter          float64       `json:"jitter"`
	RoundTripTime   time.Duration `json:"roundTripTime"`
	// Bitrates are in bits per second since the previous sample.
	SendBitrate    float64 `json:"sendBitrate"`
	ReceiveBitrate float64 `json:"receiveBitrate"`
	ConnectionType string  `json:"connectionType"`
}

// collectStats folds a pion report into a PeerStats. Jitter is the mean over
// inbound streams.
func collectStats(streamID string, report pion.StatsReport) PeerStats {
	ps := PeerStats{StreamID: streamID, Timestamp: time.Now(), ConnectionType: "unknown"}

	var jitterSum float64
	var inbound int
	for _, stat := range report {
		switch s := stat.(type) {
		case pion.InboundRTPStreamStats:
			ps.BytesReceived += s.BytesReceived
			ps.PacketsReceived += uint64(s.PacketsReceived)
			ps.PacketsLost += int64(s.PacketsLost)
			jitterSum += s.Jitter
			inbound++
		case pion.OutboundRTPStreamStats:
			ps.BytesSent += s.BytesSent
			ps.PacketsSent += uint64(s.PacketsSent)
		case pion.ICECandidatePairStats:
			if s.State != pion.StatsICECandidatePairStateSucceeded {
				continue
			}
			ps.RoundTripTime = time.Duration(s.CurrentRoundTripTime * float64(time.Second))
			if local, ok := report[s.LocalCandidateID].(pion.ICECandidateStats); ok {
				ps.ConnectionType = connectionType(local.CandidateType)
			}
		}
	}
	if inbound > 0 {
		ps.Jitter = jitterSum / float64(inbound)
	}
	return ps
}

func connectionType(t pion.ICECandidateType) string {
	switch t {
	case pion.ICECandidateTypeRelay:
		return "relay"
	case pion.ICECandidateTypeHost, pion.ICECandidateTypeSrflx, pion.ICECandidateTypePrflx:
		return "direct"
	default:
		return "unknown"
	}
}

// withBitrates fills the bitrate fields from the previous sample.
func withBitrates(cur, prev PeerStats) PeerStats {
	elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if prev.Timestamp.IsZero() || elapsed <= 0 {
		return cur
	}
	if cur.BytesSent >= prev.BytesSent {
		cur.SendBitrate = float64(cur.BytesSent-prev.BytesSent) * 8 / elapsed
	}
	if cur.BytesReceived >= prev.BytesReceived {
		cur.ReceiveBitrate = float64(cur.BytesReceived-prev.BytesReceived) * 8 / elapsed
	}
	return cur
}

// statsPoller samples a connection on a fixed interval.
type statsPoller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startStatsPoller(streamID string, pc *pion.PeerConnection, interval time.Duration, report func(PeerStats)) *statsPoller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &statsPoller{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prev PeerStats
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if pc.ConnectionState() == pion.PeerConnectionStateClosed {
				return
			}
			cur := withBitrates(collectStats(streamID, pc.GetStats()), prev)
			prev = cur
			if ctx.Err() != nil {
				return
			}
			report(cur)
		}
	}()
	return p
}

// stop ends polling. No report is made once it returns.
func (p *statsPoller) stop() {
	p.cancel()
	<-p.done
}
