package webrtc

import (
	"sync/atomic"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func TestCollectStats(t *testing.T) {
	report := pion.StatsReport{
		"in-audio": pion.InboundRTPStreamStats{BytesReceived: 1000, PacketsReceived: 10, PacketsLost: 1, Jitter: 0.02},
		"in-video": pion.InboundRTPStreamStats{BytesReceived: 3000, PacketsReceived: 30, PacketsLost: 2, Jitter: 0.04},
		"out":      pion.OutboundRTPStreamStats{BytesSent: 500, PacketsSent: 5},
		"pair": pion.ICECandidatePairStats{
			State:                pion.StatsICECandidatePairStateSucceeded,
			LocalCandidateID:     "local",
			CurrentRoundTripTime: 0.05,
		},
		"local": pion.ICECandidateStats{CandidateType: pion.ICECandidateTypeRelay},
	}

	ps := collectStats("s1", report)
	require.Equal(t, "s1", ps.StreamID)
	require.EqualValues(t, 4000, ps.BytesReceived)
	require.EqualValues(t, 40, ps.PacketsReceived)
	require.EqualValues(t, 3, ps.PacketsLost)
	require.EqualValues(t, 500, ps.BytesSent)
	require.EqualValues(t, 5, ps.PacketsSent)
	require.InDelta(t, 0.03, ps.Jitter, 1e-9)
	require.InDelta(t, float64(50*time.Millisecond), float64(ps.RoundTripTime), float64(time.Microsecond))
	require.Equal(t, "relay", ps.ConnectionType)
}

func TestWithBitrates(t *testing.T) {
	now := time.Now()
	prev := PeerStats{Timestamp: now, BytesSent: 1000, BytesReceived: 0}
	cur := PeerStats{Timestamp: now.Add(time.Second), BytesSent: 2000, BytesReceived: 500}

	got := withBitrates(cur, prev)
	require.InDelta(t, 8000, got.SendBitrate, 1e-6)
	require.InDelta(t, 4000, got.ReceiveBitrate, 1e-6)

	first := withBitrates(cur, PeerStats{})
	require.Zero(t, first.SendBitrate)
}

func TestStatsPoller_NoReportAfterStop(t *testing.T) {
	pc, err := pion.NewPeerConnection(pion.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	var stopped, late atomic.Bool
	reports := make(chan struct{}, 1)
	p := startStatsPoller("s1", pc, time.Millisecond, func(PeerStats) {
		if stopped.Load() {
			late.Store(true)
		}
		select {
		case reports <- struct{}{}:
		default:
		}
	})

	select {
	case <-reports:
	case <-time.After(5 * time.Second):
		t.Fatal("no stats reported")
	}
	p.stop()
	stopped.Store(true)

	time.Sleep(50 * time.Millisecond)
	require.False(t, late.Load())
}
