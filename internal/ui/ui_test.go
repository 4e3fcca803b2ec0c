package ui

import (
	"fmt"
	"testing"
	"time"

	"github.com/BioHazard786/Warpcast/internal/webrtc"
	"github.com/stretchr/testify/require"
)

func TestStatsView(t *testing.T) {
	require.Contains(t, StatsView(nil), "No statistics")

	out := StatsView(map[string]webrtc.PeerStats{
		"s1": {StreamID: "s1", BytesSent: 2048, SendBitrate: 1_500_000, ConnectionType: "relay", RoundTripTime: 40 * time.Millisecond},
	})
	require.Contains(t, out, "s1")
	require.Contains(t, out, "relay")
	require.Contains(t, out, "2.00 KB")
	require.Contains(t, out, "1.50 Mbps")
}

func TestStreamsView(t *testing.T) {
	require.Contains(t, StreamsView(nil), "No peer connections")

	out := StreamsView([]webrtc.StreamInfo{
		{StreamID: "pub1", SignalingState: "stable", ConnectionState: "connected", RemoteDescriptionSet: true, CreatedAt: time.Now()},
		{StreamID: "view1", Play: true, SignalingState: "have-remote-offer", ConnectionState: "new", CreatedAt: time.Now()},
	})
	require.Contains(t, out, "pub1")
	require.Contains(t, out, "view1")
	require.Contains(t, out, "play")
}

func TestRoomInfoFromPayload(t *testing.T) {
	info := RoomInfoFromPayload(map[string]any{
		"command":    "notification",
		"definition": "roomInformation",
		"room":       "lobby",
		"streams":    []any{"a", "b", 3},
	})
	require.Equal(t, RoomInfo{Room: "lobby", Streams: []string{"a", "b"}}, info)
	require.Contains(t, info.View(), "lobby")
	require.Contains(t, RoomInfo{Room: "empty"}.View(), "No streams")
}

func TestStateStyle(t *testing.T) {
	require.Equal(t, LiveStyle.Render("x"), StateStyle("connected").Render("x"))
	require.Equal(t, ErrorStyle.Render("x"), StateStyle("failed").Render("x"))
	require.Equal(t, PendingStyle.Render("x"), StateStyle("checking").Render("x"))
}

func TestMonitorModel_AppliesUpdates(t *testing.T) {
	m := NewMonitor("test", func() Snapshot {
		return Snapshot{Streams: []webrtc.StreamInfo{{StreamID: "s1", CreatedAt: time.Now()}}}
	})
	model := m.model

	for i := range maxEvents + 2 {
		model.apply(monitorUpdate{event: fmt.Sprintf("event %d", i)})
	}
	model.apply(monitorUpdate{state: "Publishing"})
	model.apply(monitorUpdate{stats: &webrtc.PeerStats{StreamID: "s1", ConnectionType: "direct"}})
	model.Update(refreshMsg(time.Now()))

	require.Len(t, model.events, maxEvents)
	require.Contains(t, model.events[maxEvents-1], fmt.Sprintf("event %d", maxEvents+1))

	view := model.View()
	require.Contains(t, view, "Publishing")
	require.Contains(t, view, "s1")
	require.Contains(t, view, "direct")
}
