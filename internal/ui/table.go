package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BioHazard786/Warpcast/internal/utils"
	"github.com/BioHazard786/Warpcast/internal/webrtc"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func styledTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// StreamsView renders the peer connections of a session.
func StreamsView(streams []webrtc.StreamInfo) string {
	if len(streams) == 0 {
		return MutedStyle.Render("No peer connections")
	}

	rows := make([][]string, 0, len(streams))
	for _, s := range streams {
		mode := IconPublish + " publish"
		if s.Play {
			mode = IconPlay + " play"
		}
		remote := "pending"
		if s.RemoteDescriptionSet {
			remote = "set"
		}
		dc := s.DataChannel
		if dc == "" {
			dc = "-"
		}
		rows = append(rows, []string{
			utils.TruncateString(s.StreamID, 32),
			mode,
			StateStyle(s.SignalingState).Render(s.SignalingState),
			StateStyle(s.ConnectionState).Render(s.ConnectionState),
			remote,
			dc,
			utils.FormatTimeDuration(time.Since(s.CreatedAt)),
		})
	}

	return styledTable([]string{"Stream", "Mode", "Signaling", "Connection", "Remote SDP", "Data", "Age"}, rows).Render()
}

// RemoteStreamsView renders the remote media streams keyed by stream id.
func RemoteStreamsView(remote map[string]*webrtc.RemoteStream) string {
	if len(remote) == 0 {
		return MutedStyle.Render("No remote streams")
	}

	keys := make([]string, 0, len(remote))
	for k := range remote {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rs := remote[k]
		rows = append(rows, []string{
			utils.TruncateString(k, 32),
			strings.Join(rs.Owners(), ", "),
			fmt.Sprintf("%d", len(rs.Tracks())),
			fmt.Sprintf("%d", rs.Packets()),
			utils.FormatSize(rs.Bytes()),
		})
	}

	return styledTable([]string{"Media stream", "Via", "Tracks", "Packets", "Received"}, rows).Render()
}

// RoomInfo is the server's answer to getRoomInfo.
type RoomInfo struct {
	Room    string
	Streams []string
}

// RoomInfoFromPayload reads a roomInformation notification payload.
func RoomInfoFromPayload(payload map[string]any) RoomInfo {
	info := RoomInfo{}
	info.Room, _ = payload["room"].(string)
	if streams, ok := payload["streams"].([]any); ok {
		for _, s := range streams {
			if id, ok := s.(string); ok {
				info.Streams = append(info.Streams, id)
			}
		}
	}
	return info
}

func (r RoomInfo) View() string {
	content := fmt.Sprintf("%s Room %s\n", IconRoom, BoldStyle.Foreground(Primary).Render(r.Room))
	if len(r.Streams) == 0 {
		content += "\n" + MutedStyle.Render("No streams in room")
	}
	for _, id := range r.Streams {
		content += fmt.Sprintf("\n  %s %s", IconStream, id)
	}
	return SuccessBoxStyle.Render(content)
}
