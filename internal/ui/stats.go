package ui

import (
	"fmt"
	"sort"

	"github.com/BioHazard786/Warpcast/internal/utils"
	"github.com/BioHazard786/Warpcast/internal/webrtc"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// StatsView renders one row per stream from the latest samples.
func StatsView(samples map[string]webrtc.PeerStats) string {
	if len(samples) == 0 {
		return MutedStyle.Render("No statistics yet")
	}

	ids := make([]string, 0, len(samples))
	for id := range samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := table.NewWriter()
	t.SetTitle(IconStats + " Connection statistics")
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Colors = text.Colors{text.FgCyan, text.Bold}
	t.AppendHeader(table.Row{"Stream", "Path", "Sent", "Received", "Send rate", "Recv rate", "Lost", "Jitter", "RTT"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	for _, id := range ids {
		ps := samples[id]
		t.AppendRow(table.Row{
			utils.TruncateString(id, 24),
			ps.ConnectionType,
			utils.FormatSize(ps.BytesSent),
			utils.FormatSize(ps.BytesReceived),
			utils.FormatBitrate(ps.SendBitrate),
			utils.FormatBitrate(ps.ReceiveBitrate),
			ps.PacketsLost,
			fmt.Sprintf("%.1f ms", ps.Jitter*1000),
			ps.RoundTripTime.Round(100_000).String(),
		})
	}

	return t.Render()
}
