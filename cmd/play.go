package cmd

import (
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Warpcast/internal/adaptor"
	"github.com/BioHazard786/Warpcast/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagPlayToken string
	flagPlayRoom  string
)

var playCmd = &cobra.Command{
	Use:   "play <stream-id>",
	Short: "Play a stream from the media server",
	Long: `Play a stream and report its incoming media until the command exits.

Examples:
  warpcast play cam1
  warpcast play cam1 --room lobby --stats 2s`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return playStream(cmd, args[0])
	},
}

func playStream(cmd *cobra.Command, streamID string) error {
	ctx := cmd.Context()

	var conn *ConnectionContext
	monitor := ui.NewMonitor(fmt.Sprintf("%s Playing %s", ui.IconPlay, streamID), lazySnapshot(&conn))

	conn, err := connect(ctx, SessionOptions{
		Callbacks: monitorCallbacks(monitor, func(id string) { enableStats(conn, id) }),
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Session.Play(streamID, flagPlayToken, flagPlayRoom); err != nil {
		return adaptor.NewStreamError("play", streamID, err)
	}

	return runMonitored(ctx, conn, monitor, func() {
		if err := conn.Session.Stop(streamID); err != nil {
			slog.Debug("stop on exit", "stream", streamID, "error", err)
		}
	})
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&flagPlayToken, "token", "", "Play token")
	playCmd.Flags().StringVar(&flagPlayRoom, "room", "", "Room the stream belongs to")
}
