package cmd

import (
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Warpcast/internal/adaptor"
	"github.com/BioHazard786/Warpcast/internal/media"
	"github.com/BioHazard786/Warpcast/internal/ui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagVideoFile string
	flagAudioFile string
	flagNoVideo   bool
	flagNoAudio   bool
	flagToken     string
)

var publishCmd = &cobra.Command{
	Use:     "publish [stream-id]",
	Aliases: []string{"pub"},
	Short:   "Publish local media as a stream",
	Long: `Publish an IVF video file and an Ogg Opus audio file as a live stream.
Both files are looped until the command exits. Without a stream id a
random one is generated.

Examples:
  warpcast publish cam1 --video sample.ivf --audio sample.ogg
  warpcast publish cam1 --video sample.ivf --no-audio --token secret
  warpcast publish cam1 --server wss://media.example.com/LiveApp/websocket`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		streamID := uuid.NewString()
		if len(args) == 1 {
			streamID = args[0]
		}
		return publishStream(cmd, streamID)
	},
}

func publishStream(cmd *cobra.Command, streamID string) error {
	ctx := cmd.Context()
	constraints := media.Constraints{Video: !flagNoVideo, Audio: !flagNoAudio}
	if !constraints.Video && !constraints.Audio {
		return fmt.Errorf("nothing to publish: both video and audio are disabled")
	}

	if constraints.Video && flagVideoFile == "" {
		ui.PrintWarning("No --video file, the video track will stay idle")
	}
	if constraints.Audio && flagAudioFile == "" {
		ui.PrintWarning("No --audio file, the audio track will stay idle")
	}

	var conn *ConnectionContext
	monitor := ui.NewMonitor(fmt.Sprintf("%s Publishing %s", ui.IconPublish, streamID), lazySnapshot(&conn))
	captureErr := make(chan error, 1)

	cb := monitorCallbacks(monitor, func(id string) { enableStats(conn, id) })
	callbacks := adaptor.CallbackFuncs{
		Error: func(kind string, detail any) {
			if kind == adaptor.KindCaptureFailed {
				if err, ok := detail.(error); ok {
					select {
					case captureErr <- err:
					default:
					}
				}
			}
			cb.OnError(kind, detail)
		},
		Notification: cb.OnNotification,
	}

	conn, err := connect(ctx, SessionOptions{
		Capturer:    &media.FileCapturer{VideoFile: flagVideoFile, AudioFile: flagAudioFile},
		Constraints: constraints,
		Callbacks:   callbacks,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	sp := ui.RunSpinner(ui.SpinnerLoading, "Preparing local media...")
	select {
	case <-conn.Session.LocalStreamReady():
		local := conn.Session.LocalStream()
		sp.Success(fmt.Sprintf("Local media ready: %d video, %d audio", local.VideoTracks(), local.AudioTracks()))
	case err := <-captureErr:
		sp.Error("Local media failed")
		return adaptor.NewStreamError("capture", streamID, err)
	case <-conn.Session.Done():
		sp.Error("Session closed")
		return conn.Wait()
	case <-ctx.Done():
		sp.Stop()
		return nil
	}

	if err := conn.Session.Publish(streamID, flagToken); err != nil {
		return adaptor.NewStreamError("publish", streamID, err)
	}

	return runMonitored(ctx, conn, monitor, func() {
		if err := conn.Session.Stop(streamID); err != nil {
			slog.Debug("stop on exit", "stream", streamID, "error", err)
		}
	})
}

// enableStats starts stats polling for streamID when an interval is
// configured.
func enableStats(conn *ConnectionContext, streamID string) {
	if conn == nil || conn.Config.StatsInterval <= 0 {
		return
	}
	if err := conn.Session.EnableStats(streamID, conn.Config.StatsInterval); err != nil {
		slog.Debug("enable stats", "stream", streamID, "error", err)
	}
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&flagVideoFile, "video", "", "IVF file to loop as video")
	publishCmd.Flags().StringVar(&flagAudioFile, "audio", "", "Ogg Opus file to loop as audio")
	publishCmd.Flags().BoolVar(&flagNoVideo, "no-video", false, "Publish without video")
	publishCmd.Flags().BoolVar(&flagNoAudio, "no-audio", false, "Publish without audio")
	publishCmd.Flags().StringVar(&flagToken, "token", "", "Publish token")
}
