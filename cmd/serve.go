package cmd

import (
	"fmt"

	"github.com/BioHazard786/Warpcast/internal/api"
	"github.com/BioHazard786/Warpcast/internal/media"
	"github.com/BioHazard786/Warpcast/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagListen  string
	flagOrigins []string
	flagEvents  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a session controlled over a local HTTP API",
	Long: `Open a session and expose its stream commands over HTTP.

The --video and --audio files become the local media used by publish
requests; without them the session can only play.

Examples:
  warpcast serve --listen 127.0.0.1:8089
  warpcast serve --video sample.ivf --audio sample.ogg
  curl -X POST localhost:8089/v1/streams/cam1/play`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd)
	},
}

func serve(cmd *cobra.Command) error {
	ctx := cmd.Context()

	events := api.NewEventLog(flagEvents)
	opts := SessionOptions{Callbacks: events}
	if flagVideoFile != "" || flagAudioFile != "" {
		opts.Capturer = &media.FileCapturer{VideoFile: flagVideoFile, AudioFile: flagAudioFile}
		opts.Constraints = media.Constraints{Video: flagVideoFile != "", Audio: flagAudioFile != ""}
	}

	conn, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer conn.Close()

	server := api.NewServer(conn.Session, events, flagOrigins)
	fmt.Println(ui.InfoBoxStyle.Render(fmt.Sprintf("%s Control API on http://%s/v1", ui.IconWeb, flagListen)))
	if opts.Capturer == nil {
		ui.PrintInfo("No media files given, publish requests will be rejected")
	} else {
		ui.PrintInfof("Publishing loops %s", mediaFiles())
	}

	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe(ctx, flagListen) }()

	select {
	case err := <-errc:
		return err
	case <-conn.Session.Done():
		return conn.Wait()
	}
}

func mediaFiles() string {
	switch {
	case flagVideoFile != "" && flagAudioFile != "":
		return flagVideoFile + " and " + flagAudioFile
	case flagVideoFile != "":
		return flagVideoFile
	default:
		return flagAudioFile
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "127.0.0.1:8089", "Address for the control API")
	serveCmd.Flags().StringSliceVar(&flagOrigins, "allow-origin", nil, "Allowed CORS origins (default any)")
	serveCmd.Flags().IntVar(&flagEvents, "events", 100, "Number of session events kept for /v1/events")
	serveCmd.Flags().StringVar(&flagVideoFile, "video", "", "IVF file to loop as video")
	serveCmd.Flags().StringVar(&flagAudioFile, "audio", "", "Ogg Opus file to loop as audio")
}
