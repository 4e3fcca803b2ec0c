package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BioHazard786/Warpcast/internal/config"
	"github.com/BioHazard786/Warpcast/internal/logging"
	"github.com/BioHazard786/Warpcast/internal/ui"
	"github.com/BioHazard786/Warpcast/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagServer        string
	flagSTUN          string
	flagTURN          string
	flagTURNUser      string
	flagTURNPass      string
	flagRelay         bool
	flagStatsInterval time.Duration
	flagPingInterval  time.Duration
	flagDataChannel   bool
	flagDebug         bool

	logLevel slog.Level
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "warpcast",
	Short:   "Publish and play WebRTC streams through a media server",
	Long:    `Warpcast is a command-line WebRTC client for media servers that speak the JSON websocket signaling protocol. It publishes local media, plays remote streams, manages conference rooms and can expose a running session over a local HTTP API.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel = logging.Init(flagDebug)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func configOptions() config.Options {
	return config.Options{
		ServerURL:     flagServer,
		STUNServer:    flagSTUN,
		TURNServer:    flagTURN,
		TURNUser:      flagTURNUser,
		TURNPass:      flagTURNPass,
		ForceRelay:    flagRelay,
		StatsInterval: flagStatsInterval,
		PingInterval:  flagPingInterval,
		DataChannel:   flagDataChannel,
		Debug:         flagDebug,
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagServer, "server", "S", "", "Media server websocket URL")
	flags.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	flags.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	flags.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	flags.StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	flags.BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	flags.DurationVar(&flagStatsInterval, "stats", 0, "Poll connection stats at this interval")
	flags.DurationVar(&flagPingInterval, "ping", 0, "Control channel ping interval")
	flags.BoolVar(&flagDataChannel, "data-channel", false, "Open a data channel on publish connections")
	flags.BoolVarP(&flagDebug, "debug", "D", false, "Enable debug logging")
}
