package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/Warpcast/internal/adaptor"
	"github.com/BioHazard786/Warpcast/internal/config"
	"github.com/BioHazard786/Warpcast/internal/logging"
	"github.com/BioHazard786/Warpcast/internal/media"
	"github.com/BioHazard786/Warpcast/internal/signaling"
	"github.com/BioHazard786/Warpcast/internal/ui"
	"github.com/BioHazard786/Warpcast/internal/webrtc"
)

// SessionOptions are the per-command parts of a session.
type SessionOptions struct {
	Capturer    media.Capturer
	Constraints media.Constraints
	Callbacks   adaptor.Callbacks
}

// ConnectionContext is a connected control channel and the session running
// on it.
type ConnectionContext struct {
	Client  *signaling.Client
	Session *adaptor.Session
	Config  *config.Config

	runErr chan error
}

func NewConnectionContext(ctx context.Context, cfg *config.Config, opts SessionOptions) (*ConnectionContext, error) {
	api, err := webrtc.NewAPI(logging.PionFactory(logLevel))
	if err != nil {
		return nil, adaptor.NewError("create webrtc api", err)
	}

	client := signaling.NewClient(cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return nil, adaptor.NewError("connect to server", err)
	}

	session, err := adaptor.NewSession(adaptor.Options{
		Channel:       client,
		Capturer:      opts.Capturer,
		Constraints:   opts.Constraints,
		Callbacks:     opts.Callbacks,
		API:           api,
		ICE:           cfg.ICEConfiguration(),
		PingInterval:  cfg.PingInterval,
		StatsInterval: cfg.StatsInterval,
		DataChannels:  cfg.DataChannel,
		Logger:        slog.Default(),
	})
	if err != nil {
		client.Close()
		return nil, adaptor.NewError("create session", err)
	}

	c := &ConnectionContext{
		Client:  client,
		Session: session,
		Config:  cfg,
		runErr:  make(chan error, 1),
	}
	go func() { c.runErr <- session.Run(ctx) }()
	return c, nil
}

// Wait blocks until the session ends and returns why. Interrupts are not
// errors.
func (c *ConnectionContext) Wait() error {
	err := <-c.runErr
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *ConnectionContext) Close() {
	if c.Session != nil {
		c.Session.Close()
		<-c.Session.Done()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, adaptor.NewError("load config", err)
	}
	return cfg, nil
}

// connect loads the config and opens a session behind a spinner.
func connect(ctx context.Context, opts SessionOptions) (*ConnectionContext, error) {
	cfg, err := LoadConfig(configOptions())
	if err != nil {
		return nil, err
	}

	sp := ui.RunSpinner(ui.SpinnerConnecting, fmt.Sprintf("Connecting to %s...", cfg.ServerURL))
	conn, err := NewConnectionContext(ctx, cfg, opts)
	if err != nil {
		sp.Error("Connection failed")
		return nil, err
	}
	sp.Success("Connected")
	return conn, nil
}

// monitorCallbacks feeds session callbacks into a monitor. enableStats is
// called with the stream id of every started publish or play.
func monitorCallbacks(m *ui.Monitor, enableStats func(streamID string)) adaptor.Callbacks {
	return adaptor.CallbackFuncs{
		Error: func(kind string, detail any) {
			m.Event("%s %s: %v", ui.IconError, kind, errorDetail(detail))
		},
		Notification: func(definition string, payload any) {
			switch definition {
			case adaptor.NotificationUpdatedStats:
				if ps, ok := payload.(webrtc.PeerStats); ok {
					m.Stats(ps)
				}
				return
			case adaptor.NotificationNewStream:
				if sa, ok := payload.(adaptor.StreamAvailable); ok {
					m.Event("%s remote stream %s on %s", ui.IconStream, sa.Stream.Key, sa.StreamID)
				}
				return
			case adaptor.NotificationDataReceived:
				if dr, ok := payload.(adaptor.DataReceived); ok {
					m.Event("%s %s: %s", ui.IconData, dr.StreamID, dataText(dr))
				}
				return
			case "publish_started", "play_started":
				m.SetState("Live")
				if p, ok := payload.(map[string]any); ok && enableStats != nil {
					if id, _ := p["streamId"].(string); id != "" {
						enableStats(id)
					}
				}
			case "publish_finished", "play_finished":
				m.SetState("Finished")
			}
			m.Event("%s %s", ui.IconInfo, definition)
		},
	}
}

func errorDetail(detail any) any {
	if p, ok := detail.(map[string]any); ok {
		if id, ok := p["streamId"].(string); ok {
			return id
		}
		return ""
	}
	return detail
}

func dataText(dr adaptor.DataReceived) string {
	if dr.Type == "" {
		return dr.Text
	}
	return fmt.Sprintf("[%s] %v", dr.Type, dr.Payload)
}

// lazySnapshot reads the session behind conn once it has been connected.
func lazySnapshot(conn **ConnectionContext) func() ui.Snapshot {
	return func() ui.Snapshot {
		c := *conn
		if c == nil {
			return ui.Snapshot{}
		}
		return ui.Snapshot{Streams: c.Session.Streams(), Remote: c.Session.RemoteStreams()}
	}
}

// runMonitored shows the monitor until the user quits, the session ends
// or ctx is cancelled. onExit runs before the session is closed.
func runMonitored(ctx context.Context, conn *ConnectionContext, m *ui.Monitor, onExit func()) error {
	m.Start()

	var err error
	select {
	case <-m.Quit():
	case <-ctx.Done():
	case <-conn.Session.Done():
		err = conn.Wait()
	}

	if onExit != nil {
		onExit()
	}
	m.Stop()
	conn.Close()
	return err
}
