package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BioHazard786/Warpcast/internal/utils"
	pion "github.com/pion/webrtc/v4"
)

// Default configuration values
const (
	DefaultServerURL     = "ws://localhost:5080/WebRTCAppEE/websocket"
	DefaultStatsInterval = 0 // disabled
	DefaultPingInterval  = 3 * time.Second
	DefaultTURNUser      = ""
	DefaultTURNPass      = ""
)

// Config holds application configuration
type Config struct {
	// ServerURL is the media server WebSocket endpoint
	ServerURL string

	// ICE servers for WebRTC. Both empty means an empty ICE server list.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// StatsInterval enables per-stream stats polling when positive
	StatsInterval time.Duration

	// PingInterval is the JSON ping period on the control channel
	PingInterval time.Duration

	// DataChannel opens a data channel on every publish connection
	DataChannel bool

	Debug bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	ServerURL     string
	STUNServer    string
	TURNServer    string
	TURNUser      string
	TURNPass      string
	ForceRelay    bool
	StatsInterval time.Duration
	PingInterval  time.Duration
	DataChannel   bool
	Debug         bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	serverURL := firstNonEmpty(opts.ServerURL, os.Getenv("SERVER_URL"), DefaultServerURL)
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be ws or wss", serverURL)
	}

	statsInterval, err := durationOption(opts.StatsInterval, "STATS_INTERVAL", DefaultStatsInterval)
	if err != nil {
		return nil, err
	}
	pingInterval, err := durationOption(opts.PingInterval, "PING_INTERVAL", DefaultPingInterval)
	if err != nil {
		return nil, err
	}

	dataChannel := opts.DataChannel
	if !dataChannel {
		if v, ok := os.LookupEnv("DATA_CHANNEL"); ok {
			dataChannel, err = strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid DATA_CHANNEL %q: %w", v, err)
			}
		}
	}

	cfg := &Config{
		ServerURL:     u.String(),
		STUNServer:    firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER")),
		TURNServer:    firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:      firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser),
		TURNPass:      firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass),
		ForceRelay:    opts.ForceRelay,
		StatsInterval: statsInterval,
		PingInterval:  pingInterval,
		DataChannel:   dataChannel,
		Debug:         opts.Debug,
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// GetSTUNServers returns STUN server URLs, nil when none is configured
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// ICEConfiguration builds the peer connection configuration shared by every
// stream. Without STUN or TURN servers the ICE server list is empty.
func (c *Config) ICEConfiguration() pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := c.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := c.GetTURNServers()
	if turnServers != nil {
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (c.ForceRelay || utils.ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func durationOption(flag time.Duration, env string, def time.Duration) (time.Duration, error) {
	if flag > 0 {
		return flag, nil
	}
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", env, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", env, v)
	}
	return d, nil
}
