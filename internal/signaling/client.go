package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpcast/internal/dns"
	"github.com/BioHazard786/Warpcast/internal/version"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
)

// State is the lifecycle of the control channel.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var ErrClientClosed = errors.New("signaling client closed")

// Client manages the WebSocket connection to the media server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan []byte
	outgoing  chan any
	done      chan struct{}
	flushed   chan struct{}
	state     atomic.Int32
	closeOnce sync.Once

	errMu   sync.Mutex
	lastErr error
}

// NewClient creates a new signaling client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan []byte, 16),
		outgoing:  make(chan any, 64),
		done:      make(chan struct{}),
	}
}

// Connect establishes WebSocket connection to the server.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = dns.DialContext

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		c.state.Store(int32(StateClosed))
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.state.Store(int32(StateOpen))
	slog.Debug("control channel open", "url", u.Redacted())

	c.flushed = make(chan struct{})
	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads frames from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.state.Store(int32(StateClosed))
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setErr(err)
				slog.Warn("control channel error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		select {
		case c.incoming <- data:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.flushed)
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.setErr(err)
				slog.Warn("control channel write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.setErr(err)
				return
			}

		case <-c.done:
			if !c.flush() {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued. It reports false when a write
// fails.
func (c *Client) flush() bool {
	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.setErr(err)
				slog.Warn("control channel flush failed", "error", err)
				return false
			}
		default:
			return true
		}
	}
}

// SendMessage queues a JSON message for the server.
func (c *Client) SendMessage(msg any) error {
	if c.State() != StateOpen {
		return ErrClientClosed
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// Incoming returns the channel of received text frames. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan []byte {
	return c.incoming
}

// State reports the channel state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.errMu.Unlock()
}

// Close closes the WebSocket connection and cleans up resources. Messages
// already accepted by SendMessage are written before the close frame, and
// Close returns once they have been.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
	if c.flushed != nil {
		<-c.flushed
	}
}
