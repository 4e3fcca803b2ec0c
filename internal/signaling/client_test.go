package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// echoServer replies to every ping command with pong and records the rest.
func echoServer(t *testing.T, received chan<- map[string]any) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["command"] == CommandPing {
				_ = conn.WriteJSON(map[string]any{"command": CommandPong})
				continue
			}
			received <- msg
		}
	}))
}

func TestClient_SendAndReceive(t *testing.T) {
	received := make(chan map[string]any, 4)
	ts := echoServer(t, received)
	defer ts.Close()

	c := NewClient("ws" + strings.TrimPrefix(ts.URL, "http"))
	require.Equal(t, StateConnecting, c.State())
	require.NoError(t, c.Connect(context.Background()))
	require.Equal(t, StateOpen, c.State())

	require.NoError(t, c.SendMessage(NewPing()))
	select {
	case frame := <-c.Incoming():
		var msg map[string]any
		require.NoError(t, json.Unmarshal(frame, &msg))
		require.Equal(t, CommandPong, msg["command"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pong")
	}

	require.NoError(t, c.SendMessage(NewPlay("s1", "", "")))
	select {
	case msg := <-received:
		require.Equal(t, "play", msg["command"])
		require.Equal(t, "s1", msg["streamId"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for play")
	}

	c.Close()
	require.Equal(t, StateClosed, c.State())
	require.ErrorIs(t, c.SendMessage(NewPing()), ErrClientClosed)
	c.Close()
}

func TestClient_CloseFlushesQueuedMessages(t *testing.T) {
	const n = 10
	for round := 0; round < 5; round++ {
		received := make(chan map[string]any, n)
		ts := echoServer(t, received)

		c := NewClient("ws" + strings.TrimPrefix(ts.URL, "http"))
		require.NoError(t, c.Connect(context.Background()))
		for i := 0; i < n; i++ {
			require.NoError(t, c.SendMessage(NewStreamCommand(CommandStop, "s1")))
		}
		c.Close()

		for i := 0; i < n; i++ {
			select {
			case msg := <-received:
				require.Equal(t, CommandStop, msg["command"])
			case <-time.After(5 * time.Second):
				t.Fatalf("round %d: server got %d of %d messages", round, i, n)
			}
		}
		ts.Close()
	}
}

func TestClient_IncomingClosesWhenServerGoesAway(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		conn.Close()
	}))
	defer ts.Close()

	c := NewClient("ws" + strings.TrimPrefix(ts.URL, "http"))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	select {
	case _, ok := <-c.Incoming():
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("incoming channel not closed")
	}
	require.Equal(t, StateClosed, c.State())
	require.NoError(t, c.Err())
}

func TestClient_ConnectFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/websocket")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Error(t, c.Connect(ctx))
	require.Equal(t, StateClosed, c.State())
}
