package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/Warpcast/internal/media"
	"github.com/BioHazard786/Warpcast/internal/signaling"
	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

type fakeChannel struct {
	in        chan []byte
	out       chan any
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		in:     make(chan []byte, 16),
		out:    make(chan any, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeChannel) SendMessage(msg any) error {
	select {
	case <-f.closed:
		return signaling.ErrClientClosed
	default:
	}
	f.out <- msg
	return nil
}

func (f *fakeChannel) Incoming() <-chan []byte { return f.in }

func (f *fakeChannel) State() signaling.State {
	select {
	case <-f.closed:
		return signaling.StateClosed
	default:
		return signaling.StateOpen
	}
}

func (f *fakeChannel) Err() error { return nil }

func (f *fakeChannel) Close() {
	f.closeOnce.Do(func() { close(f.closed) })
}

func (f *fakeChannel) deliver(t *testing.T, msg any) {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	f.in <- b
}

// next returns the next outbound message of type T, skipping others.
func next[T any](t *testing.T, f *fakeChannel) T {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case msg := <-f.out:
			if m, ok := msg.(T); ok {
				return m
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// drainOut returns every message sent so far.
func (f *fakeChannel) drainOut() []any {
	var out []any
	for {
		select {
		case msg := <-f.out:
			out = append(out, msg)
		default:
			return out
		}
	}
}

type sinkEvent struct {
	name    string
	payload any
}

type recordingSink struct {
	errors        chan sinkEvent
	notifications chan sinkEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		errors:        make(chan sinkEvent, 32),
		notifications: make(chan sinkEvent, 32),
	}
}

func (r *recordingSink) OnError(kind string, detail any) {
	r.errors <- sinkEvent{kind, detail}
}

func (r *recordingSink) OnNotification(definition string, payload any) {
	r.notifications <- sinkEvent{definition, payload}
}

func waitEvent(t *testing.T, ch <-chan sinkEvent, name string) sinkEvent {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev := <-ch:
			if ev.name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
			return sinkEvent{}
		}
	}
}

func testCapturer(t *testing.T) media.Capturer {
	t.Helper()
	return media.CapturerFunc(func(ctx context.Context, c media.Constraints) (*media.LocalStream, error) {
		video, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8}, "video", "local")
		if err != nil {
			return nil, err
		}
		audio, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus}, "audio", "local")
		if err != nil {
			return nil, err
		}
		return media.NewLocalStream("local", video, audio), nil
	})
}

func startSession(t *testing.T, opts Options) (*Session, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	opts.Channel = ch
	s, err := NewSession(opts)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()
	t.Cleanup(func() {
		s.Close()
		select {
		case <-errc:
		case <-time.After(waitTimeout):
			t.Error("session did not stop")
		}
	})
	return s, ch
}

func waitLocal(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.LocalStreamReady():
	case <-time.After(waitTimeout):
		t.Fatal("local media not ready")
	}
}

func TestSession_PingOnOpen(t *testing.T) {
	s, ch := startSession(t, Options{})
	ping := next[*signaling.PingMessage](t, ch)
	require.Equal(t, signaling.CommandPing, ping.Command)
	require.Equal(t, signaling.StateOpen, s.State())
}

func TestSession_PublishWaitsForLocalMedia(t *testing.T) {
	release := make(chan struct{})
	capturer := testCapturer(t)
	s, ch := startSession(t, Options{
		Capturer: media.CapturerFunc(func(ctx context.Context, c media.Constraints) (*media.LocalStream, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return capturer.Acquire(ctx, c)
		}),
	})

	require.NoError(t, s.Publish("s1", "tok"))
	for _, msg := range ch.drainOut() {
		_, isPublish := msg.(*signaling.PublishMessage)
		require.False(t, isPublish, "publish sent before local media")
	}
	require.Nil(t, s.LocalStream())

	close(release)
	waitLocal(t, s)

	require.NoError(t, s.Publish("s1", "tok"))
	pub := next[*signaling.PublishMessage](t, ch)
	require.Equal(t, &signaling.PublishMessage{
		Command:  signaling.CommandPublish,
		StreamID: "s1",
		Token:    "tok",
		Video:    true,
		Audio:    true,
	}, pub)
	require.NotNil(t, s.LocalStream())
}

func TestSession_CaptureFailureIsReported(t *testing.T) {
	sink := newRecordingSink()
	s, ch := startSession(t, Options{
		Callbacks: sink,
		Capturer: media.CapturerFunc(func(context.Context, media.Constraints) (*media.LocalStream, error) {
			return nil, errors.New("no camera")
		}),
	})

	waitEvent(t, sink.errors, KindCaptureFailed)
	require.NoError(t, s.Publish("s1", ""))
	require.Equal(t, signaling.StateOpen, s.State())
	next[*signaling.PingMessage](t, ch)
}

func TestSession_StartCreatesOffer(t *testing.T) {
	s, ch := startSession(t, Options{Capturer: testCapturer(t)})
	waitLocal(t, s)

	ch.deliver(t, map[string]any{"command": "start", "streamId": "s1"})
	conf := next[*signaling.ConfigurationMessage](t, ch)
	require.Equal(t, signaling.CommandTakeConfiguration, conf.Command)
	require.Equal(t, "s1", conf.StreamID)
	require.Equal(t, "offer", conf.Type)
	require.NotEmpty(t, conf.SDP)

	streams := s.Streams()
	require.Len(t, streams, 1)
	require.False(t, streams[0].Play)
}

func TestSession_BufferedCandidateThenAnswer(t *testing.T) {
	s, ch := startSession(t, Options{Capturer: testCapturer(t)})
	waitLocal(t, s)

	ch.deliver(t, map[string]any{"command": "start", "streamId": "s1"})
	offer := next[*signaling.ConfigurationMessage](t, ch)

	remote, err := pion.NewPeerConnection(pion.Configuration{})
	require.NoError(t, err)
	defer remote.Close()
	require.NoError(t, remote.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer.SDP}))
	answer, err := remote.CreateAnswer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(answer))

	ch.deliver(t, map[string]any{
		"command":   "takeCandidate",
		"streamId":  "s1",
		"label":     0,
		"id":        "0",
		"candidate": "candidate:1 1 udp 2130706431 192.0.2.10 50000 typ host",
	})
	require.False(t, s.Streams()[0].RemoteDescriptionSet)

	ch.deliver(t, map[string]any{"command": "takeConfiguration", "streamId": "s1", "type": "answer", "sdp": answer.SDP})
	require.Eventually(t, func() bool {
		streams := s.Streams()
		return len(streams) == 1 && streams[0].RemoteDescriptionSet
	}, waitTimeout, 10*time.Millisecond)

	for _, msg := range ch.drainOut() {
		_, isConf := msg.(*signaling.ConfigurationMessage)
		require.False(t, isConf, "answer must not be answered")
	}
}

func TestSession_RemoteOfferIsAnsweredBeforeCandidates(t *testing.T) {
	s, ch := startSession(t, Options{})
	require.NoError(t, s.Play("p1", "", ""))

	remote, err := pion.NewPeerConnection(pion.Configuration{})
	require.NoError(t, err)
	defer remote.Close()
	_, err = remote.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{Direction: pion.RTPTransceiverDirectionSendonly})
	require.NoError(t, err)
	offer, err := remote.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(offer))

	ch.deliver(t, map[string]any{"command": "takeConfiguration", "streamId": "p1", "type": "offer", "sdp": offer.SDP})

	seenAnswer := false
	deadline := time.After(waitTimeout)
	for !seenAnswer {
		select {
		case msg := <-ch.out:
			switch m := msg.(type) {
			case *signaling.ConfigurationMessage:
				require.Equal(t, "answer", m.Type)
				require.Equal(t, "p1", m.StreamID)
				seenAnswer = true
			case *signaling.CandidateMessage:
				t.Fatal("candidate sent before answer")
			}
		case <-deadline:
			t.Fatal("no answer")
		}
	}

	streams := s.Streams()
	require.Len(t, streams, 1)
	require.True(t, streams[0].Play)
	require.True(t, streams[0].RemoteDescriptionSet)
}

func TestSession_StopThenCandidateRecreates(t *testing.T) {
	s, ch := startSession(t, Options{})

	candidate := map[string]any{
		"command":   "takeCandidate",
		"streamId":  "s1",
		"label":     0,
		"id":        "0",
		"candidate": "candidate:1 1 udp 2130706431 192.0.2.10 50000 typ host",
	}
	ch.deliver(t, candidate)
	require.Eventually(t, func() bool { return len(s.Streams()) == 1 }, waitTimeout, 10*time.Millisecond)

	require.NoError(t, s.EnableStats("s1", time.Hour))
	require.True(t, s.Streams()[0].Stats)

	ch.deliver(t, map[string]any{"command": "stop", "streamId": "s1"})
	require.Eventually(t, func() bool { return len(s.Streams()) == 0 }, waitTimeout, 10*time.Millisecond)

	ch.deliver(t, map[string]any{"command": "stop", "streamId": "s1"})
	ch.deliver(t, candidate)
	require.Eventually(t, func() bool {
		streams := s.Streams()
		return len(streams) == 1 && !streams[0].Stats
	}, waitTimeout, 10*time.Millisecond)
}

func TestSession_ForwardsServerEvents(t *testing.T) {
	sink := newRecordingSink()
	_, ch := startSession(t, Options{Callbacks: sink})

	ch.deliver(t, map[string]any{"command": "bogus", "streamId": "x"})
	ch.deliver(t, map[string]any{"command": "streamInformation", "streamId": "s1", "streamWidth": 640})
	ch.deliver(t, map[string]any{"command": "pong"})
	ch.deliver(t, map[string]any{"command": "error", "definition": "no_stream_exist", "streamId": "s9"})
	ch.deliver(t, map[string]any{"command": "notification", "definition": "publish_started", "streamId": "s1"})

	errEv := waitEvent(t, sink.errors, "no_stream_exist")
	payload, ok := errEv.payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "s9", payload["streamId"])

	note := waitEvent(t, sink.notifications, "publish_started")
	require.Equal(t, "s1", note.payload.(map[string]any)["streamId"])
}

func TestSession_InitFailureIsReported(t *testing.T) {
	sink := newRecordingSink()
	s, ch := startSession(t, Options{
		Callbacks: sink,
		NewPeerConnection: func(pion.Configuration) (*pion.PeerConnection, error) {
			return nil, errors.New("no ports")
		},
	})

	ch.deliver(t, map[string]any{"command": "start", "streamId": "s1"})
	waitEvent(t, sink.errors, KindInitPeerConnection)

	require.Error(t, s.InitPeerConnection("s2"))
	waitEvent(t, sink.errors, KindInitPeerConnection)
	require.Empty(t, s.Streams())
	require.Equal(t, signaling.StateOpen, s.State())
}

func TestSession_BadRemoteDescriptionIsReported(t *testing.T) {
	sink := newRecordingSink()
	s, ch := startSession(t, Options{Callbacks: sink})

	ch.deliver(t, map[string]any{"command": "takeConfiguration", "streamId": "s1", "type": "offer", "sdp": "garbage"})
	waitEvent(t, sink.errors, KindNotSetRemoteDescription)

	streams := s.Streams()
	require.Len(t, streams, 1)
	require.False(t, streams[0].RemoteDescriptionSet)
}

func TestSession_RoomCommands(t *testing.T) {
	s, ch := startSession(t, Options{})

	require.NoError(t, s.JoinRoom("room1", "s1"))
	join := next[*signaling.JoinRoomMessage](t, ch)
	require.Equal(t, &signaling.JoinRoomMessage{Command: signaling.CommandJoinRoom, Room: "room1", StreamID: "s1"}, join)
	require.Equal(t, "room1", s.RoomName())

	require.NoError(t, s.GetRoomInfo("room1", ""))
	info := next[*signaling.GetRoomInfoMessage](t, ch)
	require.Equal(t, "room1", info.Room)

	require.NoError(t, s.LeaveFromRoom("room2"))
	leave := next[*signaling.LeaveFromRoomMessage](t, ch)
	require.Equal(t, "room2", leave.Room)
	require.Equal(t, "room2", s.RoomName())

	require.NoError(t, s.Stop("s1"))
	stop := next[*signaling.StreamMessage](t, ch)
	require.Equal(t, signaling.CommandStop, stop.Command)

	require.NoError(t, s.Join("s1"))
	require.Equal(t, signaling.CommandJoin, next[*signaling.StreamMessage](t, ch).Command)
	require.NoError(t, s.Leave("s1"))
	require.Equal(t, signaling.CommandLeave, next[*signaling.StreamMessage](t, ch).Command)
	require.NoError(t, s.GetStreamInfo("s1"))
	require.Equal(t, signaling.CommandGetStreamInfo, next[*signaling.StreamMessage](t, ch).Command)

	require.NoError(t, s.Play("p1", "tok", "room1"))
	play := next[*signaling.PlayMessage](t, ch)
	require.Equal(t, &signaling.PlayMessage{Command: signaling.CommandPlay, StreamID: "p1", Token: "tok", Room: "room1"}, play)
}

func TestSession_CloseEndsRun(t *testing.T) {
	ch := newFakeChannel()
	s, err := NewSession(Options{Channel: ch, Capturer: testCapturer(t)})
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()
	waitLocal(t, s)
	require.NoError(t, s.InitPeerConnection("s1"))

	s.Close()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return")
	}

	<-s.Done()
	require.Equal(t, signaling.StateClosed, s.State())
	require.Equal(t, signaling.StateClosed, ch.State())
	require.ErrorIs(t, s.Publish("s1", ""), ErrSessionClosed)
	require.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRunning)
}

func TestSession_CommandRacingCloseReportsWhetherItWasSent(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, ch := startSession(t, Options{})

		go s.Close()
		err := s.Join("s1")
		<-s.Done()

		sent := false
		for _, msg := range ch.drainOut() {
			if m, ok := msg.(*signaling.StreamMessage); ok && m.Command == signaling.CommandJoin {
				sent = true
			}
		}
		if err == nil {
			require.True(t, sent, "round %d: join reported sent but never reached the channel", i)
		} else {
			require.False(t, sent, "round %d: join reached the channel but was reported closed", i)
		}
	}
}

func TestSession_ChannelCloseEndsRun(t *testing.T) {
	ch := newFakeChannel()
	s, err := NewSession(Options{Channel: ch})
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()
	close(ch.in)

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return")
	}
}

func TestNewSession_RequiresChannel(t *testing.T) {
	_, err := NewSession(Options{})
	require.ErrorIs(t, err, ErrNoChannel)
}
