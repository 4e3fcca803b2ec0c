// Package adaptor runs the signaling session: it owns the control channel,
// the per-stream peer connections and the local media, and turns control
// messages into negotiation steps.
package adaptor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BioHazard786/Warpcast/internal/media"
	"github.com/BioHazard786/Warpcast/internal/signaling"
	"github.com/BioHazard786/Warpcast/internal/webrtc"
	pion "github.com/pion/webrtc/v4"
)

// Channel is the control channel a session drives. *signaling.Client
// implements it.
type Channel interface {
	SendMessage(msg any) error
	Incoming() <-chan []byte
	State() signaling.State
	Err() error
	Close()
}

type Options struct {
	Channel     Channel
	Capturer    media.Capturer
	Constraints media.Constraints
	Callbacks   Callbacks

	// API and ICE configure new peer connections. A nil API uses pion's
	// defaults; the zero ICE configuration has no servers.
	API *pion.API
	ICE pion.Configuration

	// PingInterval repeats the ping sent on open. Zero sends it once.
	PingInterval time.Duration
	// StatsInterval is used by EnableStats when no interval is given.
	StatsInterval time.Duration
	DataChannels  bool

	NewPeerConnection func(pion.Configuration) (*pion.PeerConnection, error)
	Logger            *slog.Logger
}

const defaultStatsInterval = 5 * time.Second

// Session is one signaling session over one control channel. All
// connection state is owned by the goroutine running Run; every exported
// method hands its work to that goroutine.
type Session struct {
	ch            Channel
	capturer      media.Capturer
	constraints   media.Constraints
	callbacks     Callbacks
	pingInterval  time.Duration
	statsInterval time.Duration
	log           *slog.Logger

	registry   *webrtc.Registry
	negotiator *webrtc.Negotiator

	tasks *taskQueue
	notes *taskQueue

	state      atomic.Int32
	local      *media.LocalStream
	localReady chan struct{}
	room       string

	running   atomic.Bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(opts Options) (*Session, error) {
	if opts.Channel == nil {
		return nil, ErrNoChannel
	}

	s := &Session{
		ch:            opts.Channel,
		capturer:      opts.Capturer,
		constraints:   opts.Constraints,
		callbacks:     opts.Callbacks,
		pingInterval:  opts.PingInterval,
		statsInterval: opts.StatsInterval,
		log:           opts.Logger,
		tasks:         newTaskQueue(),
		notes:         newTaskQueue(),
		localReady:    make(chan struct{}),
		closing:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	if s.callbacks == nil {
		s.callbacks = CallbackFuncs{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.statsInterval <= 0 {
		s.statsInterval = defaultStatsInterval
	}
	s.state.Store(int32(signaling.StateConnecting))

	s.registry = webrtc.NewRegistry(webrtc.RegistryConfig{
		API:               opts.API,
		ICE:               opts.ICE,
		DataChannels:      opts.DataChannels,
		NewPeerConnection: opts.NewPeerConnection,
		Hooks: webrtc.Hooks{
			OnCandidate:   s.onCandidate,
			OnTrack:       s.onTrack,
			OnStreamAdded: s.onStreamAdded,
			OnDataChannel: s.onDataChannel,
			OnDataMessage: s.onDataMessage,
		},
	})
	s.negotiator = webrtc.NewNegotiator(s.registry, webrtc.NewCandidateBuffer(), s)

	return s, nil
}

// Run drives the session until the control channel closes, ctx ends or
// Close is called. Peer connections and local media are released on
// return.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifierDone := make(chan struct{})
	go s.runNotifier(notifierDone)
	defer func() {
		s.notes.close()
		<-notifierDone
		close(s.done)
	}()

	s.state.Store(int32(signaling.StateOpen))
	s.onOpen(ctx)

	var ping <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	incoming := s.ch.Incoming()
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()

		case <-s.closing:
			s.teardown()
			return nil

		case data, ok := <-incoming:
			if !ok {
				s.teardown()
				if err := s.ch.Err(); err != nil {
					return NewError("control channel", err)
				}
				return nil
			}
			if err := signaling.Dispatch(data, s); err != nil {
				s.log.Warn("dropping control message", "error", err)
			}

		case <-s.tasks.ready():
			runAll(s.tasks.drain())

		case <-ping:
			s.send(signaling.NewPing())
		}
	}
}

// onOpen starts local media capture and announces the session.
func (s *Session) onOpen(ctx context.Context) {
	if s.capturer != nil {
		go s.capture(ctx)
	}
	s.send(signaling.NewPing())
}

func (s *Session) capture(ctx context.Context) {
	stream, err := s.capturer.Acquire(ctx, s.constraints)
	if err != nil {
		s.log.Warn("local media capture failed", "error", err)
		s.emitError(KindCaptureFailed, NewError("capture", err))
		return
	}

	posted := s.tasks.post(func() {
		s.local = stream
		s.registry.SetLocalStream(stream)
		close(s.localReady)
		s.log.Debug("local media ready", "stream", stream.ID(),
			"video", stream.VideoTracks(), "audio", stream.AudioTracks())
	})
	if !posted {
		stream.Stop()
	}
}

func (s *Session) teardown() {
	s.state.Store(int32(signaling.StateClosed))
	s.tasks.close()
	runAll(s.tasks.drain())

	s.negotiator.CloseAll()
	if s.local != nil {
		s.local.Stop()
	}
	s.ch.Close()
	s.log.Debug("session closed")
}

func (s *Session) runNotifier(done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-s.notes.ready():
			runAll(s.notes.drain())
		case <-s.notes.closedCh():
			runAll(s.notes.drain())
			return
		}
	}
}

func (s *Session) emitError(kind string, detail any) {
	s.notes.post(func() { s.callbacks.OnError(kind, detail) })
}

func (s *Session) emitNotification(definition string, payload any) {
	s.notes.post(func() { s.callbacks.OnNotification(definition, payload) })
}

func (s *Session) send(msg any) {
	if err := s.ch.SendMessage(msg); err != nil {
		s.log.Warn("send control message", "error", err)
	}
}

// SendDescription emits a local description as takeConfiguration.
func (s *Session) SendDescription(streamID string, desc pion.SessionDescription) error {
	return s.ch.SendMessage(signaling.NewConfiguration(streamID, desc))
}

// report routes a negotiation failure to the error sink by kind. Other
// failures are logged and dropped.
func (s *Session) report(streamID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, webrtc.ErrInitPeerConnection):
		s.log.Error("peer connection init failed", "stream", streamID, "error", err)
		s.emitError(KindInitPeerConnection, err)
	case webrtc.IsRemoteDescriptionError(err):
		s.log.Warn("remote description rejected", "stream", streamID, "error", err)
		s.emitError(KindNotSetRemoteDescription, err)
	default:
		s.log.Debug("negotiation failed", "stream", streamID, "error", err)
	}
}

// Hooks. These run on pion goroutines and only post work.

func (s *Session) onCandidate(streamID string, c pion.ICECandidateInit) {
	s.tasks.post(func() {
		s.send(signaling.NewCandidate(streamID, c))
	})
}

func (s *Session) onTrack(streamID string, track *pion.TrackRemote, receiver *pion.RTPReceiver) {
	s.tasks.post(func() {
		if _, err := s.registry.AddRemoteTrack(streamID, track, receiver); err != nil {
			s.log.Debug("dropping track of closed stream", "stream", streamID, "track", track.ID())
		}
	})
}

func (s *Session) onStreamAdded(streamID string, rs *webrtc.RemoteStream) {
	s.log.Info("remote stream available", "stream", streamID, "key", rs.Key)
	s.emitNotification(NotificationNewStream, StreamAvailable{StreamID: streamID, Stream: rs})
}

func (s *Session) onDataChannel(streamID string, dc *pion.DataChannel) {
	s.tasks.post(func() {
		if err := s.registry.AttachDataChannel(streamID, dc); err != nil {
			s.log.Debug("dropping data channel of closed stream", "stream", streamID)
		}
	})
}

func (s *Session) onDataMessage(streamID string, msg pion.DataChannelMessage) {
	if msg.IsString {
		s.emitNotification(NotificationDataReceived, DataReceived{StreamID: streamID, Text: string(msg.Data)})
		return
	}

	env, err := webrtc.DecodeDataMessage(msg.Data)
	if err != nil {
		s.log.Debug("undecodable data message", "stream", streamID, "error", err)
		return
	}
	var payload any
	if err := env.DecodePayload(&payload); err != nil {
		s.log.Debug("undecodable data payload", "stream", streamID, "type", env.Type, "error", err)
		return
	}
	s.emitNotification(NotificationDataReceived, DataReceived{StreamID: streamID, Type: env.Type, Payload: payload})
}
