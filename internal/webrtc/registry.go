package webrtc

import (
	"log/slog"
	"sort"
	"time"

	"github.com/BioHazard786/Warpcast/internal/media"
	pion "github.com/pion/webrtc/v4"
)

// Hooks receive peer connection events. OnCandidate, OnTrack, OnDataChannel,
// OnDataMessage and OnConnectionStateChange run on pion goroutines and must
// not block; OnStreamAdded runs on the caller of AddRemoteTrack.
type Hooks struct {
	OnCandidate             func(streamID string, c pion.ICECandidateInit)
	OnTrack                 func(streamID string, track *pion.TrackRemote, receiver *pion.RTPReceiver)
	OnStreamAdded           func(streamID string, stream *RemoteStream)
	OnDataChannel           func(streamID string, dc *pion.DataChannel)
	OnDataMessage           func(streamID string, msg pion.DataChannelMessage)
	OnConnectionStateChange func(streamID string, state pion.PeerConnectionState)
}

// Entry is the peer connection bound to one stream id.
type Entry struct {
	StreamID             string
	PC                   *pion.PeerConnection
	RemoteDescriptionSet bool
	CreatedAt            time.Time

	dataChannel *pion.DataChannel
	stats       *statsPoller
}

func (e *Entry) owns(receiver *pion.RTPReceiver) bool {
	if receiver == nil {
		return true
	}
	for _, r := range e.PC.GetReceivers() {
		if r == receiver {
			return true
		}
	}
	return false
}

// StreamInfo is a read-only view of an entry.
type StreamInfo struct {
	StreamID             string    `json:"streamId"`
	Play                 bool      `json:"play"`
	RemoteDescriptionSet bool      `json:"remoteDescriptionSet"`
	SignalingState       string    `json:"signalingState"`
	ConnectionState      string    `json:"connectionState"`
	DataChannel          string    `json:"dataChannel,omitempty"`
	Stats                bool      `json:"stats"`
	CreatedAt            time.Time `json:"createdAt"`
}

type RegistryConfig struct {
	// API builds the connections. Nil uses pion's default API.
	API *pion.API
	// ICE is applied to every new connection. The zero value has no ICE
	// servers.
	ICE          pion.Configuration
	Hooks        Hooks
	DataChannels bool
	// NewPeerConnection overrides connection construction.
	NewPeerConnection func(pion.Configuration) (*pion.PeerConnection, error)
}

// Registry owns the live peer connections of a session keyed by stream id,
// the play set, the remote stream map and the shared local stream. It is not
// safe for concurrent use; the session loop owns it.
type Registry struct {
	config  pion.Configuration
	hooks   Hooks
	dataCh  bool
	newPeer func(pion.Configuration) (*pion.PeerConnection, error)

	entries       map[string]*Entry
	play          map[string]struct{}
	remoteStreams map[string]*RemoteStream
	local         *media.LocalStream
}

func NewRegistry(cfg RegistryConfig) *Registry {
	newPeer := cfg.NewPeerConnection
	if newPeer == nil {
		if cfg.API != nil {
			newPeer = cfg.API.NewPeerConnection
		} else {
			newPeer = pion.NewPeerConnection
		}
	}

	return &Registry{
		config:        cfg.ICE,
		hooks:         cfg.Hooks,
		dataCh:        cfg.DataChannels,
		newPeer:       newPeer,
		entries:       make(map[string]*Entry),
		play:          make(map[string]struct{}),
		remoteStreams: make(map[string]*RemoteStream),
	}
}

// Ensure returns the entry for streamID, creating its connection on first
// use. Creation failures match ErrInitPeerConnection.
func (r *Registry) Ensure(streamID string) (*Entry, error) {
	if e, ok := r.entries[streamID]; ok {
		return e, nil
	}

	pc, err := r.newPeer(r.config)
	if err != nil {
		return nil, newError(OpInitPeerConnection, streamID, err)
	}

	play := r.IsPlay(streamID)
	e := &Entry{StreamID: streamID, PC: pc, CreatedAt: time.Now()}

	if !play && r.local != nil {
		for _, track := range r.local.Tracks() {
			sender, err := pc.AddTrack(track)
			if err != nil {
				pc.Close()
				return nil, newError(OpInitPeerConnection, streamID, err)
			}
			go drainRTCP(sender)
		}
	}

	if r.dataCh && !play {
		dc, err := pc.CreateDataChannel(streamID, nil)
		if err != nil {
			pc.Close()
			return nil, newError(OpInitPeerConnection, streamID, err)
		}
		e.dataChannel = dc
		r.watchDataChannel(streamID, dc)
	}

	r.bindHooks(streamID, pc)
	r.entries[streamID] = e
	slog.Debug("peer connection created", "stream", streamID, "play", play)
	return e, nil
}

func (r *Registry) bindHooks(streamID string, pc *pion.PeerConnection) {
	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil || r.hooks.OnCandidate == nil {
			return
		}
		r.hooks.OnCandidate(streamID, c.ToJSON())
	})

	pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		if r.hooks.OnTrack != nil {
			r.hooks.OnTrack(streamID, track, receiver)
		}
	})

	pc.OnDataChannel(func(dc *pion.DataChannel) {
		if r.hooks.OnDataChannel != nil {
			r.hooks.OnDataChannel(streamID, dc)
		}
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "stream", streamID, "state", state.String())
		if r.hooks.OnConnectionStateChange != nil {
			r.hooks.OnConnectionStateChange(streamID, state)
		}
	})
}

func (r *Registry) watchDataChannel(streamID string, dc *pion.DataChannel) {
	dc.OnOpen(func() {
		slog.Debug("data channel open", "stream", streamID, "label", dc.Label())
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		if r.hooks.OnDataMessage != nil {
			r.hooks.OnDataMessage(streamID, msg)
		}
	})
}

// drainRTCP reads incoming RTCP so interceptors keep running.
func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// ShouldBuffer reports whether candidates for streamID must wait for the
// remote description. A stream without a connection buffers.
func (r *Registry) ShouldBuffer(streamID string) bool {
	e, ok := r.entries[streamID]
	return !ok || !e.RemoteDescriptionSet
}

// Close tears down the connection of streamID. It reports whether an entry
// existed; closing an absent stream does nothing.
func (r *Registry) Close(streamID string) bool {
	e, ok := r.entries[streamID]
	if !ok {
		return false
	}

	if e.dataChannel != nil {
		e.dataChannel.Close()
		e.dataChannel = nil
	}

	for key, rs := range r.remoteStreams {
		if r.local != nil && key == r.local.ID() {
			continue
		}
		if rs.release(streamID) {
			delete(r.remoteStreams, key)
		}
	}

	if e.PC.SignalingState() != pion.SignalingStateClosed {
		if err := e.PC.Close(); err != nil {
			slog.Debug("close peer connection", "stream", streamID, "error", err)
		}
	}

	if e.stats != nil {
		e.stats.stop()
		e.stats = nil
	}

	delete(r.play, streamID)
	delete(r.entries, streamID)
	slog.Debug("peer connection closed", "stream", streamID)
	return true
}

// CloseAll closes every connection.
func (r *Registry) CloseAll() {
	for id := range r.entries {
		r.Close(id)
	}
}

// MarkPlay records streamID as receive-only.
func (r *Registry) MarkPlay(streamID string) {
	r.play[streamID] = struct{}{}
}

// IsPlay reports whether streamID was opened for playback.
func (r *Registry) IsPlay(streamID string) bool {
	_, ok := r.play[streamID]
	return ok
}

func (r *Registry) SetLocalStream(s *media.LocalStream) {
	r.local = s
}

func (r *Registry) LocalStream() *media.LocalStream {
	return r.local
}

// AddRemoteTrack files track under its remote media stream id and starts
// draining it. It returns nil when the track is the local stream's echo and
// ErrStreamClosed when the connection that received it is gone.
func (r *Registry) AddRemoteTrack(streamID string, track *pion.TrackRemote, receiver *pion.RTPReceiver) (*RemoteStream, error) {
	e, ok := r.entries[streamID]
	if !ok || !e.owns(receiver) {
		return nil, ErrStreamClosed
	}

	key := track.StreamID()
	if key == "" {
		key = streamID
	}
	if r.local != nil && key == r.local.ID() {
		return nil, nil
	}

	rs, exists := r.remoteStreams[key]
	if !exists {
		rs = newRemoteStream(key, streamID)
		r.remoteStreams[key] = rs
	}
	rs.addTrack(streamID, track)
	go rs.consume(streamID, e.PC, track)

	if !exists && r.hooks.OnStreamAdded != nil {
		r.hooks.OnStreamAdded(streamID, rs)
	}
	return rs, nil
}

// RemoteStreams returns a copy of the remote stream map.
func (r *Registry) RemoteStreams() map[string]*RemoteStream {
	out := make(map[string]*RemoteStream, len(r.remoteStreams))
	for k, v := range r.remoteStreams {
		out[k] = v
	}
	return out
}

// AttachDataChannel adopts a channel opened by the remote side.
func (r *Registry) AttachDataChannel(streamID string, dc *pion.DataChannel) error {
	e, ok := r.entries[streamID]
	if !ok {
		dc.Close()
		return ErrStreamClosed
	}
	if e.dataChannel != nil && e.dataChannel != dc {
		e.dataChannel.Close()
	}
	e.dataChannel = dc
	r.watchDataChannel(streamID, dc)
	return nil
}

// SendData sends text as-is when msgType is empty and payload is a string,
// otherwise a msgpack DataMessage envelope.
func (r *Registry) SendData(streamID, msgType string, payload any) error {
	e, ok := r.entries[streamID]
	if !ok {
		return ErrStreamClosed
	}
	dc := e.dataChannel
	if dc == nil {
		return ErrNoDataChannel
	}
	if dc.ReadyState() != pion.DataChannelStateOpen {
		return ErrDataChannelNotOpen
	}

	if text, ok := payload.(string); ok && msgType == "" {
		return dc.SendText(text)
	}
	b, err := EncodeDataMessage(msgType, payload)
	if err != nil {
		return err
	}
	return dc.Send(b)
}

// EnableStats starts polling streamID every interval, replacing any running
// poller.
func (r *Registry) EnableStats(streamID string, interval time.Duration, report func(PeerStats)) error {
	e, ok := r.entries[streamID]
	if !ok {
		return ErrStreamClosed
	}
	if e.stats != nil {
		e.stats.stop()
	}
	e.stats = startStatsPoller(streamID, e.PC, interval, report)
	return nil
}

func (r *Registry) DisableStats(streamID string) bool {
	e, ok := r.entries[streamID]
	if !ok || e.stats == nil {
		return false
	}
	e.stats.stop()
	e.stats = nil
	return true
}

// Streams returns a snapshot of every entry ordered by stream id.
func (r *Registry) Streams() []StreamInfo {
	out := make([]StreamInfo, 0, len(r.entries))
	for _, e := range r.entries {
		info := StreamInfo{
			StreamID:             e.StreamID,
			Play:                 r.IsPlay(e.StreamID),
			RemoteDescriptionSet: e.RemoteDescriptionSet,
			SignalingState:       e.PC.SignalingState().String(),
			ConnectionState:      e.PC.ConnectionState().String(),
			Stats:                e.stats != nil,
			CreatedAt:            e.CreatedAt,
		}
		if e.dataChannel != nil {
			info.DataChannel = e.dataChannel.ReadyState().String()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StreamID < out[j].StreamID })
	return out
}
