package webrtc

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
)

// RemoteStream groups the remote tracks that share one media stream id.
// Several connections may deliver tracks under the same id; the stream
// lives until the last of them is closed.
type RemoteStream struct {
	// Key is the remote media stream id, or the stream id of the
	// connection when the remote side sends none.
	Key string

	mu     sync.Mutex
	owners []string
	tracks []ownedTrack

	packets atomic.Uint64
	bytes   atomic.Uint64
}

type ownedTrack struct {
	streamID string
	track    *pion.TrackRemote
}

func newRemoteStream(key, streamID string) *RemoteStream {
	return &RemoteStream{Key: key, owners: []string{streamID}}
}

// StreamID is the earliest live stream whose connection delivered tracks
// for this stream.
func (s *RemoteStream) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.owners) == 0 {
		return ""
	}
	return s.owners[0]
}

// Owners returns every stream id contributing tracks, in arrival order.
func (s *RemoteStream) Owners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.owners...)
}

// Tracks returns a snapshot of the tracks received so far.
func (s *RemoteStream) Tracks() []*pion.TrackRemote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*pion.TrackRemote, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t.track
	}
	return out
}

func (s *RemoteStream) Packets() uint64 { return s.packets.Load() }

// Bytes counts RTP payload bytes.
func (s *RemoteStream) Bytes() uint64 { return s.bytes.Load() }

func (s *RemoteStream) addTrack(streamID string, track *pion.TrackRemote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, ownedTrack{streamID: streamID, track: track})
	if !slices.Contains(s.owners, streamID) {
		s.owners = append(s.owners, streamID)
	}
}

// release drops the tracks of streamID. It reports true when streamID was
// the last owner.
func (s *RemoteStream) release(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.owners, streamID)
	if i < 0 {
		return false
	}
	s.owners = slices.Delete(s.owners, i, i+1)
	s.tracks = slices.DeleteFunc(s.tracks, func(t ownedTrack) bool { return t.streamID == streamID })
	return len(s.owners) == 0
}

func (s *RemoteStream) observe(pkt *rtp.Packet) {
	s.packets.Add(1)
	s.bytes.Add(uint64(len(pkt.Payload)))
}

// consume drains track until it ends. Video tracks get a keyframe request
// first so playback does not wait for the next periodic one.
func (s *RemoteStream) consume(streamID string, pc *pion.PeerConnection, track *pion.TrackRemote) {
	if track.Kind() == pion.RTPCodecTypeVideo {
		err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}})
		if err != nil {
			slog.Debug("send pli", "stream", streamID, "error", err)
		}
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track ended", "stream", streamID, "track", track.ID(), "error", err)
			}
			return
		}
		s.observe(pkt)
	}
}
