// Package media provides the local media source shared by every outgoing
// peer connection of a session.
package media

import (
	"context"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
)

// Constraints select which kinds of track a capture should produce.
type Constraints struct {
	Audio bool
	Video bool
}

// Capturer acquires the local media stream. Implementations may block
// until devices or files are ready.
type Capturer interface {
	Acquire(ctx context.Context, c Constraints) (*LocalStream, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context, c Constraints) (*LocalStream, error)

func (f CapturerFunc) Acquire(ctx context.Context, c Constraints) (*LocalStream, error) {
	return f(ctx, c)
}

// LocalStream is a set of local tracks that share one media stream id.
type LocalStream struct {
	id     string
	tracks []pion.TrackLocal
	stop   context.CancelFunc
}

// NewLocalStream groups tracks under id. An empty id gets a random one.
func NewLocalStream(id string, tracks ...pion.TrackLocal) *LocalStream {
	if id == "" {
		id = uuid.NewString()
	}
	return &LocalStream{id: id, tracks: tracks}
}

func (s *LocalStream) ID() string { return s.id }

// Tracks returns the tracks in attach order.
func (s *LocalStream) Tracks() []pion.TrackLocal {
	out := make([]pion.TrackLocal, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *LocalStream) VideoTracks() int { return s.count(pion.RTPCodecTypeVideo) }
func (s *LocalStream) AudioTracks() int { return s.count(pion.RTPCodecTypeAudio) }

func (s *LocalStream) count(kind pion.RTPCodecType) int {
	n := 0
	for _, t := range s.tracks {
		if t.Kind() == kind {
			n++
		}
	}
	return n
}

// Stop ends any sample pumps feeding the tracks.
func (s *LocalStream) Stop() {
	if s.stop != nil {
		s.stop()
	}
}
