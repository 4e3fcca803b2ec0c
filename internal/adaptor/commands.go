package adaptor

import (
	"time"

	"github.com/BioHazard786/Warpcast/internal/media"
	"github.com/BioHazard786/Warpcast/internal/signaling"
	"github.com/BioHazard786/Warpcast/internal/webrtc"
)

// do runs fn on the session loop and waits for it. Calls made before Run
// starts wait for it. ErrSessionClosed means fn did not run.
func (s *Session) do(fn func() error) error {
	var err error
	finished := make(chan struct{})
	posted := s.tasks.post(func() {
		err = fn()
		close(finished)
	})
	if !posted {
		return ErrSessionClosed
	}

	select {
	case <-finished:
		return err
	case <-s.done:
	case <-s.closing:
		// A posted task still runs when teardown drains the queue.
		if s.running.Load() {
			select {
			case <-finished:
				return err
			case <-s.done:
			}
		}
	}

	select {
	case <-finished:
		return err
	default:
		return ErrSessionClosed
	}
}

// Publish asks the server to accept streamID from the local media. Nothing
// is sent until local media has been captured.
func (s *Session) Publish(streamID, token string) error {
	return s.do(func() error {
		if s.local == nil {
			s.log.Debug("publish suppressed, no local media", "stream", streamID)
			return nil
		}
		video := s.local.VideoTracks() > 0
		audio := s.local.AudioTracks() > 0
		return s.ch.SendMessage(signaling.NewPublish(streamID, token, video, audio))
	})
}

// Play requests streamID for playback. Its connection will not carry local
// media.
func (s *Session) Play(streamID, token, room string) error {
	return s.do(func() error {
		s.registry.MarkPlay(streamID)
		return s.ch.SendMessage(signaling.NewPlay(streamID, token, room))
	})
}

// Stop asks the server to end streamID. The connection is closed when the
// server answers with stop.
func (s *Session) Stop(streamID string) error {
	return s.sendCommand(signaling.NewStreamCommand(signaling.CommandStop, streamID))
}

func (s *Session) Join(streamID string) error {
	return s.sendCommand(signaling.NewStreamCommand(signaling.CommandJoin, streamID))
}

func (s *Session) Leave(streamID string) error {
	return s.sendCommand(signaling.NewStreamCommand(signaling.CommandLeave, streamID))
}

// JoinRoom enters room, optionally publishing streamID into it.
func (s *Session) JoinRoom(room, streamID string) error {
	return s.do(func() error {
		s.room = room
		return s.ch.SendMessage(signaling.NewJoinRoom(room, streamID))
	})
}

// LeaveFromRoom leaves room. The room stays recorded as the last one used.
func (s *Session) LeaveFromRoom(room string) error {
	return s.do(func() error {
		s.room = room
		return s.ch.SendMessage(signaling.NewLeaveFromRoom(room))
	})
}

func (s *Session) GetRoomInfo(room, streamID string) error {
	return s.sendCommand(signaling.NewGetRoomInfo(room, streamID))
}

func (s *Session) GetStreamInfo(streamID string) error {
	return s.sendCommand(signaling.NewStreamCommand(signaling.CommandGetStreamInfo, streamID))
}

func (s *Session) sendCommand(msg any) error {
	return s.do(func() error {
		return s.ch.SendMessage(msg)
	})
}

// InitPeerConnection creates the connection for streamID if it does not
// exist yet.
func (s *Session) InitPeerConnection(streamID string) error {
	return s.do(func() error {
		_, err := s.registry.Ensure(streamID)
		s.report(streamID, err)
		return err
	})
}

// EnableStats reports updated_stats for streamID every interval. A
// non-positive interval uses the session default.
func (s *Session) EnableStats(streamID string, interval time.Duration) error {
	if interval <= 0 {
		interval = s.statsInterval
	}
	return s.do(func() error {
		return s.registry.EnableStats(streamID, interval, func(ps webrtc.PeerStats) {
			s.emitNotification(NotificationUpdatedStats, ps)
		})
	})
}

func (s *Session) DisableStats(streamID string) error {
	return s.do(func() error {
		s.registry.DisableStats(streamID)
		return nil
	})
}

// SendData writes to the data channel of streamID. See
// webrtc.Registry.SendData for the encoding.
func (s *Session) SendData(streamID, msgType string, payload any) error {
	return s.do(func() error {
		return s.registry.SendData(streamID, msgType, payload)
	})
}

// LocalStream returns the captured local media, or nil before capture.
func (s *Session) LocalStream() *media.LocalStream {
	var local *media.LocalStream
	s.do(func() error {
		local = s.local
		return nil
	})
	return local
}

// LocalStreamReady is closed once local media has been captured.
func (s *Session) LocalStreamReady() <-chan struct{} {
	return s.localReady
}

// RemoteStreams returns a copy of the remote stream map keyed by remote
// media stream id.
func (s *Session) RemoteStreams() map[string]*webrtc.RemoteStream {
	var out map[string]*webrtc.RemoteStream
	s.do(func() error {
		out = s.registry.RemoteStreams()
		return nil
	})
	return out
}

func (s *Session) Streams() []webrtc.StreamInfo {
	var out []webrtc.StreamInfo
	s.do(func() error {
		out = s.registry.Streams()
		return nil
	})
	return out
}

// RoomName is the room last passed to JoinRoom or LeaveFromRoom.
func (s *Session) RoomName() string {
	var room string
	s.do(func() error {
		room = s.room
		return nil
	})
	return room
}

func (s *Session) State() signaling.State {
	return signaling.State(s.state.Load())
}

// Done is closed when Run has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close ends the session. Run returns after releasing every connection.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		if !s.running.Load() {
			s.state.Store(int32(signaling.StateClosed))
			s.ch.Close()
		}
	})
}
