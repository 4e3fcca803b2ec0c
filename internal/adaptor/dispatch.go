package adaptor

import (
	"errors"

	"github.com/BioHazard786/Warpcast/internal/signaling"
	"github.com/BioHazard786/Warpcast/internal/webrtc"
)

// Session implements signaling.Router; every method runs on the session
// loop.

func (s *Session) HandleStart(m *signaling.StartMessage) {
	s.log.Debug("start", "stream", m.StreamID)
	s.report(m.StreamID, s.negotiator.CreateOffer(m.StreamID))
}

func (s *Session) HandleCandidate(m *signaling.CandidateMessage) {
	err := s.negotiator.TakeCandidate(m.StreamID, m.ToPion())
	if err == nil {
		return
	}
	// Candidates are best effort; only a connection that cannot be
	// created is worth reporting.
	if errors.Is(err, webrtc.ErrInitPeerConnection) {
		s.report(m.StreamID, err)
		return
	}
	s.log.Debug("candidate rejected", "stream", m.StreamID, "error", err)
}

func (s *Session) HandleConfiguration(m *signaling.ConfigurationMessage) {
	s.log.Debug("configuration", "stream", m.StreamID, "type", m.Type)
	s.report(m.StreamID, s.negotiator.ApplyRemoteAndRespond(m.StreamID, m.SDP, m.Type))
}

func (s *Session) HandleStop(m *signaling.StopMessage) {
	s.log.Debug("stop", "stream", m.StreamID)
	s.negotiator.Close(m.StreamID)
}

func (s *Session) HandleError(m *signaling.ErrorMessage) {
	s.log.Debug("server error", "definition", m.Definition)
	s.emitError(m.Definition, m.Payload)
}

func (s *Session) HandleNotification(m *signaling.NotificationMessage) {
	s.log.Debug("notification", "definition", m.Definition)
	s.emitNotification(m.Definition, m.Payload)
}

func (s *Session) HandleStreamInformation(m *signaling.StreamInformationMessage) {
	s.log.Debug("stream information", "stream", m.StreamID, "info", m.Payload)
}

func (s *Session) HandlePong(*signaling.PongMessage) {
	s.log.Debug("pong")
}
