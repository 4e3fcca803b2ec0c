package webrtc

import (
	"log/slog"

	"github.com/pion/sdp/v3"
	pion "github.com/pion/webrtc/v4"
)

// Outbound delivers local descriptions to the remote side.
type Outbound interface {
	SendDescription(streamID string, desc pion.SessionDescription) error
}

// Negotiator runs offer/answer exchanges against the registry's
// connections and feeds buffered candidates once a remote description is
// set. Like the registry it is driven from a single goroutine.
type Negotiator struct {
	registry *Registry
	buffer   *CandidateBuffer
	out      Outbound
}

func NewNegotiator(registry *Registry, buffer *CandidateBuffer, out Outbound) *Negotiator {
	return &Negotiator{registry: registry, buffer: buffer, out: out}
}

// CreateOffer makes and applies a local offer for streamID and sends it.
func (n *Negotiator) CreateOffer(streamID string) error {
	e, err := n.registry.Ensure(streamID)
	if err != nil {
		return err
	}

	offer, err := e.PC.CreateOffer(nil)
	if err != nil {
		return newError(OpCreateOffer, streamID, err)
	}
	return n.setLocalAndSend(e, offer)
}

// ApplyRemoteAndRespond applies a remote description, drains the stream's
// candidate buffer and answers when the description is an offer.
func (n *Negotiator) ApplyRemoteAndRespond(streamID, sdpText, sdpType string) error {
	e, err := n.registry.Ensure(streamID)
	if err != nil {
		return err
	}

	typ := pion.NewSDPType(sdpType)
	switch typ {
	case pion.SDPTypeOffer, pion.SDPTypeAnswer, pion.SDPTypePranswer:
	default:
		return newError(OpSetRemoteDescription, streamID, ErrUnsupportedSDPType)
	}

	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(sdpText)); err != nil {
		return newError(OpSetRemoteDescription, streamID, err)
	}
	slog.Debug("remote description", "stream", streamID, "type", typ.String(), "media", mediaKinds(parsed))

	desc := pion.SessionDescription{Type: typ, SDP: sdpText}
	if err := e.PC.SetRemoteDescription(desc); err != nil {
		return newError(OpSetRemoteDescription, streamID, err)
	}
	e.RemoteDescriptionSet = true
	n.flush(e)

	if typ != pion.SDPTypeOffer {
		return nil
	}

	answer, err := e.PC.CreateAnswer(nil)
	if err != nil {
		return newError(OpCreateAnswer, streamID, err)
	}
	return n.setLocalAndSend(e, answer)
}

// TakeCandidate applies c when the stream's remote description is set and
// buffers it otherwise. A stream with no connection gets one.
func (n *Negotiator) TakeCandidate(streamID string, c pion.ICECandidateInit) error {
	e, err := n.registry.Ensure(streamID)
	if err != nil {
		return err
	}

	if n.registry.ShouldBuffer(streamID) {
		if !n.buffer.Add(streamID, c) {
			slog.Debug("duplicate candidate", "stream", streamID)
		}
		return nil
	}

	if err := e.PC.AddICECandidate(normalizeCandidate(c)); err != nil {
		return newError(OpAddICECandidate, streamID, err)
	}
	return nil
}

// Close tears down streamID and forgets its buffered candidates.
func (n *Negotiator) Close(streamID string) bool {
	n.buffer.Drop(streamID)
	return n.registry.Close(streamID)
}

func (n *Negotiator) CloseAll() {
	for _, info := range n.registry.Streams() {
		n.Close(info.StreamID)
	}
}

func (n *Negotiator) setLocalAndSend(e *Entry, desc pion.SessionDescription) error {
	if err := e.PC.SetLocalDescription(desc); err != nil {
		return newError(OpSetLocalDescription, e.StreamID, err)
	}
	return n.out.SendDescription(e.StreamID, desc)
}

func (n *Negotiator) flush(e *Entry) {
	for _, c := range n.buffer.Flush(e.StreamID) {
		if err := e.PC.AddICECandidate(c); err != nil {
			slog.Debug("buffered candidate rejected", "stream", e.StreamID, "error", err)
		}
	}
}

func mediaKinds(s *sdp.SessionDescription) []string {
	kinds := make([]string, 0, len(s.MediaDescriptions))
	for _, m := range s.MediaDescriptions {
		kinds = append(kinds, m.MediaName.Media)
	}
	return kinds
}
