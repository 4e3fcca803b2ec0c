package webrtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4/pkg/rtcerr"
)

// Negotiation steps, used as NegotiationError.Op.
const (
	OpInitPeerConnection   = "initPeerConnection"
	OpCreateOffer          = "createOffer"
	OpCreateAnswer         = "createAnswer"
	OpSetLocalDescription  = "setLocalDescription"
	OpSetRemoteDescription = "setRemoteDescription"
	OpAddICECandidate      = "addIceCandidate"
)

var (
	ErrInitPeerConnection = errors.New("peer connection initialization failed")
	ErrStreamClosed       = errors.New("stream has no peer connection")
	ErrUnsupportedSDPType = errors.New("unsupported sdp type")
	ErrNoDataChannel      = errors.New("stream has no data channel")
	ErrDataChannelNotOpen = errors.New("data channel not open")
)

// NegotiationError records which step failed for which stream.
type NegotiationError struct {
	Op       string
	StreamID string
	Err      error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.StreamID, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// Is makes every initialization failure match ErrInitPeerConnection.
func (e *NegotiationError) Is(target error) bool {
	return target == ErrInitPeerConnection && e.Op == OpInitPeerConnection
}

func newError(op, streamID string, err error) *NegotiationError {
	return &NegotiationError{Op: op, StreamID: streamID, Err: err}
}

// IsRemoteDescriptionError reports whether err means the remote description
// could not be applied, typically a codec the peer cannot accept.
func IsRemoteDescriptionError(err error) bool {
	if err == nil {
		return false
	}

	var negErr *NegotiationError
	if errors.As(err, &negErr) && negErr.Op == OpSetRemoteDescription {
		return true
	}

	var accessErr *rtcerr.InvalidAccessError
	if errors.As(err, &accessErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "InvalidAccessError") || strings.Contains(msg, OpSetRemoteDescription)
}
