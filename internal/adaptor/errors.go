package adaptor

import (
	"errors"
	"fmt"
)

// Kinds passed to Callbacks.OnError besides the server's own error
// definitions.
const (
	KindInitPeerConnection      = "initPeerConnectionError"
	KindNotSetRemoteDescription = "notSetRemoteDescription"
	KindCaptureFailed           = "captureError"
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrNoChannel      = errors.New("session has no control channel")
	ErrAlreadyRunning = errors.New("session already running")
)

// SessionError wraps a failure of a session-level operation.
type SessionError struct {
	Op       string
	StreamID string
	Err      error
}

func (e *SessionError) Error() string {
	if e.StreamID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.StreamID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func NewStreamError(op, streamID string, err error) *SessionError {
	return &SessionError{Op: op, StreamID: streamID, Err: err}
}
