package adaptor

import (
	"github.com/BioHazard786/Warpcast/internal/webrtc"
)

// Notification definitions produced by the session itself.
const (
	NotificationNewStream    = "newStreamAvailable"
	NotificationUpdatedStats = "updated_stats"
	NotificationDataReceived = "data_received"
)

// Callbacks is the application sink. Calls are made in order from one
// goroutine that is not the session loop, so implementations may call back
// into the session.
type Callbacks interface {
	OnError(kind string, detail any)
	OnNotification(definition string, payload any)
}

// CallbackFuncs adapts plain functions to Callbacks. Nil fields are skipped.
type CallbackFuncs struct {
	Error        func(kind string, detail any)
	Notification func(definition string, payload any)
}

func (c CallbackFuncs) OnError(kind string, detail any) {
	if c.Error != nil {
		c.Error(kind, detail)
	}
}

func (c CallbackFuncs) OnNotification(definition string, payload any) {
	if c.Notification != nil {
		c.Notification(definition, payload)
	}
}

// StreamAvailable is the payload of newStreamAvailable.
type StreamAvailable struct {
	StreamID string
	Stream   *webrtc.RemoteStream
}

// DataReceived is the payload of data_received. Text messages carry Text;
// binary envelopes carry Type and the decoded Payload.
type DataReceived struct {
	StreamID string
	Type     string
	Payload  any
	Text     string
}
