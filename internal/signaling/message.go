package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	pion "github.com/pion/webrtc/v4"
)

// Command values carried in the "command" field of every control message.
const (
	CommandPublish           = "publish"
	CommandPlay              = "play"
	CommandStop              = "stop"
	CommandJoin              = "join"
	CommandLeave             = "leave"
	CommandJoinRoom          = "joinRoom"
	CommandLeaveFromRoom     = "leaveFromRoom"
	CommandGetRoomInfo       = "getRoomInfo"
	CommandGetStreamInfo     = "getStreamInfo"
	CommandTakeCandidate     = "takeCandidate"
	CommandTakeConfiguration = "takeConfiguration"
	CommandPing              = "ping"

	CommandStart             = "start"
	CommandError             = "error"
	CommandNotification      = "notification"
	CommandStreamInformation = "streamInformation"
	CommandPong              = "pong"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingCommand = errors.New("message has no command")
)

// --- Outbound messages ---

type PublishMessage struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId"`
	Token    string `json:"token"`
	Video    bool   `json:"video"`
	Audio    bool   `json:"audio"`
}

type PlayMessage struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId"`
	Token    string `json:"token,omitempty"`
	Room     string `json:"room,omitempty"`
}

// StreamMessage covers the commands that only carry a stream id:
// stop, join, leave and getStreamInfo.
type StreamMessage struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId"`
}

type JoinRoomMessage struct {
	Command  string `json:"command"`
	Room     string `json:"room"`
	StreamID string `json:"streamId,omitempty"`
}

type LeaveFromRoomMessage struct {
	Command string `json:"command"`
	Room    string `json:"room"`
}

type GetRoomInfoMessage struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId,omitempty"`
	Room     string `json:"room"`
}

// CandidateMessage is the takeCandidate command in both directions.
type CandidateMessage struct {
	Command   string `json:"command"`
	StreamID  string `json:"streamId"`
	Label     *int   `json:"label"`
	ID        string `json:"id"`
	Candidate string `json:"candidate"`
}

// ConfigurationMessage is the takeConfiguration command in both directions.
type ConfigurationMessage struct {
	Command  string `json:"command"`
	StreamID string `json:"streamId"`
	Type     string `json:"type"`
	SDP      string `json:"sdp"`
}

type PingMessage struct {
	Command string `json:"command"`
}

func NewPublish(streamID, token string, video, audio bool) *PublishMessage {
	return &PublishMessage{Command: CommandPublish, StreamID: streamID, Token: token, Video: video, Audio: audio}
}

func NewPlay(streamID, token, room string) *PlayMessage {
	return &PlayMessage{Command: CommandPlay, StreamID: streamID, Token: token, Room: room}
}

func NewStreamCommand(command, streamID string) *StreamMessage {
	return &StreamMessage{Command: command, StreamID: streamID}
}

func NewJoinRoom(room, streamID string) *JoinRoomMessage {
	return &JoinRoomMessage{Command: CommandJoinRoom, Room: room, StreamID: streamID}
}

func NewLeaveFromRoom(room string) *LeaveFromRoomMessage {
	return &LeaveFromRoomMessage{Command: CommandLeaveFromRoom, Room: room}
}

func NewGetRoomInfo(room, streamID string) *GetRoomInfoMessage {
	return &GetRoomInfoMessage{Command: CommandGetRoomInfo, Room: room, StreamID: streamID}
}

func NewPing() *PingMessage {
	return &PingMessage{Command: CommandPing}
}

// NewCandidate converts a locally gathered candidate to takeCandidate.
func NewCandidate(streamID string, c pion.ICECandidateInit) *CandidateMessage {
	msg := &CandidateMessage{
		Command:   CommandTakeCandidate,
		StreamID:  streamID,
		Candidate: c.Candidate,
	}
	if c.SDPMLineIndex != nil {
		label := int(*c.SDPMLineIndex)
		msg.Label = &label
	}
	if c.SDPMid != nil {
		msg.ID = *c.SDPMid
	}
	return msg
}

// NewConfiguration converts a local description to takeConfiguration.
func NewConfiguration(streamID string, desc pion.SessionDescription) *ConfigurationMessage {
	return &ConfigurationMessage{
		Command:  CommandTakeConfiguration,
		StreamID: streamID,
		Type:     desc.Type.String(),
		SDP:      desc.SDP,
	}
}

// ToPion converts an inbound candidate. Empty sdpMid is left nil and an
// out-of-range label is dropped.
func (m *CandidateMessage) ToPion() pion.ICECandidateInit {
	init := pion.ICECandidateInit{Candidate: m.Candidate}
	if m.ID != "" {
		mid := m.ID
		init.SDPMid = &mid
	}
	if m.Label != nil && *m.Label >= 0 && *m.Label <= 0xFFFF {
		idx := uint16(*m.Label)
		init.SDPMLineIndex = &idx
	}
	return init
}

// --- Inbound messages ---

// Inbound is one decoded control message. The concrete types are
// *StartMessage, *CandidateMessage, *ConfigurationMessage, *StopMessage,
// *ErrorMessage, *NotificationMessage, *StreamInformationMessage and
// *PongMessage.
type Inbound interface {
	CommandName() string
}

type StartMessage struct {
	StreamID string `json:"streamId"`
}

type StopMessage struct {
	StreamID string `json:"streamId"`
}

// ErrorMessage and NotificationMessage keep the whole payload so it can be
// forwarded untouched.
type ErrorMessage struct {
	Definition string
	Payload    map[string]any
}

type NotificationMessage struct {
	Definition string
	Payload    map[string]any
}

type StreamInformationMessage struct {
	StreamID string
	Payload  map[string]any
}

type PongMessage struct{}

func (*StartMessage) CommandName() string             { return CommandStart }
func (*StopMessage) CommandName() string              { return CommandStop }
func (*CandidateMessage) CommandName() string         { return CommandTakeCandidate }
func (*ConfigurationMessage) CommandName() string     { return CommandTakeConfiguration }
func (*ErrorMessage) CommandName() string             { return CommandError }
func (*NotificationMessage) CommandName() string      { return CommandNotification }
func (*StreamInformationMessage) CommandName() string { return CommandStreamInformation }
func (*PongMessage) CommandName() string              { return CommandPong }

// ParseMessage decodes one control frame into its typed variant. Unknown
// commands yield ErrUnknownCommand and no message.
func ParseMessage(data []byte) (Inbound, error) {
	var envelope struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Command == "" {
		return nil, ErrMissingCommand
	}

	var msg Inbound
	switch envelope.Command {
	case CommandStart:
		msg = &StartMessage{}
	case CommandStop:
		msg = &StopMessage{}
	case CommandTakeCandidate:
		msg = &CandidateMessage{}
	case CommandTakeConfiguration:
		msg = &ConfigurationMessage{}
	case CommandPong:
		return &PongMessage{}, nil
	case CommandError, CommandNotification, CommandStreamInformation:
		return parsePayloadMessage(envelope.Command, data)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, envelope.Command)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Command, err)
	}
	return msg, nil
}

func parsePayloadMessage(command string, data []byte) (Inbound, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", command, err)
	}

	definition, _ := payload["definition"].(string)
	switch command {
	case CommandError:
		return &ErrorMessage{Definition: definition, Payload: payload}, nil
	case CommandNotification:
		return &NotificationMessage{Definition: definition, Payload: payload}, nil
	default:
		streamID, _ := payload["streamId"].(string)
		return &StreamInformationMessage{StreamID: streamID, Payload: payload}, nil
	}
}
