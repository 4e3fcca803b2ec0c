package signaling

import (
	"errors"
	"log/slog"
)

// Router receives decoded control messages, one method per command.
type Router interface {
	HandleStart(*StartMessage)
	HandleCandidate(*CandidateMessage)
	HandleConfiguration(*ConfigurationMessage)
	HandleStop(*StopMessage)
	HandleError(*ErrorMessage)
	HandleNotification(*NotificationMessage)
	HandleStreamInformation(*StreamInformationMessage)
	HandlePong(*PongMessage)
}

// Dispatch decodes one frame and routes it. Unknown commands are ignored;
// malformed frames are returned as errors so the caller can log them.
func Dispatch(data []byte, r Router) error {
	msg, err := ParseMessage(data)
	if err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			slog.Debug("ignoring control message", "error", err)
			return nil
		}
		return err
	}

	switch m := msg.(type) {
	case *StartMessage:
		r.HandleStart(m)
	case *CandidateMessage:
		r.HandleCandidate(m)
	case *ConfigurationMessage:
		r.HandleConfiguration(m)
	case *StopMessage:
		r.HandleStop(m)
	case *ErrorMessage:
		r.HandleError(m)
	case *NotificationMessage:
		r.HandleNotification(m)
	case *StreamInformationMessage:
		r.HandleStreamInformation(m)
	case *PongMessage:
		r.HandlePong(m)
	}
	return nil
}
