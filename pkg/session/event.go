package session

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	SignalMicOn  = "mic_on"
	SignalMicOff = "mic_off"
)

// Event is one of EventMicOn, EventMicOff, EventPlayToggle,
// EventUploadCompleted and EventUploadFailed.
type Event interface {
	fmt.Stringer
	isEvent()
}

type EventMicOn struct{}

type EventMicOff struct{}

type EventPlayToggle struct{}

type EventUploadCompleted struct {
	ClipID   uuid.UUID
	Response []byte
}

type EventUploadFailed struct {
	ClipID uuid.UUID
	Err    error
}

func (EventMicOn) isEvent()           {}
func (EventMicOff) isEvent()          {}
func (EventPlayToggle) isEvent()      {}
func (EventUploadCompleted) isEvent() {}
func (EventUploadFailed) isEvent()    {}

func (EventMicOn) String() string      { return "MicOn" }
func (EventMicOff) String() string     { return "MicOff" }
func (EventPlayToggle) String() string { return "PlayToggle" }
func (ev EventUploadCompleted) String() string {
	return fmt.Sprintf("UploadCompleted(%s)", ev.ClipID)
}
func (ev EventUploadFailed) String() string {
	return fmt.Sprintf("UploadFailed(%s: %v)", ev.ClipID, ev.Err)
}

// ParseSignal maps a control channel message name to an event.
func ParseSignal(name string) (Event, bool) {
	switch name {
	case SignalMicOn:
		return EventMicOn{}, true
	case SignalMicOff:
		return EventMicOff{}, true
	default:
		return nil, false
	}
}
