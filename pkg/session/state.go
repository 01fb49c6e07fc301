package session

import (
	"fmt"

	"github.com/xaionaro-go/remotemic/pkg/capability"
)

type State uint

const (
	StateIdle = State(iota)
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	default:
		return fmt.Sprintf("unknown_state_%d", uint(s))
	}
}

// Session is the recording lifecycle state. ActiveHandle is set iff
// State is StateRecording.
type Session struct {
	State        State
	ActiveHandle capability.RecorderHandle
}
