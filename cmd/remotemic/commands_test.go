package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/remotemic/pkg/session"
)

func TestParseCommand(t *testing.T) {
	idle := session.Session{State: session.StateIdle}
	recording := session.Session{State: session.StateRecording}

	for _, tc := range []struct {
		Line     string
		Current  session.Session
		Expected session.Event
	}{
		{Line: "on", Current: idle, Expected: session.EventMicOn{}},
		{Line: " OFF ", Current: recording, Expected: session.EventMicOff{}},
		{Line: "toggle", Current: idle, Expected: session.EventMicOn{}},
		{Line: "toggle", Current: recording, Expected: session.EventMicOff{}},
		{Line: "play", Current: idle, Expected: session.EventPlayToggle{}},
		{Line: "state", Current: idle, Expected: nil},
		{Line: "", Current: idle, Expected: nil},
	} {
		ev, err := parseCommand(tc.Line, tc.Current)
		require.NoError(t, err, tc.Line)
		assert.Equal(t, tc.Expected, ev, tc.Line)
	}

	_, err := parseCommand("record", idle)
	assert.Error(t, err)
}
