package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []string
	err      error
}

func (n *recordingNotifier) Warn(_ context.Context, title, message string) error {
	n.messages = append(n.messages, title+": "+message)
	return n.err
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	broken := &recordingNotifier{err: errors.New("no dbus")}
	working := &recordingNotifier{}

	err := Multi{broken, Log{}, working}.Warn(ctx, "Microphone", "denied")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no dbus")
	require.Equal(t, []string{"Microphone: denied"}, broken.messages)
	require.Equal(t, []string{"Microphone: denied"}, working.messages)

	require.NoError(t, Multi{working}.Warn(ctx, "a", "b"))
	require.NoError(t, Multi(nil).Warn(ctx, "a", "b"))
}
