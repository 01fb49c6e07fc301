package session

import (
	"context"
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/remotemic/pkg/permission"
)

type testEnv struct {
	Recorder   *fakeRecorder
	Uploader   *fakeUploader
	Player     *fakePlayer
	Notifier   *fakeNotifier
	Controller *Controller
}

func newTestEnv(t *testing.T, granted bool, uploadErr error) *testEnv {
	env := &testEnv{
		Recorder: &fakeRecorder{},
		Uploader: newFakeUploader(uploadErr),
		Player:   &fakePlayer{},
		Notifier: &fakeNotifier{},
	}
	env.Controller = New(Dependencies{
		Recorder:   env.Recorder,
		Permission: permission.Static{Granted: granted},
		Uploader:   env.Uploader,
		Player:     env.Player,
		Notifier:   env.Notifier,
		QueueSize:  1024,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, env.Controller.Close(ctx))
	})
	return env
}

func waitUpload(t *testing.T, u *fakeUploader) {
	select {
	case <-u.done:
	case <-time.After(5 * time.Second):
		t.Fatal("the upload was not called")
	}
}

func TestMicOnGranted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true, nil)

	require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))

	s := env.Controller.Snapshot()
	assert.Equal(t, StateRecording, s.State)
	require.NotNil(t, s.ActiveHandle)
	require.Len(t, env.Recorder.started, 1)
	assert.Equal(t, env.Recorder.started[0].ID(), s.ActiveHandle.ID())
}

func TestMicOffUploadsClip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true, nil)

	require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
	require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
	waitUpload(t, env.Uploader)

	s := env.Controller.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Nil(t, s.ActiveHandle)

	payloads := env.Uploader.Payloads()
	require.Len(t, payloads, 1)
	require.NotEmpty(t, payloads[0])

	c := env.Controller.Clip()
	require.NotNil(t, c)
	decoded, err := base64.StdEncoding.DecodeString(payloads[0])
	require.NoError(t, err)
	assert.Equal(t, c.Bytes(), decoded)

	ev := <-env.Controller.queue
	completed, ok := ev.(EventUploadCompleted)
	require.True(t, ok, "%T", ev)
	assert.Equal(t, c.ID(), completed.ClipID)
	require.NoError(t, env.Controller.Handle(ctx, ev))
}

func TestMicOnPermissionDenied(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false, nil)

	err := env.Controller.Handle(ctx, EventMicOn{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	assert.Equal(t, StateIdle, env.Controller.Snapshot().State)
	assert.Empty(t, env.Recorder.started)
	assert.Empty(t, env.Recorder.Calls())
	require.Len(t, env.Notifier.warnings, 1)
	assert.Equal(t, PermissionWarningMessage, env.Notifier.warnings[0].Message)
}

func TestPlayToggleTwice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true, nil)

	require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
	require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
	waitUpload(t, env.Uploader)

	require.NoError(t, env.Controller.Handle(ctx, EventPlayToggle{}))
	require.Len(t, env.Player.created, 1)
	assert.True(t, env.Player.created[0].playing)
	assert.Equal(t, env.Controller.Clip(), env.Player.created[0].clip)

	require.NoError(t, env.Controller.Handle(ctx, EventPlayToggle{}))
	require.Len(t, env.Player.created, 1)
	assert.False(t, env.Player.created[0].playing)
}

func TestUploadFailureKeepsClip(t *testing.T) {
	ctx := context.Background()
	uploadErr := errors.New("connection refused")
	env := newTestEnv(t, true, uploadErr)

	require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
	require.NotPanics(t, func() {
		require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
	})
	waitUpload(t, env.Uploader)

	ev := <-env.Controller.queue
	failed, ok := ev.(EventUploadFailed)
	require.True(t, ok, "%T", ev)

	err := env.Controller.Handle(ctx, failed)
	var uploadError *UploadError
	require.ErrorAs(t, err, &uploadError)
	assert.ErrorIs(t, err, uploadErr)

	assert.Equal(t, StateIdle, env.Controller.Snapshot().State)
	c := env.Controller.Clip()
	require.NotNil(t, c)
	assert.Equal(t, c.ID(), uploadError.ClipID)
	assert.Len(t, env.Uploader.Payloads(), 1)
}

func TestIdempotence(t *testing.T) {
	ctx := context.Background()

	t.Run("mic_on_while_recording", func(t *testing.T) {
		env := newTestEnv(t, true, nil)
		require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
		before := env.Controller.Snapshot()

		require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
		after := env.Controller.Snapshot()

		assert.Equal(t, before, after)
		assert.Len(t, env.Recorder.started, 1)
	})

	t.Run("mic_off_while_idle", func(t *testing.T) {
		env := newTestEnv(t, true, nil)
		require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
		assert.Equal(t, StateIdle, env.Controller.Snapshot().State)
		assert.Empty(t, env.Recorder.Calls())
		assert.Empty(t, env.Uploader.Payloads())
	})

	t.Run("play_toggle_without_clip", func(t *testing.T) {
		env := newTestEnv(t, true, nil)
		require.NoError(t, env.Controller.Handle(ctx, EventPlayToggle{}))
		assert.Empty(t, env.Player.created)
	})
}

func TestStateFollowsEffectiveSignals(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 20; round++ {
		env := newTestEnv(t, true, nil)

		effectiveOn, effectiveOff := 0, 0
		recording := false
		for i := 0; i < 50; i++ {
			if rng.Intn(2) == 0 {
				if !recording {
					effectiveOn++
				}
				recording = true
				require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
			} else {
				if recording {
					effectiveOff++
				}
				recording = false
				require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
			}
		}

		expected := StateIdle
		if effectiveOn-effectiveOff == 1 {
			expected = StateRecording
		}
		assert.Equal(t, expected, env.Controller.Snapshot().State, "round %d", round)
		assert.Len(t, env.Recorder.started, effectiveOn)
		assert.Len(t, env.Recorder.stopped, effectiveOff)
	}
}

func TestFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("start_failure", func(t *testing.T) {
		env := newTestEnv(t, true, nil)
		env.Recorder.startErr = errors.New("device busy")

		err := env.Controller.Handle(ctx, EventMicOn{})
		var captureErr *CaptureError
		require.ErrorAs(t, err, &captureErr)
		assert.Equal(t, "start", captureErr.Op)
		assert.Equal(t, StateIdle, env.Controller.Snapshot().State)
	})

	t.Run("stop_failure", func(t *testing.T) {
		env := newTestEnv(t, true, nil)
		require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
		env.Recorder.stopErr = errors.New("disk full")

		err := env.Controller.Handle(ctx, EventMicOff{})
		var captureErr *CaptureError
		require.ErrorAs(t, err, &captureErr)
		assert.Equal(t, "stop", captureErr.Op)
		assert.Equal(t, StateIdle, env.Controller.Snapshot().State)
		assert.True(t, env.Recorder.started[0].closed)
		assert.Nil(t, env.Controller.Clip())
		assert.Empty(t, env.Uploader.Payloads())
	})

	t.Run("playback_failure", func(t *testing.T) {
		env := newTestEnv(t, true, nil)
		env.Player.playErr = errors.New("no speaker")
		require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
		require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
		waitUpload(t, env.Uploader)

		err := env.Controller.Handle(ctx, EventPlayToggle{})
		var playbackErr *PlaybackError
		require.ErrorAs(t, err, &playbackErr)
		require.Len(t, env.Player.created, 1)
		assert.True(t, env.Player.created[0].released)
		assert.Equal(t, StateIdle, env.Controller.Snapshot().State)
	})
}

func TestNewClipReleasesPlayback(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true, nil)

	require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
	require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
	waitUpload(t, env.Uploader)
	require.NoError(t, env.Controller.Handle(ctx, EventPlayToggle{}))
	first := env.Controller.Clip()

	require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
	require.NoError(t, env.Controller.Handle(ctx, EventMicOff{}))
	waitUpload(t, env.Uploader)

	require.Len(t, env.Player.created, 1)
	assert.True(t, env.Player.created[0].released)
	assert.NotEqual(t, first.ID(), env.Controller.Clip().ID())

	require.NoError(t, env.Controller.Handle(ctx, EventPlayToggle{}))
	require.Len(t, env.Player.created, 2)
	assert.Equal(t, env.Controller.Clip(), env.Player.created[1].clip)
}

func TestRunProcessesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t, true, nil)

	events := []Event{
		EventMicOn{}, EventMicOn{}, EventMicOff{}, EventMicOff{},
		EventMicOn{}, EventMicOff{}, EventMicOn{},
	}
	for _, ev := range events {
		require.NoError(t, env.Controller.Enqueue(ctx, ev))
	}

	runErr := make(chan error, 1)
	go func() { runErr <- env.Controller.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(env.Recorder.Calls()) == 5
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"start", "stop", "start", "stop", "start"}, env.Recorder.Calls())
	require.Eventually(t, func() bool {
		return env.Controller.Snapshot().State == StateRecording
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-runErr, context.Canceled)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true, nil)

	require.NoError(t, env.Controller.Handle(ctx, EventMicOn{}))
	require.NoError(t, env.Controller.Close(ctx))

	assert.True(t, env.Recorder.started[0].closed)
	assert.Equal(t, StateIdle, env.Controller.Snapshot().State)
	assert.Empty(t, env.Uploader.Payloads())
	assert.ErrorIs(t, env.Controller.Enqueue(ctx, EventMicOn{}), ErrClosed)
	assert.ErrorIs(t, env.Controller.Handle(ctx, EventMicOn{}), ErrClosed)
}

func TestCloseWaitsForUpload(t *testing.T) {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t, true, nil)
	env.Uploader.delay = 200 * time.Millisecond

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		env.Controller.Run(runCtx)
	}()

	require.NoError(t, env.Controller.Enqueue(runCtx, EventMicOn{}))
	require.NoError(t, env.Controller.Enqueue(runCtx, EventMicOff{}))
	waitUpload(t, env.Uploader)
	cancel()
	<-runDone

	ctx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	require.NoError(t, env.Controller.Close(ctx))

	results := env.Uploader.Results()
	require.Len(t, results, 1)
	assert.NoError(t, results[0])
}

func TestBindControlChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t, true, nil)
	ch := &fakeControlChannel{}

	unbind := BindControlChannel(ch, env.Controller)
	go env.Controller.Run(ctx)

	require.True(t, ch.Deliver(ctx, SignalMicOn))
	require.Eventually(t, func() bool {
		return env.Controller.Snapshot().State == StateRecording
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, ch.Deliver(ctx, SignalMicOff))
	waitUpload(t, env.Uploader)
	assert.Equal(t, StateIdle, env.Controller.Snapshot().State)

	unbind()
	assert.False(t, ch.Deliver(ctx, SignalMicOn))
}

func TestParseSignal(t *testing.T) {
	ev, ok := ParseSignal("mic_on")
	require.True(t, ok)
	assert.Equal(t, EventMicOn{}, ev)

	ev, ok = ParseSignal("mic_off")
	require.True(t, ok)
	assert.Equal(t, EventMicOff{}, ev)

	_, ok = ParseSignal("mic_toggle")
	assert.False(t, ok)
}
