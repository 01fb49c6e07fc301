package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaionaro-go/remotemic/pkg/capability"
	"github.com/xaionaro-go/remotemic/pkg/clip"
)

type fakeRecorderHandle struct {
	id     uuid.UUID
	closed bool
}

func (h *fakeRecorderHandle) ID() uuid.UUID { return h.id }

func (h *fakeRecorderHandle) Close() error {
	h.closed = true
	return nil
}

type fakeRecorder struct {
	locker   sync.Mutex
	started  []*fakeRecorderHandle
	stopped  []uuid.UUID
	calls    []string
	startErr error
	stopErr  error
}

var _ capability.Recorder = (*fakeRecorder)(nil)

func (r *fakeRecorder) Start(_ context.Context, grant *capability.Grant) (capability.RecorderHandle, error) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.calls = append(r.calls, "start")
	if grant == nil {
		return nil, errors.New("no grant")
	}
	if r.startErr != nil {
		return nil, r.startErr
	}
	h := &fakeRecorderHandle{id: uuid.New()}
	r.started = append(r.started, h)
	return h, nil
}

func (r *fakeRecorder) Stop(_ context.Context, handle capability.RecorderHandle) (*capability.Recording, error) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.calls = append(r.calls, "stop")
	if r.stopErr != nil {
		return nil, r.stopErr
	}
	r.stopped = append(r.stopped, handle.ID())
	return &capability.Recording{
		ID:        handle.ID(),
		Bytes:     []byte("RIFF-fake-audio-" + handle.ID().String()),
		SourceURI: "/tmp/" + handle.ID().String() + ".wav",
		Format:    clip.Format{SampleRate: 44100, Channels: 2},
	}, nil
}

func (r *fakeRecorder) Calls() []string {
	r.locker.Lock()
	defer r.locker.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeUploader struct {
	locker   sync.Mutex
	payloads []string
	results  []error
	err      error
	delay    time.Duration
	done     chan struct{}
}

var _ capability.Uploader = (*fakeUploader)(nil)

func newFakeUploader(err error) *fakeUploader {
	return &fakeUploader{err: err, done: make(chan struct{}, 100)}
}

func (u *fakeUploader) Upload(ctx context.Context, payload string) ([]byte, error) {
	u.locker.Lock()
	u.payloads = append(u.payloads, payload)
	delay := u.delay
	u.locker.Unlock()
	u.done <- struct{}{}

	err := u.err
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	u.locker.Lock()
	u.results = append(u.results, err)
	u.locker.Unlock()
	if err != nil {
		return nil, err
	}
	return []byte(`{"ok":true}`), nil
}

func (u *fakeUploader) Results() []error {
	u.locker.Lock()
	defer u.locker.Unlock()
	return append([]error(nil), u.results...)
}

func (u *fakeUploader) Payloads() []string {
	u.locker.Lock()
	defer u.locker.Unlock()
	return append([]string(nil), u.payloads...)
}

type fakePlaybackHandle struct {
	clip     *clip.Clip
	playing  bool
	released bool
	playErr  error
}

func (h *fakePlaybackHandle) Play(context.Context) error {
	if h.playErr != nil {
		return h.playErr
	}
	h.playing = true
	return nil
}

func (h *fakePlaybackHandle) Pause(context.Context) error {
	h.playing = false
	return nil
}

func (h *fakePlaybackHandle) Status(context.Context) (capability.PlaybackStatus, error) {
	return capability.PlaybackStatus{Playing: h.playing}, nil
}

func (h *fakePlaybackHandle) Release() error {
	h.released = true
	return nil
}

type fakePlayer struct {
	created []*fakePlaybackHandle
	playErr error
}

var _ capability.Player = (*fakePlayer)(nil)

func (p *fakePlayer) Create(_ context.Context, c *clip.Clip) (capability.PlaybackHandle, error) {
	h := &fakePlaybackHandle{clip: c, playErr: p.playErr}
	p.created = append(p.created, h)
	return h, nil
}

type warning struct {
	Title   string
	Message string
}

type fakeNotifier struct {
	locker   sync.Mutex
	warnings []warning
}

var _ capability.Notifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) Warn(_ context.Context, title, message string) error {
	n.locker.Lock()
	defer n.locker.Unlock()
	n.warnings = append(n.warnings, warning{Title: title, Message: message})
	return nil
}

type fakeControlChannel struct {
	locker   sync.Mutex
	handlers map[string]capability.MessageHandler
}

var _ capability.ControlChannel = (*fakeControlChannel)(nil)

func (ch *fakeControlChannel) OnMessage(name string, handler capability.MessageHandler) {
	ch.locker.Lock()
	defer ch.locker.Unlock()
	if ch.handlers == nil {
		ch.handlers = map[string]capability.MessageHandler{}
	}
	ch.handlers[name] = handler
}

func (ch *fakeControlChannel) Off(name string) {
	ch.locker.Lock()
	defer ch.locker.Unlock()
	delete(ch.handlers, name)
}

func (ch *fakeControlChannel) Deliver(ctx context.Context, name string) bool {
	ch.locker.Lock()
	handler := ch.handlers[name]
	ch.locker.Unlock()
	if handler == nil {
		return false
	}
	handler(ctx, name, nil)
	return true
}

func (ch *fakeControlChannel) Send(context.Context, string, any) error { return nil }
func (ch *fakeControlChannel) Run(ctx context.Context) error          { <-ctx.Done(); return ctx.Err() }
func (ch *fakeControlChannel) Close() error                           { return nil }
