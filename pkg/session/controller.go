package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/remotemic/pkg/capability"
	"github.com/xaionaro-go/remotemic/pkg/clip"
)

const (
	// DefaultQueueSize is the event queue capacity used when Dependencies.QueueSize is zero.
	DefaultQueueSize = 16

	// PermissionWarningTitle is the title of the warning shown when microphone access is denied.
	PermissionWarningTitle = "Permission required"
	// PermissionWarningMessage is the text of the warning shown when microphone access is denied.
	PermissionWarningMessage = "Permission to access microphone is required!"
)

var ErrClosed = errors.New("the session controller is closed")

type Dependencies struct {
	Recorder   capability.Recorder
	Permission capability.PermissionRequester
	Uploader   capability.Uploader
	Player     capability.Player
	Notifier   capability.Notifier

	// QueueSize is the capacity of the event queue, DefaultQueueSize if zero.
	QueueSize int
}

// Controller owns the recording session. Events are processed one at a
// time in the order they were enqueued.
type Controller struct {
	deps Dependencies

	queue     chan Event
	closeOnce sync.Once
	closed    chan struct{}
	uploads   sync.WaitGroup

	// handleLocker serializes event processing.
	handleLocker sync.Mutex
	playback     capability.PlaybackHandle

	// stateLocker guards the fields readable from outside.
	stateLocker sync.Mutex
	session     Session
	clip        *clip.Clip
}

func New(deps Dependencies) *Controller {
	if deps.QueueSize <= 0 {
		deps.QueueSize = DefaultQueueSize
	}
	return &Controller{
		deps:   deps,
		queue:  make(chan Event, deps.QueueSize),
		closed: make(chan struct{}),
		session: Session{
			State: StateIdle,
		},
	}
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	return c.session
}

// Clip returns the latest clip, or nil if nothing was recorded yet.
func (c *Controller) Clip() *clip.Clip {
	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	return c.clip
}

func (c *Controller) setSession(s Session) {
	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	c.session = s
}

// Enqueue puts the event to the end of the queue. It blocks while the
// queue is full.
func (c *Controller) Enqueue(ctx context.Context, ev Event) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.queue <- ev:
		logger.Tracef(ctx, "enqueued %s", ev)
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes the queued events until ctx is cancelled or the
// controller is closed.
func (c *Controller) Run(ctx context.Context) error {
	logger.Debugf(ctx, "Run")
	defer logger.Debugf(ctx, "/Run")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return nil
		case ev := <-c.queue:
			if err := c.Handle(ctx, ev); err != nil {
				if errors.Is(err, ErrPermissionDenied) {
					logger.Warnf(ctx, "%s: %v", ev, err)
				} else {
					logger.Errorf(ctx, "%s: %v", ev, err)
				}
			}
		}
	}
}

// Handle processes a single event synchronously. The returned error only
// describes what went wrong; the session is valid in any case.
func (c *Controller) Handle(ctx context.Context, ev Event) (_err error) {
	logger.Debugf(ctx, "Handle(%s)", ev)
	defer func() { logger.Debugf(ctx, "/Handle(%s): %v", ev, _err) }()

	c.handleLocker.Lock()
	defer c.handleLocker.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	switch ev := ev.(type) {
	case EventMicOn:
		return c.onMicOn(ctx)
	case EventMicOff:
		return c.onMicOff(ctx)
	case EventPlayToggle:
		return c.onPlayToggle(ctx)
	case EventUploadCompleted:
		logger.Infof(ctx, "clip %s is uploaded, the response: %s", ev.ClipID, ev.Response)
		return nil
	case EventUploadFailed:
		return &UploadError{ClipID: ev.ClipID, Err: ev.Err}
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}
}

func (c *Controller) onMicOn(ctx context.Context) error {
	if c.Snapshot().State == StateRecording {
		logger.Debugf(ctx, "already recording")
		return nil
	}

	grant, err := c.deps.Permission.RequestCapture(ctx)
	if err != nil {
		if warnErr := c.deps.Notifier.Warn(ctx, PermissionWarningTitle, PermissionWarningMessage); warnErr != nil {
			logger.Errorf(ctx, "unable to warn the user: %v", warnErr)
		}
		if !errors.Is(err, ErrPermissionDenied) {
			err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return err
	}

	handle, err := c.deps.Recorder.Start(ctx, grant)
	if err != nil {
		return &CaptureError{Op: "start", Err: err}
	}

	c.setSession(Session{
		State:        StateRecording,
		ActiveHandle: handle,
	})
	logger.Infof(ctx, "recording started (%s)", handle.ID())
	return nil
}

func (c *Controller) onMicOff(ctx context.Context) error {
	s := c.Snapshot()
	if s.State != StateRecording {
		logger.Debugf(ctx, "not recording")
		return nil
	}

	rec, err := c.deps.Recorder.Stop(ctx, s.ActiveHandle)
	if err != nil {
		if closeErr := s.ActiveHandle.Close(); closeErr != nil {
			logger.Debugf(ctx, "unable to close the recorder handle: %v", closeErr)
		}
		c.setSession(Session{State: StateIdle})
		return &CaptureError{Op: "stop", Err: err}
	}

	newClip := clip.New(rec.ID, rec.Bytes, rec.SourceURI, rec.Format)
	c.replaceClip(ctx, newClip)
	c.setSession(Session{State: StateIdle})
	logger.Infof(ctx, "recording stopped and stored at %s", newClip.SourceURI())
	logger.Tracef(ctx, "base64 audio: %.100s", newClip.Base64())

	c.upload(ctx, newClip)
	return nil
}

// replaceClip must be called with handleLocker held.
func (c *Controller) replaceClip(ctx context.Context, newClip *clip.Clip) {
	if c.playback != nil {
		if err := c.playback.Release(); err != nil {
			logger.Errorf(ctx, "unable to release the previous playback: %v", err)
		}
		c.playback = nil
	}

	c.stateLocker.Lock()
	defer c.stateLocker.Unlock()
	c.clip = newClip
}

// SetClip replaces the current clip without uploading it.
func (c *Controller) SetClip(ctx context.Context, newClip *clip.Clip) {
	c.handleLocker.Lock()
	defer c.handleLocker.Unlock()
	c.replaceClip(ctx, newClip)
}

// upload is not bound to the caller's cancellation: an upload in flight
// outlives Run, and Close waits for it.
func (c *Controller) upload(ctx context.Context, uploadClip *clip.Clip) {
	c.uploads.Add(1)
	observability.Go(context.WithoutCancel(ctx), func(ctx context.Context) {
		defer c.uploads.Done()
		id := uploadClip.ID()
		logger.Debugf(ctx, "uploading clip %s (%d bytes encoded)", id, len(uploadClip.Base64()))

		var ev Event
		resp, err := c.deps.Uploader.Upload(ctx, uploadClip.Base64())
		if err != nil {
			ev = EventUploadFailed{ClipID: id, Err: err}
		} else {
			ev = EventUploadCompleted{ClipID: id, Response: resp}
		}

		if err := c.Enqueue(ctx, ev); err != nil {
			logger.Warnf(ctx, "unable to report %s: %v", ev, err)
		}
	})
}

func (c *Controller) onPlayToggle(ctx context.Context) error {
	current := c.Clip()
	if current == nil {
		logger.Debugf(ctx, "nothing to play")
		return nil
	}

	if c.playback == nil {
		handle, err := c.deps.Player.Create(ctx, current)
		if err != nil {
			return &PlaybackError{Op: "create", Err: err}
		}
		if err := handle.Play(ctx); err != nil {
			if releaseErr := handle.Release(); releaseErr != nil {
				logger.Debugf(ctx, "unable to release the playback: %v", releaseErr)
			}
			return &PlaybackError{Op: "start", Err: err}
		}
		c.playback = handle
		return nil
	}

	status, err := c.playback.Status(ctx)
	if err != nil {
		return &PlaybackError{Op: "query", Err: err}
	}
	if status.Playing {
		if err := c.playback.Pause(ctx); err != nil {
			return &PlaybackError{Op: "pause", Err: err}
		}
		return nil
	}
	if err := c.playback.Play(ctx); err != nil {
		return &PlaybackError{Op: "resume", Err: err}
	}
	return nil
}

// Close stops processing events, discards an active recording, releases
// the playback and waits for the uploads in flight (until ctx is done).
func (c *Controller) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close")
	defer logger.Debugf(ctx, "/Close")

	alreadyClosed := true
	c.closeOnce.Do(func() {
		alreadyClosed = false
		close(c.closed)
	})
	if alreadyClosed {
		return nil
	}

	var mErr *multierror.Error

	c.handleLocker.Lock()
	if s := c.Snapshot(); s.State == StateRecording {
		logger.Warnf(ctx, "discarding the active recording %s", s.ActiveHandle.ID())
		if err := s.ActiveHandle.Close(); err != nil {
			mErr = multierror.Append(mErr, &CaptureError{Op: "discard", Err: err})
		}
		c.setSession(Session{State: StateIdle})
	}
	if c.playback != nil {
		if err := c.playback.Release(); err != nil {
			mErr = multierror.Append(mErr, &PlaybackError{Op: "release", Err: err})
		}
		c.playback = nil
	}
	c.handleLocker.Unlock()

	uploadsDone := make(chan struct{})
	observability.Go(ctx, func(context.Context) {
		c.uploads.Wait()
		close(uploadsDone)
	})
	select {
	case <-uploadsDone:
	case <-ctx.Done():
		mErr = multierror.Append(mErr, fmt.Errorf("uploads are still in flight: %w", ctx.Err()))
	}

	return mErr.ErrorOrNil()
}
