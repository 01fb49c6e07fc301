// Package capability defines what the session controller needs from the
// outside world: a microphone, a permission to use it, a speaker, an
// upload endpoint, a way to warn the user and a remote control channel.
package capability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xaionaro-go/remotemic/pkg/clip"
)

// Grant is a proof that capturing audio was permitted.
type Grant struct {
	Source    string
	GrantedAt time.Time
}

type PermissionRequester interface {
	// RequestCapture returns a Grant, or an error wrapping permission.ErrDenied.
	RequestCapture(ctx context.Context) (*Grant, error)
}

// RecorderHandle is an active capture. Close releases the microphone
// and discards the captured audio.
type RecorderHandle interface {
	ID() uuid.UUID
	Close() error
}

// Recording is the result of a finished capture.
type Recording struct {
	ID        uuid.UUID
	Bytes     []byte
	SourceURI string
	Format    clip.Format
}

type Recorder interface {
	Start(ctx context.Context, grant *Grant) (RecorderHandle, error)
	Stop(ctx context.Context, handle RecorderHandle) (*Recording, error)
}

type PlaybackStatus struct {
	Playing  bool
	Finished bool
}

type PlaybackHandle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Status(ctx context.Context) (PlaybackStatus, error)
	Release() error
}

type Player interface {
	Create(ctx context.Context, clip *clip.Clip) (PlaybackHandle, error)
}

type Uploader interface {
	// Upload sends the base64 payload and returns the response body.
	Upload(ctx context.Context, payload string) ([]byte, error)
}

type Notifier interface {
	Warn(ctx context.Context, title, message string) error
}

// MessageHandler is called for every received control message. Handlers
// are called sequentially, in the arrival order.
type MessageHandler func(ctx context.Context, name string, payload []byte)

type ControlChannel interface {
	OnMessage(name string, handler MessageHandler)
	Off(name string)
	Send(ctx context.Context, name string, payload any) error

	// Run keeps the channel connected until ctx is cancelled or Close is called.
	Run(ctx context.Context) error
	Close() error
}
