package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/xaionaro-go/remotemic/pkg/permission"
)

// ErrPermissionDenied is the same error as permission.ErrDenied.
var ErrPermissionDenied = permission.ErrDenied

// CaptureError is a failure to start or stop the recorder.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("unable to %s capturing: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// UploadError is a failure to deliver a clip; the clip is still kept.
type UploadError struct {
	ClipID uuid.UUID
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("unable to upload clip %s: %v", e.ClipID, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// PlaybackError is a failure to create, play, pause or query the playback.
type PlaybackError struct {
	Op  string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("unable to %s the playback: %v", e.Op, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
