package types

import (
	"io"
)

type Stream interface {
	io.Closer
}

// PlayStream is a started playback. It could be paused and resumed, and
// it stops playing by itself when the reader is exhausted.
type PlayStream interface {
	Stream
	Drain() error
	Pause() error
	Resume() error
	IsPlaying() bool
}

type RecordStream interface {
	Stream
}
