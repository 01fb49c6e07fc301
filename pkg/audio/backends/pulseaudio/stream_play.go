package pulseaudio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type PlayStream struct {
	*pulse.Client
	*pulse.PlaybackStream

	locker sync.Mutex
	paused bool
}

var _ types.PlayStream = (*PlayStream)(nil)

func newPlayStream(
	client *pulse.Client,
	pulseStream *pulse.PlaybackStream,
) *PlayStream {
	return &PlayStream{
		Client:         client,
		PlaybackStream: pulseStream,
	}
}

func (stream *PlayStream) Drain() error {
	stream.PlaybackStream.Drain()
	if stream.Error() != nil {
		return fmt.Errorf("an error occurred during playback: %w", stream.Error())
	}
	if stream.Underflow() {
		return fmt.Errorf("underflow")
	}
	return nil
}

func (stream *PlayStream) Pause() error {
	stream.locker.Lock()
	defer stream.locker.Unlock()
	if stream.paused {
		return nil
	}
	stream.PlaybackStream.Pause()
	stream.paused = true
	return stream.Error()
}

func (stream *PlayStream) Resume() error {
	stream.locker.Lock()
	defer stream.locker.Unlock()
	if !stream.paused {
		return nil
	}
	stream.PlaybackStream.Resume()
	stream.paused = false
	return stream.Error()
}

func (stream *PlayStream) IsPlaying() bool {
	stream.locker.Lock()
	defer stream.locker.Unlock()
	return !stream.paused && stream.Running()
}

func (stream *PlayStream) Close() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	stream.PlaybackStream.Stop()
	stream.PlaybackStream.Close()
	stream.Client.Close()
	return
}
