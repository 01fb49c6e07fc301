package audio

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNoDevice = errors.New("no audio device")

type PlayerPCMDummy struct{}

var _ PlayerPCM = PlayerPCMDummy{}

func (PlayerPCMDummy) Close() error {
	return nil
}

func (PlayerPCMDummy) Ping(context.Context) error {
	return nil
}

func (PlayerPCMDummy) PlayPCM(
	ctx context.Context,
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (PlayStream, error) {
	return StreamDummy{}, nil
}

type StreamDummy struct{}

var (
	_ PlayStream   = StreamDummy{}
	_ RecordStream = StreamDummy{}
)

func (StreamDummy) Drain() error {
	return nil
}

func (StreamDummy) Close() error {
	return nil
}

func (StreamDummy) Pause() error {
	return nil
}

func (StreamDummy) Resume() error {
	return nil
}

func (StreamDummy) IsPlaying() bool {
	return false
}
