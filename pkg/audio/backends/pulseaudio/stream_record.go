package pulseaudio

import (
	"fmt"

	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type RecordStream struct {
	*pulse.Client
	*pulse.RecordStream
}

var _ types.RecordStream = (*RecordStream)(nil)

func newRecordStream(
	client *pulse.Client,
	pulseStream *pulse.RecordStream,
) *RecordStream {
	return &RecordStream{
		Client:       client,
		RecordStream: pulseStream,
	}
}

func (stream *RecordStream) Close() (err error) {
	defer func() {
		r := recover()
		if r != nil {
			err = fmt.Errorf("got a panic: %v", r)
		}
	}()
	streamErr := stream.RecordStream.Error()
	stream.RecordStream.Stop()
	stream.RecordStream.Close()
	stream.Client.Close()
	if streamErr != nil {
		return fmt.Errorf("an error occurred during recording: %w", streamErr)
	}
	return
}
