package pulseaudio

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type RecorderPCM struct {
	PulseClient *pulse.Client
}

var _ types.RecorderPCM = (*RecorderPCM)(nil)

func NewRecorderPCM() (*RecorderPCM, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}
	return &RecorderPCM{
		PulseClient: c,
	}, nil
}

func (r *RecorderPCM) Close() error {
	r.PulseClient.Close()
	return nil
}

func (r *RecorderPCM) Ping(ctx context.Context) error {
	source, err := r.PulseClient.DefaultSource()
	if err != nil {
		return fmt.Errorf("unable to get the default source: %w", err)
	}
	logger.Debugf(ctx, "default source: %s", source.Name())
	return nil
}

// RecordPCM opens a dedicated Pulse client for the stream, so that closing
// the stream never affects the client used for pinging.
func (r *RecorderPCM) RecordPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	rawWriter io.Writer,
) (_ types.RecordStream, _err error) {
	logger.Debugf(ctx, "RecordPCM: %d, %d, %s", sampleRate, channels, format)
	defer func() { logger.Debugf(ctx, "/RecordPCM: %v", _err) }()

	f, err := pulseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a writer for Pulse: %w", err)
	}
	chanMap, err := channelMap(channels)
	if err != nil {
		return nil, err
	}

	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("unable to open a client to Pulse: %w", err)
	}

	stream, err := c.NewRecord(
		&pulseWriter{pulseFormat: f, Writer: rawWriter},
		pulse.RecordSampleRate(int(sampleRate)),
		pulse.RecordChannels(chanMap),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("unable to initialize a record stream: %w", err)
	}

	stream.Start()
	if stream.Error() != nil {
		stream.Close()
		c.Close()
		return nil, fmt.Errorf("an error occurred during recording: %w", stream.Error())
	}

	return newRecordStream(c, stream), nil
}

type pulseWriter struct {
	pulseFormat byte
	io.Writer
}

var _ pulse.Writer = (*pulseWriter)(nil)

func (w *pulseWriter) Format() byte {
	return w.pulseFormat
}
