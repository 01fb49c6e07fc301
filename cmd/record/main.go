package main

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/remotemic/pkg/audio"
	_ "github.com/xaionaro-go/remotemic/pkg/audio/backends/portaudio"
	"github.com/xaionaro-go/remotemic/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/remotemic/pkg/clip"
)

type lockedBuffer struct {
	locker sync.Mutex
	buf    bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.locker.Lock()
	defer b.locker.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.locker.Lock()
	defer b.locker.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	duration := pflag.Duration("duration", 5*time.Second, "How long to record")
	sampleRate := pflag.Uint32("sample-rate", 44100, "Sample rate")
	channels := pflag.Uint16("channels", 2, "Channel count")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to the output WAV file")
	}
	filePath := pflag.Arg(0)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	format := clip.Format{
		SampleRate: audio.SampleRate(*sampleRate),
		Channels:   audio.Channel(*channels),
		PCMFormat:  audio.PCMFormatS16LE,
	}

	logger.Infof(ctx, "starting...")
	recorder := audio.NewRecorderAuto(ctx)
	defer recorder.Close()
	if recorder.IsDummy() {
		panic("no working audio input")
	}

	var buf lockedBuffer
	wc := datacounter.NewWriterCounter(&buf)
	logger.Tracef(ctx, "recorder.RecordPCM")
	streamRecord, err := recorder.RecordPCM(ctx, format.SampleRate, format.Channels, format.PCMFormat, wc)
	logger.Tracef(ctx, "/recorder.RecordPCM: %v", err)
	assertNoError(err)

	observability.Go(ctx, func(ctx context.Context) {
		logger.Tracef(ctx, "started the traffic count printer loop")
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "recorded: %d bytes", wc.Count())
				if pulseStreamRecord, ok := streamRecord.(*pulseaudio.RecordStream); ok {
					logger.Debugf(ctx, "record stream status: running:%v, closed:%v, err:%v", pulseStreamRecord.Running(), pulseStreamRecord.Closed(), pulseStreamRecord.Error())
				}
			}
		}
	})

	select {
	case <-ctx.Done():
	case <-time.After(*duration):
	}
	assertNoError(streamRecord.Close())

	assertNoError(clip.WriteWAVFile(filePath, buf.Bytes(), format))
	logger.Infof(ctx, "recorded %d bytes of %s into '%s'", wc.Count(), format, filePath)
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
