package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/remotemic/pkg/audio"
	_ "github.com/xaionaro-go/remotemic/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/remotemic/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/remotemic/pkg/clip"
	"github.com/xaionaro-go/remotemic/pkg/playback"
)

func main() {
	loggerLevel := logger.LevelInfo
	pflag.Var(&loggerLevel, "log-level", "Log level")
	pflag.Parse()

	if pflag.NArg() != 1 {
		panic("expected exactly one positional argument: path to a .wav or .ogg file")
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

	logger.Infof(ctx, "starting...")
	c, err := clip.Load(ctx, filePath, os.TempDir())
	assertNoError(err)

	player := audio.NewPlayerAuto(ctx)
	defer player.Close()

	handle, err := playback.NewPlayer(player, audio.BufferSize).Create(ctx, c)
	assertNoError(err)
	defer func() {
		assertNoError(handle.Release())
	}()
	assertNoError(handle.Play(ctx))
	logger.Infof(ctx, "playing %s via %T; press Enter to pause/resume", c, player.PlayerPCM)

	toggles := make(chan struct{})
	observability.Go(ctx, func(ctx context.Context) {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case toggles <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	})

	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-toggles:
			status, err := handle.Status(ctx)
			assertNoError(err)
			if status.Playing {
				assertNoError(handle.Pause(ctx))
				logger.Infof(ctx, "paused")
			} else {
				assertNoError(handle.Play(ctx))
				logger.Infof(ctx, "resumed")
			}
		case <-t.C:
			status, err := handle.Status(ctx)
			assertNoError(err)
			if status.Finished {
				logger.Infof(ctx, "finished")
				return
			}
		}
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
