package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/remotemic/pkg/audio"
	_ "github.com/xaionaro-go/remotemic/pkg/audio/backends/oto"
	_ "github.com/xaionaro-go/remotemic/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/remotemic/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/remotemic/pkg/capability"
	"github.com/xaionaro-go/remotemic/pkg/capture"
	"github.com/xaionaro-go/remotemic/pkg/clip"
	"github.com/xaionaro-go/remotemic/pkg/config"
	"github.com/xaionaro-go/remotemic/pkg/controlchannel/mqtt"
	"github.com/xaionaro-go/remotemic/pkg/controlchannel/socketio"
	"github.com/xaionaro-go/remotemic/pkg/notify"
	"github.com/xaionaro-go/remotemic/pkg/permission"
	"github.com/xaionaro-go/remotemic/pkg/playback"
	"github.com/xaionaro-go/remotemic/pkg/session"
	"github.com/xaionaro-go/remotemic/pkg/uploader"
	"golang.org/x/sync/errgroup"
)

const teardownTimeout = 5 * time.Second

func main() {
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	loggerLevel, err := cfg.LoggerLevel()
	assertNoError(err)

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logger.Errorf(ctx, "%v", err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.Infof(ctx, "starting...")
	if err := os.MkdirAll(cfg.ClipDir, 0o755); err != nil {
		return fmt.Errorf("unable to create the clip directory '%s': %w", cfg.ClipDir, err)
	}

	recorderPCM := audio.NewRecorderAuto(ctx)
	defer recorderPCM.Close()
	playerPCM := audio.NewPlayerAuto(ctx)
	defer playerPCM.Close()
	logger.Debugf(ctx, "recorder: %T, player: %T", recorderPCM.RecorderPCM, playerPCM.PlayerPCM)

	format := clip.Format{
		SampleRate: audio.SampleRate(cfg.SampleRate),
		Channels:   audio.Channel(cfg.Channels),
		PCMFormat:  audio.PCMFormatS16LE,
	}

	notifier := notify.Multi{notify.Log{}}
	if cfg.DesktopNotify {
		notifier = append(notifier, &notify.Desktop{})
	}

	player := playback.NewPlayer(playerPCM, audio.BufferSize)
	player.OutputFormat = &format

	controller := session.New(session.Dependencies{
		Recorder:   capture.NewRecorder(recorderPCM, format, cfg.ClipDir, cfg.MaxClipDuration),
		Permission: &permission.DeviceProbe{Device: recorderPCM},
		Uploader:   uploader.New(cfg.UploadURL, cfg.UploadTimeout),
		Player:     player,
		Notifier:   notifier,
	})

	if cfg.PreloadClip != "" {
		preloaded, err := clip.Load(ctx, cfg.PreloadClip, cfg.ClipDir)
		if err != nil {
			return fmt.Errorf("unable to preload '%s': %w", cfg.PreloadClip, err)
		}
		controller.SetClip(ctx, preloaded)
		logger.Infof(ctx, "preloaded %s", preloaded)
	}

	channel, err := newControlChannel(cfg)
	if err != nil {
		return err
	}
	unbind := session.BindControlChannel(channel, controller)

	if cfg.StdinCommands {
		observability.Go(ctx, func(ctx context.Context) {
			readCommands(ctx, os.Stdin, controller, channel)
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		return channel.Run(gctx)
	})
	err = g.Wait()
	logger.Infof(ctx, "shutting down: %v", err)

	unbind()
	if closeErr := channel.Close(); closeErr != nil {
		logger.Errorf(ctx, "unable to close the control channel: %v", closeErr)
	}
	teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	if closeErr := controller.Close(teardownCtx); closeErr != nil {
		logger.Errorf(ctx, "unable to close the session: %v", closeErr)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newControlChannel(cfg *config.Config) (capability.ControlChannel, error) {
	switch cfg.ControlTransport {
	case config.TransportSocketIO:
		c, err := socketio.New(cfg.ControlURL)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize the Socket.IO client: %w", err)
		}
		return c, nil
	case config.TransportMQTT:
		return mqtt.New(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			QoS:      1,
		}), nil
	default:
		return nil, fmt.Errorf("unknown control transport '%s'", cfg.ControlTransport)
	}
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
