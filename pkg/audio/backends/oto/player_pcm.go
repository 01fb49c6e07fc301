package oto

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type PlayerPCM struct{}

var _ types.PlayerPCM = (*PlayerPCM)(nil)

func NewPlayerPCM() *PlayerPCM {
	return &PlayerPCM{}
}

func (p *PlayerPCM) Close() error {
	return nil
}

func (*PlayerPCM) Ping(context.Context) error {
	// do not know how to do that without initializing the context, yet
	return nil
}

func (p *PlayerPCM) PlayPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (types.PlayStream, error) {
	otoCtx, err := getOtoContext(contextFormat{
		SampleRate: sampleRate,
		Channels:   channels,
		PCMFormat:  format,
		BufferSize: bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get an oto context: %w", err)
	}

	player := otoCtx.NewPlayer(reader)
	logger.Debugf(ctx, "starting an oto player")
	player.Play()
	return newStream(player), nil
}
