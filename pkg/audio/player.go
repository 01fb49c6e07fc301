package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/remotemic/pkg/audio/registry"
)

const BufferSize = 100 * time.Millisecond

type Player struct {
	PlayerPCM
}

func NewPlayer(playerPCM PlayerPCM) *Player {
	return &Player{
		PlayerPCM: playerPCM,
	}
}

var (
	lastSuccessfulPlayerFactory       registry.PlayerPCMFactory
	lastSuccessfulPlayerFactoryLocker sync.Mutex
)

func getLastSuccessfulPlayerFactory() registry.PlayerPCMFactory {
	lastSuccessfulPlayerFactoryLocker.Lock()
	defer lastSuccessfulPlayerFactoryLocker.Unlock()
	return lastSuccessfulPlayerFactory
}

func setLastSuccessfulPlayerFactory(factory registry.PlayerPCMFactory) {
	lastSuccessfulPlayerFactoryLocker.Lock()
	defer lastSuccessfulPlayerFactoryLocker.Unlock()
	lastSuccessfulPlayerFactory = factory
}

// NewPlayerAuto returns a player of the highest priority backend that
// could be initialized and pinged. If none works, a dummy player is returned.
func NewPlayerAuto(
	ctx context.Context,
) *Player {
	player, err := newPlayerAuto(ctx, registry.PlayerFactories())
	if err != nil {
		logger.Warnf(ctx, "was unable to initialize any PCM player: %v", err)
		return NewPlayer(PlayerPCMDummy{})
	}
	return player
}

func newPlayerAuto(
	ctx context.Context,
	factories []registry.PlayerPCMFactory,
) (*Player, error) {
	if factory := getLastSuccessfulPlayerFactory(); factory != nil {
		player, err := factory.NewPlayerPCM()
		if err == nil {
			if err := player.Ping(ctx); err == nil {
				return NewPlayer(player), nil
			}
			player.Close()
		}
	}

	var mErr *multierror.Error
	for _, factory := range factories {
		player, err := factory.NewPlayerPCM()
		logger.Debugf(ctx, "initializing player %T result is %v", factory, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", factory, err))
			continue
		}

		err = player.Ping(ctx)
		logger.Debugf(ctx, "pinging PCM player %T result is %v", player, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping %T: %w", player, err))
			player.Close()
			continue
		}

		setLastSuccessfulPlayerFactory(factory)
		return NewPlayer(player), nil
	}

	if err := mErr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no PCM player backends are registered")
}
