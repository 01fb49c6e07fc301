package registry

import (
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type PlayerPCMFactory interface {
	NewPlayerPCM() (types.PlayerPCM, error)
}

var playerFactoryRegistry = newPriorityRegistry[PlayerPCMFactory]()

func RegisterPlayerFactory(
	priority int,
	playerPCMFactory PlayerPCMFactory,
) {
	playerFactoryRegistry.register("PlayerPCM", priority, playerPCMFactory)
}

func PlayerFactories() []PlayerPCMFactory {
	return playerFactoryRegistry.list()
}
