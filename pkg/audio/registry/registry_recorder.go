package registry

import (
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type RecorderPCMFactory interface {
	NewRecorderPCM() (types.RecorderPCM, error)
}

var recorderFactoryRegistry = newPriorityRegistry[RecorderPCMFactory]()

func RegisterRecorderFactory(
	priority int,
	recorderPCMFactory RecorderPCMFactory,
) {
	recorderFactoryRegistry.register("RecorderPCM", priority, recorderPCMFactory)
}

func RecorderFactories() []RecorderPCMFactory {
	return recorderFactoryRegistry.list()
}
