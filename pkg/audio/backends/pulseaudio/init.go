package pulseaudio

import (
	"github.com/xaionaro-go/remotemic/pkg/audio/registry"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

const (
	Priority = 100
)

func init() {
	registry.RegisterPlayerFactory(Priority, PlayerPCMPulseFactory{})
	registry.RegisterRecorderFactory(Priority, RecorderPCMPulseFactory{})
}

type PlayerPCMPulseFactory struct{}

func (PlayerPCMPulseFactory) NewPlayerPCM() (types.PlayerPCM, error) {
	return NewPlayerPCM()
}

type RecorderPCMPulseFactory struct{}

func (RecorderPCMPulseFactory) NewRecorderPCM() (types.RecorderPCM, error) {
	return NewRecorderPCM()
}
