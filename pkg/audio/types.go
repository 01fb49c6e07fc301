package audio

import (
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

type (
	SampleRate   = types.SampleRate
	Channel      = types.Channel
	PCMFormat    = types.PCMFormat
	RecorderPCM  = types.RecorderPCM
	PlayerPCM    = types.PlayerPCM
	Stream       = types.Stream
	PlayStream   = types.PlayStream
	RecordStream = types.RecordStream
)

const (
	PCMFormatU8        = types.PCMFormatU8
	PCMFormatS16LE     = types.PCMFormatS16LE
	PCMFormatFloat32LE = types.PCMFormatFloat32LE
)
