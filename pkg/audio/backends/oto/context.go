package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

// contextFormat is the format the process-wide oto context was created with.
type contextFormat struct {
	SampleRate types.SampleRate
	Channels   types.Channel
	PCMFormat  types.PCMFormat
	BufferSize time.Duration
}

var (
	otoContextLocker sync.Mutex
	otoContext       *oto.Context
	otoContextFormat contextFormat
)

func otoFormat(pcmFormat types.PCMFormat) (oto.Format, error) {
	switch pcmFormat {
	case types.PCMFormatU8:
		return oto.FormatUnsignedInt8, nil
	case types.PCMFormatS16LE:
		return oto.FormatSignedInt16LE, nil
	case types.PCMFormatFloat32LE:
		return oto.FormatFloat32LE, nil
	default:
		return 0, fmt.Errorf("oto does not support format %s", pcmFormat)
	}
}

// getOtoContext returns the oto context, initializing it on the first call.
// oto allows only one context per process, so every later call must
// request the same format.
func getOtoContext(format contextFormat) (*oto.Context, error) {
	otoContextLocker.Lock()
	defer otoContextLocker.Unlock()

	if otoContext != nil {
		if format != otoContextFormat {
			return nil, fmt.Errorf("the oto context is already initialized with %#+v, cannot switch to %#+v", otoContextFormat, format)
		}
		return otoContext, nil
	}

	f, err := otoFormat(format.PCMFormat)
	if err != nil {
		return nil, err
	}
	ctx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(format.SampleRate),
		ChannelCount: int(format.Channels),
		Format:       f,
		BufferSize:   format.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to initialize an oto context: %w", err)
	}
	<-readyChan

	otoContext = ctx
	otoContextFormat = format
	return otoContext, nil
}
