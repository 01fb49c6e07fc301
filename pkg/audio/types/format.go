package types

import (
	"fmt"
	"time"
)

type SampleRate uint32

type Channel uint16

type PCMFormat uint

const (
	PCMFormatUndefined = PCMFormat(iota)
	PCMFormatU8
	PCMFormatS16LE
	PCMFormatFloat32LE
	EndOfPCMFormat
)

func (f PCMFormat) String() string {
	switch f {
	case PCMFormatUndefined:
		return "undefined"
	case PCMFormatU8:
		return "u8"
	case PCMFormatS16LE:
		return "s16le"
	case PCMFormatFloat32LE:
		return "f32le"
	default:
		return fmt.Sprintf("unknown_format_%d", uint(f))
	}
}

// Size returns the size of a single sample of a single channel, in bytes.
func (f PCMFormat) Size() uint {
	switch f {
	case PCMFormatU8:
		return 1
	case PCMFormatS16LE:
		return 2
	case PCMFormatFloat32LE:
		return 4
	default:
		return 0
	}
}

// BitDepth returns the amount of bits per sample.
func (f PCMFormat) BitDepth() uint {
	return f.Size() * 8
}

func ParsePCMFormat(s string) (PCMFormat, error) {
	for f := PCMFormatUndefined + 1; f < EndOfPCMFormat; f++ {
		if f.String() == s {
			return f, nil
		}
	}
	return PCMFormatUndefined, fmt.Errorf("unknown PCM format '%s'", s)
}

// BytesForDuration returns the amount of bytes of interleaved PCM
// required to store the given duration of audio (rounded down to a whole frame).
func BytesForDuration(
	sampleRate SampleRate,
	channels Channel,
	format PCMFormat,
	duration time.Duration,
) uint64 {
	frameSize := uint64(format.Size()) * uint64(channels)
	frames := uint64(duration.Seconds() * float64(sampleRate))
	return frames * frameSize
}
