package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPCMFormat(t *testing.T) {
	for f := PCMFormatUndefined + 1; f < EndOfPCMFormat; f++ {
		t.Run(f.String(), func(t *testing.T) {
			parsed, err := ParsePCMFormat(f.String())
			require.NoError(t, err)
			require.Equal(t, f, parsed)
			require.NotZero(t, f.Size())
		})
	}

	_, err := ParsePCMFormat("s24be")
	require.Error(t, err)
}

func TestBytesForDuration(t *testing.T) {
	require.Equal(t, uint64(44100*2*2), BytesForDuration(44100, 2, PCMFormatS16LE, time.Second))
	require.Equal(t, uint64(4800*4), BytesForDuration(48000, 1, PCMFormatFloat32LE, 100*time.Millisecond))
	require.Zero(t, BytesForDuration(48000, 1, PCMFormatUndefined, time.Second))
}
