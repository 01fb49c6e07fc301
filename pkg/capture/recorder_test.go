package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/remotemic/pkg/audio"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
	"github.com/xaionaro-go/remotemic/pkg/capability"
	"github.com/xaionaro-go/remotemic/pkg/clip"
	"github.com/xaionaro-go/remotemic/pkg/permission"
)

var testFormat = clip.Format{
	SampleRate: 1000,
	Channels:   1,
	PCMFormat:  types.PCMFormatS16LE,
}

// fakeRecorderPCM writes the prepared chunks into the writer as soon as the
// recording is started.
type fakeRecorderPCM struct {
	chunks   [][]byte
	startErr error
	streams  int
	closed   int
}

func (r *fakeRecorderPCM) Close() error { return nil }

func (r *fakeRecorderPCM) Ping(context.Context) error { return nil }

func (r *fakeRecorderPCM) RecordPCM(
	_ context.Context,
	_ types.SampleRate,
	_ types.Channel,
	_ types.PCMFormat,
	w io.Writer,
) (types.RecordStream, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.streams++
	for _, chunk := range r.chunks {
		n, err := w.Write(chunk)
		if err != nil || n != len(chunk) {
			return nil, errors.New("short write")
		}
	}
	return &fakeRecordStream{recorder: r}, nil
}

type fakeRecordStream struct {
	recorder *fakeRecorderPCM
}

func (s *fakeRecordStream) Close() error {
	s.recorder.closed++
	return nil
}

func pcmOfSamples(samples ...int16) []byte {
	result := make([]byte, len(samples)*2)
	for idx, v := range samples {
		binary.LittleEndian.PutUint16(result[idx*2:], uint16(v))
	}
	return result
}

var grant = &capability.Grant{Source: "test"}

func TestRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("start_stop", func(t *testing.T) {
		dir := t.TempDir()
		pcm := &fakeRecorderPCM{chunks: [][]byte{pcmOfSamples(1, 2, 3), pcmOfSamples(-4, 5)}}
		r := NewRecorder(pcm, testFormat, dir, time.Second)

		h, err := r.Start(ctx, grant)
		require.NoError(t, err)
		require.True(t, r.IsRecording())

		_, err = r.Start(ctx, grant)
		require.ErrorIs(t, err, ErrAlreadyRecording)

		rec, err := r.Stop(ctx, h)
		require.NoError(t, err)
		require.False(t, r.IsRecording())
		require.Equal(t, h.ID(), rec.ID)
		require.Equal(t, filepath.Join(dir, h.ID().String()+".wav"), rec.SourceURI)
		require.Equal(t, 1, pcm.closed)

		decoded, format, err := clip.DecodeWAV(rec.Bytes)
		require.NoError(t, err)
		require.Equal(t, testFormat, format)
		require.Equal(t, pcmOfSamples(1, 2, 3, -4, 5), decoded, spew.Sdump(rec))

		_, err = r.Stop(ctx, h)
		require.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("single_file_kept", func(t *testing.T) {
		dir := t.TempDir()
		r := NewRecorder(&fakeRecorderPCM{chunks: [][]byte{pcmOfSamples(7)}}, testFormat, dir, time.Second)

		var paths []string
		for i := 0; i < 3; i++ {
			h, err := r.Start(ctx, grant)
			require.NoError(t, err)
			rec, err := r.Stop(ctx, h)
			require.NoError(t, err)
			paths = append(paths, rec.SourceURI)
		}

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, filepath.Base(paths[2]), entries[0].Name())
	})

	t.Run("overflow_is_dropped", func(t *testing.T) {
		// 10ms of 1kHz mono S16LE is 10 samples
		r := NewRecorder(&fakeRecorderPCM{chunks: [][]byte{
			pcmOfSamples(1, 2, 3, 4, 5, 6, 7, 8),
			pcmOfSamples(9, 10, 11, 12),
		}}, testFormat, t.TempDir(), 10*time.Millisecond)

		h, err := r.Start(ctx, grant)
		require.NoError(t, err)
		rec, err := r.Stop(ctx, h)
		require.NoError(t, err)

		decoded, _, err := clip.DecodeWAV(rec.Bytes)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(decoded), 20)
		assert.Equal(t, pcmOfSamples(1, 2, 3, 4, 5, 6, 7, 8), decoded[:16])
	})

	t.Run("no_grant", func(t *testing.T) {
		pcm := &fakeRecorderPCM{}
		r := NewRecorder(pcm, testFormat, t.TempDir(), time.Second)
		_, err := r.Start(ctx, nil)
		require.ErrorIs(t, err, permission.ErrDenied)
		require.Zero(t, pcm.streams)
	})

	t.Run("start_failure", func(t *testing.T) {
		r := NewRecorder(&fakeRecorderPCM{startErr: errors.New("device busy")}, testFormat, t.TempDir(), time.Second)
		_, err := r.Start(ctx, grant)
		require.Error(t, err)
		require.False(t, r.IsRecording())
	})

	t.Run("close_discards", func(t *testing.T) {
		dir := t.TempDir()
		pcm := &fakeRecorderPCM{chunks: [][]byte{pcmOfSamples(1)}}
		r := NewRecorder(pcm, testFormat, dir, time.Second)
		h, err := r.Start(ctx, grant)
		require.NoError(t, err)
		require.NoError(t, h.Close())
		require.NoError(t, h.Close())
		require.Equal(t, 1, pcm.closed)
		require.False(t, r.IsRecording())

		_, err = r.Stop(ctx, h)
		require.ErrorIs(t, err, ErrNotActive)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("foreign_handle", func(t *testing.T) {
		r := NewRecorder(audio.RecorderPCMDummy{}, testFormat, t.TempDir(), time.Second)
		_, err := r.Stop(ctx, nil)
		require.ErrorIs(t, err, ErrNotActive)
	})
}
