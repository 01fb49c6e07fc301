package clip

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

// Load creates a clip from an existing file. A WAV file is used as is,
// an Ogg Vorbis file is transcoded into a new WAV file inside tmpDir.
func Load(
	ctx context.Context,
	path string,
	tmpDir string,
) (*Clip, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read '%s': %w", path, err)
		}
		_, format, err := DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("unable to decode '%s': %w", path, err)
		}
		return New(uuid.New(), data, path, format), nil
	case ".ogg", ".oga":
		return loadVorbis(ctx, path, tmpDir)
	default:
		return nil, fmt.Errorf("unsupported file extension '%s'", ext)
	}
}

func loadVorbis(
	ctx context.Context,
	path string,
	tmpDir string,
) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	samples, vorbisFormat, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode Vorbis from '%s': %w", path, err)
	}
	logger.Debugf(ctx, "decoded %d Vorbis samples (%dHz, %dch) from '%s'", len(samples), vorbisFormat.SampleRate, vorbisFormat.Channels, path)

	format := Format{
		SampleRate: types.SampleRate(vorbisFormat.SampleRate),
		Channels:   types.Channel(vorbisFormat.Channels),
		PCMFormat:  types.PCMFormatS16LE,
	}
	id := uuid.New()
	wavPath := filepath.Join(tmpDir, id.String()+".wav")
	if err := WriteWAVFile(wavPath, float32ToS16LE(samples), format); err != nil {
		return nil, fmt.Errorf("unable to store the transcoded clip: %w", err)
	}
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read back '%s': %w", wavPath, err)
	}
	return New(id, data, wavPath, format), nil
}

func float32ToS16LE(samples []float32) []byte {
	result := make([]byte, len(samples)*2)
	for idx, v := range samples {
		v = float32(math.Max(-1, math.Min(1, float64(v))))
		binary.LittleEndian.PutUint16(result[idx*2:], uint16(int16(math.Round(float64(v)*math.MaxInt16))))
	}
	return result
}
