package clip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

const wavFormatPCM = 1

// EncodeWAV writes interleaved S16LE PCM as a WAV container. A trailing
// incomplete frame is dropped.
func EncodeWAV(
	w io.WriteSeeker,
	pcm []byte,
	format Format,
) error {
	if format.PCMFormat != types.PCMFormatS16LE {
		return fmt.Errorf("only %s could be stored in WAV, got %s", types.PCMFormatS16LE, format.PCMFormat)
	}
	if format.Channels == 0 || format.SampleRate == 0 {
		return fmt.Errorf("invalid format %s", format)
	}

	frameSize := int(format.FrameSize())
	pcm = pcm[:len(pcm)/frameSize*frameSize]

	samples := make([]int, len(pcm)/2)
	for idx := range samples {
		samples[idx] = int(int16(binary.LittleEndian.Uint16(pcm[idx*2:])))
	}

	enc := wav.NewEncoder(w, int(format.SampleRate), int(format.PCMFormat.BitDepth()), int(format.Channels), wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: int(format.Channels),
			SampleRate:  int(format.SampleRate),
		},
		Data:           samples,
		SourceBitDepth: int(format.PCMFormat.BitDepth()),
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("unable to write the samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV container: %w", err)
	}
	return nil
}

// WriteWAVFile stores the PCM into a new WAV file at path.
func WriteWAVFile(
	path string,
	pcm []byte,
	format Format,
) (_err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create file '%s': %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil && _err == nil {
			_err = fmt.Errorf("unable to close file '%s': %w", path, err)
		}
	}()
	return EncodeWAV(f, pcm, format)
}

// DecodeWAV parses a WAV container and returns its samples as
// interleaved S16LE PCM.
func DecodeWAV(data []byte) ([]byte, Format, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, Format{}, fmt.Errorf("not a valid WAV container")
	}
	if d.BitDepth != 16 {
		return nil, Format{}, fmt.Errorf("only 16-bit WAV is supported, got %d bits", d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("unable to read the samples: %w", err)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for idx, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[idx*2:], uint16(int16(v)))
	}
	return pcm, Format{
		SampleRate: types.SampleRate(d.SampleRate),
		Channels:   types.Channel(d.NumChans),
		PCMFormat:  types.PCMFormatS16LE,
	}, nil
}

// DecodePCM returns the clip's samples as interleaved S16LE PCM.
func DecodePCM(c *Clip) ([]byte, Format, error) {
	return DecodeWAV(c.data)
}
