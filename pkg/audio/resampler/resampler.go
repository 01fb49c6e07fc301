// Package resampler converts interleaved PCM between sample rates,
// channel layouts and sample formats on the fly.
package resampler

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

// distanceStep is the distance between two input frames on the common
// time axis; output frames are placed on the same axis.
const distanceStep = 10000

type Format struct {
	Channels   types.Channel
	SampleRate types.SampleRate
	PCMFormat  types.PCMFormat
}

func (f Format) frameSize() int {
	return int(f.PCMFormat.Size()) * int(f.Channels)
}

func (f Format) validate() error {
	if f.PCMFormat.Size() == 0 {
		return fmt.Errorf("unsupported PCM format %s", f.PCMFormat)
	}
	if f.Channels == 0 {
		return fmt.Errorf("zero channels")
	}
	if f.SampleRate == 0 {
		return fmt.Errorf("zero sample rate")
	}
	return nil
}

// Resampler is an io.Reader of PCM in the output format, reading PCM in
// the input format from the underlying reader. It picks the nearest
// following input frame for every output frame; a mono input is copied to
// every output channel and a multichannel input is averaged into a mono
// output.
type Resampler struct {
	locker    sync.Mutex
	inReader  io.Reader
	inFormat  Format
	outFormat Format

	inDistance      uint64
	outDistance     uint64
	outDistanceStep uint64

	buffer     []byte
	pending    []byte
	frame      []float64
	scratch    []byte
	outPending []byte
}

var _ io.Reader = (*Resampler)(nil)

func NewResampler(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
) (*Resampler, error) {
	if err := inFormat.validate(); err != nil {
		return nil, fmt.Errorf("invalid input format %#+v: %w", inFormat, err)
	}
	if err := outFormat.validate(); err != nil {
		return nil, fmt.Errorf("invalid output format %#+v: %w", outFormat, err)
	}
	if inFormat.Channels != outFormat.Channels && inFormat.Channels != 1 && outFormat.Channels != 1 {
		return nil, fmt.Errorf("do not know how to convert %d channels to %d", inFormat.Channels, outFormat.Channels)
	}
	return &Resampler{
		inReader:        inReader,
		inFormat:        inFormat,
		outFormat:       outFormat,
		outDistanceStep: uint64(float64(distanceStep) * float64(inFormat.SampleRate) / float64(outFormat.SampleRate)),
		frame:           make([]float64, inFormat.Channels),
		scratch:         make([]byte, outFormat.frameSize()),
	}, nil
}

// NeedsConversion reports whether the formats differ.
func NeedsConversion(in, out Format) bool {
	return in != out
}

func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	if len(r.outPending) > 0 {
		n := copy(p, r.outPending)
		r.outPending = r.outPending[n:]
		return n, nil
	}
	if len(p) >= len(r.scratch) {
		return r.read(p)
	}

	n, err := r.read(r.scratch)
	k := copy(p, r.scratch[:n])
	r.outPending = r.scratch[k:n]
	if len(r.outPending) > 0 {
		return k, nil
	}
	return k, err
}

func (r *Resampler) read(p []byte) (int, error) {
	inFrameSize := r.inFormat.frameSize()
	outFrameSize := r.outFormat.frameSize()
	maxOutFrames := len(p) / outFrameSize

	framesToRead := int(float64(maxOutFrames) * float64(r.inFormat.SampleRate) / float64(r.outFormat.SampleRate))
	if framesToRead == 0 {
		framesToRead = 1
	}
	want := framesToRead * inFrameSize
	if len(r.pending) > want {
		want = len(r.pending)
	}

	if cap(r.buffer) < want {
		r.buffer = make([]byte, want)
	}
	buf := r.buffer[:want]
	pendingLen := copy(buf, r.pending)
	var (
		n   int
		err error
	)
	if pendingLen < want {
		n, err = r.inReader.Read(buf[pendingLen:])
	}
	buf = buf[:pendingLen+n]
	framesRead := len(buf) / inFrameSize

	outFrames := 0
	src := 0
	for src < framesRead {
		if r.inDistance < r.outDistance {
			src++
			r.inDistance += distanceStep
			continue
		}
		if outFrames == maxOutFrames {
			break
		}
		r.decodeFrame(buf[src*inFrameSize:])
		for outFrames < maxOutFrames && r.outDistance <= r.inDistance {
			r.encodeFrame(p[outFrames*outFrameSize:])
			outFrames++
			r.outDistance += r.outDistanceStep
		}
		if r.outDistance <= r.inDistance {
			// the output is full, but this input frame is still needed
			break
		}
		src++
		r.inDistance += distanceStep
	}

	r.pending = append(r.pending[:0], buf[src*inFrameSize:]...)
	if err == io.EOF && len(r.pending) >= inFrameSize {
		err = nil
	}
	return outFrames * outFrameSize, err
}

func (r *Resampler) decodeFrame(b []byte) {
	sampleSize := int(r.inFormat.PCMFormat.Size())
	for ch := range r.frame {
		r.frame[ch] = decodeSample(r.inFormat.PCMFormat, b[ch*sampleSize:])
	}
}

func (r *Resampler) encodeFrame(b []byte) {
	sampleSize := int(r.outFormat.PCMFormat.Size())
	for ch := 0; ch < int(r.outFormat.Channels); ch++ {
		var v float64
		switch {
		case len(r.frame) == int(r.outFormat.Channels):
			v = r.frame[ch]
		case len(r.frame) == 1:
			v = r.frame[0]
		default:
			for _, s := range r.frame {
				v += s
			}
			v /= float64(len(r.frame))
		}
		encodeSample(r.outFormat.PCMFormat, b[ch*sampleSize:], v)
	}
}

func decodeSample(f types.PCMFormat, b []byte) float64 {
	switch f {
	case types.PCMFormatU8:
		return (float64(b[0]) - 128) / 128
	case types.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case types.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		panic(fmt.Sprintf("unsupported format: %v", f))
	}
}

func encodeSample(f types.PCMFormat, b []byte, v float64) {
	switch f {
	case types.PCMFormatU8:
		b[0] = byte(clamp(math.Round(v*128+128), 0, 255))
	case types.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(b, uint16(int16(clamp(math.Round(v*32768), -32768, 32767))))
	case types.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	default:
		panic(fmt.Sprintf("unsupported format: %v", f))
	}
}

func clamp(v, min, max float64) float64 {
	switch {
	case v < min:
		return min
	case v > max:
		return max
	default:
		return v
	}
}
