package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/remotemic/pkg/audio/resampler"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
	"github.com/xaionaro-go/remotemic/pkg/capability"
	"github.com/xaionaro-go/remotemic/pkg/clip"
)

var ErrReleased = errors.New("the playback handle is released")

type Player struct {
	PCM        types.PlayerPCM
	BufferSize time.Duration

	// OutputFormat, if set, is the only format the device is opened with;
	// clips of other formats are converted on the fly.
	OutputFormat *clip.Format
}

var _ capability.Player = (*Player)(nil)

func NewPlayer(pcm types.PlayerPCM, bufferSize time.Duration) *Player {
	return &Player{
		PCM:        pcm,
		BufferSize: bufferSize,
	}
}

func (p *Player) Create(
	ctx context.Context,
	c *clip.Clip,
) (capability.PlaybackHandle, error) {
	pcm, format, err := clip.DecodePCM(c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", c, err)
	}
	logger.Debugf(ctx, "created a playback handle for %s", c)
	return &Handle{
		player: p,
		clip:   c,
		pcm:    pcm,
		format: format,
	}, nil
}

// Handle plays a single clip. The PCM stream is opened on the first Play,
// and reopened from the beginning if the clip was played till the end.
type Handle struct {
	locker   sync.Mutex
	player   *Player
	clip     *clip.Clip
	pcm      []byte
	format   clip.Format
	stream   types.PlayStream
	reader   *eofReader
	paused   bool
	released bool
}

var _ capability.PlaybackHandle = (*Handle)(nil)

func (h *Handle) Clip() *clip.Clip {
	return h.clip
}

func (h *Handle) isFinished() bool {
	return h.stream != nil && !h.paused && h.reader.EOF() && !h.stream.IsPlaying()
}

func (h *Handle) Play(ctx context.Context) error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return ErrReleased
	}

	if h.stream != nil && !h.isFinished() {
		logger.Debugf(ctx, "resuming %s", h.clip)
		if err := h.stream.Resume(); err != nil {
			return fmt.Errorf("unable to resume: %w", err)
		}
		h.paused = false
		return nil
	}

	if h.stream != nil {
		if err := h.stream.Close(); err != nil {
			logger.Warnf(ctx, "unable to close the finished stream of %s: %v", h.clip, err)
		}
		h.stream = nil
	}

	logger.Debugf(ctx, "playing %s", h.clip)
	reader := &eofReader{Reader: bytes.NewReader(h.pcm)}
	src, format, err := h.player.convert(reader, h.format)
	if err != nil {
		return err
	}
	stream, err := h.player.PCM.PlayPCM(
		ctx,
		format.SampleRate,
		format.Channels,
		format.PCMFormat,
		h.player.BufferSize,
		src,
	)
	if err != nil {
		return fmt.Errorf("unable to start playing: %w", err)
	}
	h.stream = stream
	h.reader = reader
	h.paused = false
	return nil
}

func (h *Handle) Pause(ctx context.Context) error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return ErrReleased
	}
	if h.stream == nil {
		return nil
	}
	logger.Debugf(ctx, "pausing %s", h.clip)
	if err := h.stream.Pause(); err != nil {
		return fmt.Errorf("unable to pause: %w", err)
	}
	h.paused = true
	return nil
}

func (h *Handle) Status(context.Context) (capability.PlaybackStatus, error) {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return capability.PlaybackStatus{}, ErrReleased
	}
	if h.stream == nil {
		return capability.PlaybackStatus{}, nil
	}
	return capability.PlaybackStatus{
		Playing:  h.stream.IsPlaying(),
		Finished: h.isFinished(),
	}, nil
}

func (h *Handle) Release() error {
	h.locker.Lock()
	defer h.locker.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	if h.stream == nil {
		return nil
	}
	err := h.stream.Close()
	h.stream = nil
	if err != nil {
		return fmt.Errorf("unable to close the stream: %w", err)
	}
	return nil
}

func (p *Player) convert(r io.Reader, format clip.Format) (io.Reader, clip.Format, error) {
	if p.OutputFormat == nil {
		return r, format, nil
	}
	in := resampler.Format{Channels: format.Channels, SampleRate: format.SampleRate, PCMFormat: format.PCMFormat}
	out := resampler.Format{Channels: p.OutputFormat.Channels, SampleRate: p.OutputFormat.SampleRate, PCMFormat: p.OutputFormat.PCMFormat}
	if !resampler.NeedsConversion(in, out) {
		return r, format, nil
	}
	converted, err := resampler.NewResampler(in, r, out)
	if err != nil {
		return nil, clip.Format{}, fmt.Errorf("unable to convert %s to %s: %w", format, *p.OutputFormat, err)
	}
	return converted, *p.OutputFormat, nil
}

type eofReader struct {
	io.Reader
	eof atomic.Bool
}

func (r *eofReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if errors.Is(err, io.EOF) {
		r.eof.Store(true)
	}
	return n, err
}

func (r *eofReader) EOF() bool {
	return r.eof.Load()
}
