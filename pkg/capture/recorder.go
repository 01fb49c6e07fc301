package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
	"github.com/xaionaro-go/remotemic/pkg/capability"
	"github.com/xaionaro-go/remotemic/pkg/clip"
	"github.com/xaionaro-go/remotemic/pkg/permission"
)

const DefaultMaxDuration = 2 * time.Minute

var (
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrNotActive        = errors.New("the recorder handle is not active")
)

// Recorder captures audio from a PCM recorder into WAV files. Only one
// capture could be active at a time, and only the latest produced file is
// kept on disk.
type Recorder struct {
	PCM         types.RecorderPCM
	Format      clip.Format
	Dir         string
	MaxDuration time.Duration

	locker   sync.Mutex
	active   *Handle
	lastPath string
}

var _ capability.Recorder = (*Recorder)(nil)

func NewRecorder(
	pcm types.RecorderPCM,
	format clip.Format,
	dir string,
	maxDuration time.Duration,
) *Recorder {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Recorder{
		PCM:         pcm,
		Format:      format,
		Dir:         dir,
		MaxDuration: maxDuration,
	}
}

type Handle struct {
	id        uuid.UUID
	recorder  *Recorder
	stream    types.RecordStream
	sink      *boundedSink
	counter   *datacounter.WriterCounter
	startedAt time.Time
}

var _ capability.RecorderHandle = (*Handle)(nil)

func (h *Handle) ID() uuid.UUID {
	return h.id
}

// Close releases the microphone and discards the captured audio.
func (h *Handle) Close() error {
	r := h.recorder
	r.locker.Lock()
	defer r.locker.Unlock()
	if r.active != h {
		return nil
	}
	r.active = nil
	if err := h.stream.Close(); err != nil {
		return fmt.Errorf("unable to close the record stream: %w", err)
	}
	return nil
}

func (r *Recorder) Start(
	ctx context.Context,
	grant *capability.Grant,
) (_ capability.RecorderHandle, _err error) {
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()

	if grant == nil {
		return nil, permission.ErrDenied
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if r.active != nil {
		return nil, ErrAlreadyRecording
	}

	capacity := types.BytesForDuration(r.Format.SampleRate, r.Format.Channels, r.Format.PCMFormat, r.MaxDuration)
	if capacity == 0 {
		return nil, fmt.Errorf("invalid capture format %s", r.Format)
	}
	h := &Handle{
		id:        uuid.New(),
		recorder:  r,
		sink:      newBoundedSink(capacity),
		startedAt: time.Now(),
	}
	h.counter = datacounter.NewWriterCounter(h.sink)

	logger.Tracef(ctx, "RecordPCM")
	stream, err := r.PCM.RecordPCM(ctx, r.Format.SampleRate, r.Format.Channels, r.Format.PCMFormat, h.counter)
	logger.Tracef(ctx, "/RecordPCM: %v", err)
	if err != nil {
		return nil, fmt.Errorf("unable to start recording: %w", err)
	}
	h.stream = stream
	r.active = h
	logger.Infof(ctx, "recording %s started (%s, up to %v)", h.id, r.Format, r.MaxDuration)
	return h, nil
}

func (r *Recorder) Stop(
	ctx context.Context,
	handle capability.RecorderHandle,
) (_ *capability.Recording, _err error) {
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop: %v", _err) }()

	h, ok := handle.(*Handle)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected handle type %T", ErrNotActive, handle)
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if h.recorder != r || r.active != h {
		return nil, ErrNotActive
	}
	r.active = nil

	if err := h.stream.Close(); err != nil {
		return nil, fmt.Errorf("unable to stop the record stream: %w", err)
	}

	pcm, err := h.sink.Drain()
	if err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "recording %s: captured %d bytes in %v, kept %d, dropped %d",
		h.id, h.counter.Count(), time.Since(h.startedAt), len(pcm), h.sink.Dropped())

	path := filepath.Join(r.Dir, h.id.String()+".wav")
	if err := clip.WriteWAVFile(path, pcm, r.Format); err != nil {
		return nil, fmt.Errorf("unable to save the recording: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read back the recording '%s': %w", path, err)
	}

	if r.lastPath != "" && r.lastPath != path {
		if err := os.Remove(r.lastPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf(ctx, "unable to remove the previous recording '%s': %v", r.lastPath, err)
		}
	}
	r.lastPath = path

	logger.Infof(ctx, "recording saved at: %s", path)
	return &capability.Recording{
		ID:        h.id,
		Bytes:     data,
		SourceURI: path,
		Format:    r.Format,
	}, nil
}

// IsRecording reports whether there is an active capture.
func (r *Recorder) IsRecording() bool {
	r.locker.Lock()
	defer r.locker.Unlock()
	return r.active != nil
}
