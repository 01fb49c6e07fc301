package portaudio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/remotemic/pkg/audio/types"
)

const (
	RecordBufferSize = time.Millisecond * 100
)

// RecordPCMStream reads PortAudio's input buffer in one goroutine and
// forwards the copy to Writer in another, so that a slow writer does not
// stall the device callback.
type RecordPCMStream struct {
	PortAudioStream *portaudio.Stream
	InputBuffer     []byte
	OutputBuffer    []byte
	Writer          io.Writer

	cancelFunc  context.CancelFunc
	waitGroup   sync.WaitGroup
	closeOnce   sync.Once
	closeErr    error
	readyCh     chan struct{}
	consumedCh  chan struct{}
	loopErr     error
	loopErrLock sync.Mutex
}

var _ types.RecordStream = (*RecordPCMStream)(nil)

func newRecordPCMStream[T any](
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
) (*RecordPCMStream, error) {
	framesPerBuffer := int(RecordBufferSize.Seconds() * float64(sampleRate))

	var sample T
	buf := make([]T, framesPerBuffer*int(channels))
	logger.Debugf(ctx, "newRecordPCMStream: %T, %d, %d %s(%d)", sample, sampleRate, channels, RecordBufferSize, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(int(channels), 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}

	ptr := unsafe.SliceData(buf)
	bytesBuf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(buf)*int(unsafe.Sizeof(sample)))

	logger.Debugf(ctx, "input bytes buffer size: %d", len(bytesBuf))
	return &RecordPCMStream{
		PortAudioStream: stream,
		InputBuffer:     bytesBuf,
		OutputBuffer:    make([]byte, len(bytesBuf)),
		readyCh:         make(chan struct{}),
		consumedCh:      make(chan struct{}),
	}, nil
}

func (s *RecordPCMStream) init(
	ctx context.Context,
	writer io.Writer,
) error {
	s.Writer = writer
	ctx, s.cancelFunc = context.WithCancel(ctx)

	err := s.PortAudioStream.Start()
	if err != nil {
		s.cancelFunc()
		return fmt.Errorf("unable to start the stream: %w", err)
	}

	s.waitGroup.Add(2)
	observability.Go(ctx, func(ctx context.Context) {
		defer s.waitGroup.Done()
		defer s.cancelFunc()
		s.setLoopErr(s.readerLoop(ctx))
	})
	observability.Go(ctx, func(ctx context.Context) {
		defer s.waitGroup.Done()
		defer s.cancelFunc()
		s.setLoopErr(s.writerLoop(ctx))
	})
	return nil
}

func (s *RecordPCMStream) setLoopErr(err error) {
	if err == nil {
		return
	}
	s.loopErrLock.Lock()
	defer s.loopErrLock.Unlock()
	if s.loopErr == nil {
		s.loopErr = err
	}
}

func (s *RecordPCMStream) readerLoop(
	ctx context.Context,
) (_ret error) {
	logger.Debugf(ctx, "readerLoop")
	defer func() { logger.Debugf(ctx, "/readerLoop: %v", _ret) }()
	defer close(s.readyCh)

	for {
		logger.Tracef(ctx, "Read")
		err := s.PortAudioStream.Read()
		logger.Tracef(ctx, "/Read: %v", err)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("unable to read: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case s.readyCh <- struct{}{}:
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.consumedCh:
		}
	}
}

func (s *RecordPCMStream) writerLoop(
	ctx context.Context,
) (_ret error) {
	logger.Debugf(ctx, "writerLoop")
	defer func() { logger.Debugf(ctx, "/writerLoop: %v", _ret) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-s.readyCh:
			if !ok {
				return nil
			}
		}
		copy(s.OutputBuffer, s.InputBuffer)
		select {
		case <-ctx.Done():
			return nil
		case s.consumedCh <- struct{}{}:
		}

		logger.Tracef(ctx, "Write")
		n, err := s.Writer.Write(s.OutputBuffer)
		logger.Tracef(ctx, "/Write: %d %v", n, err)
		if err != nil {
			return fmt.Errorf("unable to write: %w", err)
		}
		if n != len(s.OutputBuffer) {
			return fmt.Errorf("invalid write length: %d != %d", n, len(s.OutputBuffer))
		}
	}
}

func (s *RecordPCMStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancelFunc()
		abortErr := s.PortAudioStream.Abort()
		s.waitGroup.Wait()
		closeErr := s.PortAudioStream.Close()

		s.loopErrLock.Lock()
		defer s.loopErrLock.Unlock()
		switch {
		case s.loopErr != nil:
			s.closeErr = s.loopErr
		case abortErr != nil:
			s.closeErr = fmt.Errorf("unable to abort the stream: %w", abortErr)
		case closeErr != nil:
			s.closeErr = fmt.Errorf("unable to close the stream: %w", closeErr)
		}
	})
	return s.closeErr
}
