package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/iamcalledrob/circular"
)

// boundedSink accumulates the captured PCM up to a fixed capacity; the
// audio that does not fit is dropped (and counted), it never fails the
// capture.
type boundedSink struct {
	locker  sync.Mutex
	buffer  *circular.Buffer
	dropped uint64
}

var _ io.Writer = (*boundedSink)(nil)

func newBoundedSink(capacity uint64) *boundedSink {
	return &boundedSink{
		buffer: circular.NewBuffer(int(capacity)),
	}
}

func (s *boundedSink) Write(p []byte) (int, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	n, err := s.buffer.Write(p)
	switch {
	case err == nil:
	case errors.Is(err, circular.ErrNoSpace):
		if n < 0 {
			n = 0
		}
		s.dropped += uint64(len(p) - n)
	default:
		return n, fmt.Errorf("unable to write to the capture buffer: %w", err)
	}
	return len(p), nil
}

func (s *boundedSink) Dropped() uint64 {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.dropped
}

// Drain returns everything accumulated so far and empties the buffer.
func (s *boundedSink) Drain() ([]byte, error) {
	s.locker.Lock()
	defer s.locker.Unlock()

	var result []byte
	chunk := make([]byte, 64*1024)
	for {
		n, err := s.buffer.Read(chunk)
		if n > 0 {
			result = append(result, chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return result, nil
			}
			return result, fmt.Errorf("unable to read from the capture buffer: %w", err)
		}
		if n == 0 {
			return result, nil
		}
	}
}
