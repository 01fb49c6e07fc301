package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/remotemic/pkg/audio/registry"
)

type Recorder struct {
	RecorderPCM
}

func NewRecorder(recorderPCM RecorderPCM) *Recorder {
	return &Recorder{
		RecorderPCM: recorderPCM,
	}
}

var (
	lastSuccessfulRecorderFactory       registry.RecorderPCMFactory
	lastSuccessfulRecorderFactoryLocker sync.Mutex
)

func getLastSuccessfulRecorderFactory() registry.RecorderPCMFactory {
	lastSuccessfulRecorderFactoryLocker.Lock()
	defer lastSuccessfulRecorderFactoryLocker.Unlock()
	return lastSuccessfulRecorderFactory
}

func setLastSuccessfulRecorderFactory(factory registry.RecorderPCMFactory) {
	lastSuccessfulRecorderFactoryLocker.Lock()
	defer lastSuccessfulRecorderFactoryLocker.Unlock()
	lastSuccessfulRecorderFactory = factory
}

// NewRecorderAuto returns a recorder of the highest priority backend that
// could be initialized and pinged. If none works, a dummy recorder is returned.
func NewRecorderAuto(
	ctx context.Context,
) *Recorder {
	recorder, err := newRecorderAuto(ctx, registry.RecorderFactories())
	if err != nil {
		logger.Warnf(ctx, "was unable to initialize any PCM recorder: %v", err)
		return NewRecorder(RecorderPCMDummy{})
	}
	return recorder
}

func newRecorderAuto(
	ctx context.Context,
	factories []registry.RecorderPCMFactory,
) (*Recorder, error) {
	if factory := getLastSuccessfulRecorderFactory(); factory != nil {
		recorder, err := factory.NewRecorderPCM()
		if err == nil {
			if err := recorder.Ping(ctx); err == nil {
				return NewRecorder(recorder), nil
			}
			recorder.Close()
		}
	}

	var mErr *multierror.Error
	for _, factory := range factories {
		recorder, err := factory.NewRecorderPCM()
		logger.Debugf(ctx, "initializing recorder %T result is %v", factory, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", factory, err))
			continue
		}

		err = recorder.Ping(ctx)
		logger.Debugf(ctx, "pinging PCM recorder %T result is %v", recorder, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping %T: %w", recorder, err))
			recorder.Close()
			continue
		}

		setLastSuccessfulRecorderFactory(factory)
		return NewRecorder(recorder), nil
	}

	if err := mErr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no PCM recorder backends are registered")
}

// IsDummy reports if no real backend is behind the recorder.
func (a *Recorder) IsDummy() bool {
	_, ok := a.RecorderPCM.(RecorderPCMDummy)
	return ok
}
