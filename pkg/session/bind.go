package session

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/remotemic/pkg/capability"
)

// BindControlChannel forwards mic_on and mic_off from the channel to the
// controller queue. The returned function removes the listeners.
func BindControlChannel(
	ch capability.ControlChannel,
	c *Controller,
) (unbind func()) {
	handler := func(ctx context.Context, name string, _ []byte) {
		ev, ok := ParseSignal(name)
		if !ok {
			logger.Debugf(ctx, "ignoring message %q", name)
			return
		}
		logger.Infof(ctx, "received %s", name)
		if err := c.Enqueue(ctx, ev); err != nil {
			logger.Errorf(ctx, "unable to enqueue %s: %v", ev, err)
		}
	}
	ch.OnMessage(SignalMicOn, handler)
	ch.OnMessage(SignalMicOff, handler)
	return func() {
		ch.Off(SignalMicOn)
		ch.Off(SignalMicOff)
	}
}
