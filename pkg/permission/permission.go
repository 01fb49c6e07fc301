package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/remotemic/pkg/capability"
)

var ErrDenied = errors.New("permission to capture audio is denied")

type Pinger interface {
	Ping(context.Context) error
}

// DeviceProbe permits capturing only if the capture device responds.
type DeviceProbe struct {
	Device Pinger
}

var _ capability.PermissionRequester = (*DeviceProbe)(nil)

func (p *DeviceProbe) RequestCapture(ctx context.Context) (*capability.Grant, error) {
	logger.Debugf(ctx, "requesting a capture permission from the device")
	if err := p.Device.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: the capture device does not respond: %w", ErrDenied, err)
	}
	return &capability.Grant{
		Source:    "device",
		GrantedAt: time.Now(),
	}, nil
}

// Static permits or denies unconditionally.
type Static struct {
	Granted bool
}

var _ capability.PermissionRequester = Static{}

func (p Static) RequestCapture(context.Context) (*capability.Grant, error) {
	if !p.Granted {
		return nil, ErrDenied
	}
	return &capability.Grant{
		Source:    "static",
		GrantedAt: time.Now(),
	}, nil
}
