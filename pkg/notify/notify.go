package notify

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gen2brain/beeep"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/remotemic/pkg/capability"
)

// Desktop shows the warning as a desktop alert.
type Desktop struct {
	AppIcon string
}

var _ capability.Notifier = (*Desktop)(nil)

func (d *Desktop) Warn(ctx context.Context, title, message string) error {
	logger.Tracef(ctx, "beeep.Alert")
	err := beeep.Alert(title, message, d.AppIcon)
	logger.Tracef(ctx, "/beeep.Alert: %v", err)
	if err != nil {
		return fmt.Errorf("unable to show a desktop alert: %w", err)
	}
	return nil
}

// Log writes the warning to the logger.
type Log struct{}

var _ capability.Notifier = Log{}

func (Log) Warn(ctx context.Context, title, message string) error {
	logger.Warnf(ctx, "%s: %s", title, message)
	return nil
}

// Multi delivers the warning to every notifier, even if some of them fail.
type Multi []capability.Notifier

var _ capability.Notifier = Multi(nil)

func (m Multi) Warn(ctx context.Context, title, message string) error {
	var mErr *multierror.Error
	for _, n := range m {
		if err := n.Warn(ctx, title, message); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("%T: %w", n, err))
		}
	}
	return mErr.ErrorOrNil()
}
