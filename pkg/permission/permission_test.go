package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func TestDeviceProbe(t *testing.T) {
	ctx := context.Background()

	grant, err := (&DeviceProbe{Device: pingerFunc(func(context.Context) error { return nil })}).RequestCapture(ctx)
	require.NoError(t, err)
	require.Equal(t, "device", grant.Source)
	require.False(t, grant.GrantedAt.IsZero())

	noSource := errors.New("no default source")
	grant, err = (&DeviceProbe{Device: pingerFunc(func(context.Context) error { return noSource })}).RequestCapture(ctx)
	require.Nil(t, grant)
	require.ErrorIs(t, err, ErrDenied)
	require.ErrorIs(t, err, noSource)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	grant, err := Static{Granted: true}.RequestCapture(ctx)
	require.NoError(t, err)
	require.NotNil(t, grant)

	grant, err = Static{}.RequestCapture(ctx)
	require.Nil(t, grant)
	require.ErrorIs(t, err, ErrDenied)
}
