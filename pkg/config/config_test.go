package config

import (
	"testing"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/remotemic/pkg/capture"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, TransportSocketIO, cfg.ControlTransport)
	assert.Equal(t, DefaultControlURL, cfg.ControlURL)
	assert.Equal(t, DefaultUploadURL, cfg.UploadURL)
	assert.Equal(t, time.Duration(0), cfg.UploadTimeout)
	assert.Equal(t, uint32(44100), cfg.SampleRate)
	assert.Equal(t, uint16(2), cfg.Channels)
	assert.Equal(t, capture.DefaultMaxDuration, cfg.MaxClipDuration)
	assert.NotEmpty(t, cfg.ClipDir)
	assert.True(t, cfg.StdinCommands)

	level, err := cfg.LoggerLevel()
	require.NoError(t, err)
	assert.Equal(t, logger.LevelInfo, level)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("REMOTEMIC_UPLOAD_URL", "http://example.com/upload")
	t.Setenv("REMOTEMIC_UPLOAD_TIMEOUT", "30s")
	t.Setenv("REMOTEMIC_CHANNELS", "1")
	t.Setenv("REMOTEMIC_CONTROL_URL", "http://from-env:3001")

	cfg, err := Load(newFlags(t, "--control-url", "http://from-flag:3001"))
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/upload", cfg.UploadURL)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Equal(t, uint16(1), cfg.Channels)
	assert.Equal(t, "http://from-flag:3001", cfg.ControlURL)
}

func TestLoadMQTT(t *testing.T) {
	cfg, err := Load(newFlags(t, "--control-transport", "mqtt", "--control-url", ""))
	require.NoError(t, err)
	assert.Equal(t, TransportMQTT, cfg.ControlTransport)
	assert.Equal(t, DefaultMQTTTopic, cfg.MQTTTopic)
}

func TestLoadInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"--control-transport", "carrier-pigeon"},
		{"--control-url", ""},
		{"--upload-url", "not a url"},
		{"--channels", "6"},
		{"--sample-rate", "100"},
		{"--max-clip-duration", "0s"},
		{"--log-level", "loud"},
		{"--control-transport", "mqtt", "--mqtt-topic", ""},
	} {
		_, err := Load(newFlags(t, args...))
		assert.Error(t, err, "%v", args)
	}
}
