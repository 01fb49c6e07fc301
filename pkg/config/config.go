package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xaionaro-go/remotemic/pkg/capture"
)

// EnvPrefix prefixes the environment variables overriding the flags,
// e.g. REMOTEMIC_UPLOAD_URL overrides --upload-url.
const EnvPrefix = "REMOTEMIC"

const (
	TransportSocketIO = "socketio"
	TransportMQTT     = "mqtt"
)

const (
	DefaultControlURL   = "http://192.168.1.18:3001"
	DefaultUploadURL    = "http://192.168.1.3:5000/get_base64_audio"
	DefaultMQTTBroker   = "tcp://localhost:1883"
	DefaultMQTTTopic    = "remotemic/commands"
	DefaultMQTTClientID = "remotemic"
	DefaultSampleRate   = 44100
	DefaultChannels     = 2
)

type Config struct {
	ControlTransport string `mapstructure:"control-transport" validate:"required,oneof=socketio mqtt"`
	ControlURL       string `mapstructure:"control-url" validate:"required_if=ControlTransport socketio,omitempty,url"`
	MQTTBroker       string `mapstructure:"mqtt-broker" validate:"required_if=ControlTransport mqtt,omitempty,url"`
	MQTTTopic        string `mapstructure:"mqtt-topic" validate:"required_if=ControlTransport mqtt"`
	MQTTClientID     string `mapstructure:"mqtt-client-id" validate:"required_if=ControlTransport mqtt"`

	UploadURL     string        `mapstructure:"upload-url" validate:"required,url"`
	UploadTimeout time.Duration `mapstructure:"upload-timeout" validate:"gte=0"`

	SampleRate      uint32        `mapstructure:"sample-rate" validate:"gte=8000,lte=192000"`
	Channels        uint16        `mapstructure:"channels" validate:"oneof=1 2"`
	MaxClipDuration time.Duration `mapstructure:"max-clip-duration" validate:"gt=0"`
	ClipDir         string        `mapstructure:"clip-dir" validate:"required"`
	PreloadClip     string        `mapstructure:"preload-clip"`

	DesktopNotify bool   `mapstructure:"desktop-notify"`
	StdinCommands bool   `mapstructure:"stdin-commands"`
	LogLevel      string `mapstructure:"log-level" validate:"required"`
}

func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("control-transport", TransportSocketIO, "The remote control transport: socketio or mqtt")
	flags.String("control-url", DefaultControlURL, "The Socket.IO server URL")
	flags.String("mqtt-broker", DefaultMQTTBroker, "The MQTT broker URL")
	flags.String("mqtt-topic", DefaultMQTTTopic, "The MQTT topic to receive the commands from")
	flags.String("mqtt-client-id", DefaultMQTTClientID, "The MQTT client ID")
	flags.String("upload-url", DefaultUploadURL, "Where to POST the recorded audio")
	flags.Duration("upload-timeout", 0, "The upload timeout, zero means no timeout")
	flags.Uint32("sample-rate", DefaultSampleRate, "The recording sample rate")
	flags.Uint16("channels", DefaultChannels, "The recording channel count")
	flags.Duration("max-clip-duration", capture.DefaultMaxDuration, "The longest recording kept in memory")
	flags.String("clip-dir", filepath.Join(os.TempDir(), "remotemic"), "The directory for the recorded files")
	flags.String("preload-clip", "", "A .wav or .ogg file to use as the current clip at start")
	flags.Bool("desktop-notify", true, "Show warnings as desktop notifications")
	flags.Bool("stdin-commands", true, "Accept commands (on, off, toggle, play, state) on the standard input")
	flags.String("log-level", logger.LevelInfo.String(), "Log level")
}

// Load merges the flags with the environment and validates the result.
// Explicitly set flags take precedence over the environment.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("unable to bind the flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode the configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.LoggerLevel(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) LoggerLevel() (logger.Level, error) {
	var level logger.Level
	if err := level.Set(cfg.LogLevel); err != nil {
		return logger.LevelUndefined, fmt.Errorf("unable to parse the log level '%s': %w", cfg.LogLevel, err)
	}
	return level, nil
}
