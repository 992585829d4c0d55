// Package config loads handsfree settings from an optional file, HANDSFREE_
// environment variables and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "HANDSFREE"

type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Bus        BusConfig        `mapstructure:"bus"`
	Gesture    GestureConfig    `mapstructure:"gesture"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Voice      VoiceConfig      `mapstructure:"voice"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Device     DeviceConfig     `mapstructure:"device"`
	Server     ServerConfig     `mapstructure:"server"`
	Speech     SpeechConfig     `mapstructure:"speech"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type BusConfig struct {
	// Trace logs every envelope at debug level.
	Trace bool `mapstructure:"trace"`
}

type GestureConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Required makes a failure of this producer stop the engine.
	Required bool `mapstructure:"required"`
	// URL is the landmark sidecar websocket. File replays JSONL frames instead.
	URL            string        `mapstructure:"url"`
	File           string        `mapstructure:"file"`
	ReplayInterval time.Duration `mapstructure:"replay_interval"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Alpha          float64       `mapstructure:"alpha"`
	PinchThreshold float64       `mapstructure:"pinch_threshold"`
	ScrollGain     float64       `mapstructure:"scroll_gain"`
	ScrollLimit    int           `mapstructure:"scroll_limit"`
	ScrollDeadZone int           `mapstructure:"scroll_dead_zone"`
	StartEnabled   bool          `mapstructure:"start_enabled"`
}

type ClassifierConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Required       bool          `mapstructure:"required"`
	URL            string        `mapstructure:"url"`
	File           string        `mapstructure:"file"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Threshold      float64       `mapstructure:"threshold"`
	Window         int           `mapstructure:"window"`
	Debounce       time.Duration `mapstructure:"debounce"`
	ScrollStep     int           `mapstructure:"scroll_step"`
	Announce       bool          `mapstructure:"announce"`
	// LabelsFile is an INI file with a [labels] section.
	LabelsFile string `mapstructure:"labels_file"`
}

type VoiceConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Required bool `mapstructure:"required"`
	// VoskURL is the Vosk server websocket; Audio is the raw PCM input
	// ("-" for stdin). Lines reads typed utterances instead.
	VoskURL        string        `mapstructure:"vosk_url"`
	Audio          string        `mapstructure:"audio"`
	Lines          string        `mapstructure:"lines"`
	SampleRate     int           `mapstructure:"sample_rate"`
	BlockSize      int           `mapstructure:"block_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ScrollStep     int           `mapstructure:"scroll_step"`
	Greet          bool          `mapstructure:"greet"`
	// SitesFile is an INI file with a [sites] section.
	SitesFile string `mapstructure:"sites_file"`
}

type ExecutorConfig struct {
	ClickInterval  time.Duration `mapstructure:"click_interval"`
	TypeInterval   time.Duration `mapstructure:"type_interval"`
	ReleaseOnExit  bool          `mapstructure:"release_on_exit"`
	FallbackWidth  int           `mapstructure:"fallback_width"`
	FallbackHeight int           `mapstructure:"fallback_height"`
}

type DeviceConfig struct {
	Backend        string  `mapstructure:"backend"`
	Display        string  `mapstructure:"display"`
	ScrollUnit     int     `mapstructure:"scroll_unit"`
	AndroidSerial  string  `mapstructure:"android_serial"`
	AdbPath        string  `mapstructure:"adb_path"`
	ChromeURL      string  `mapstructure:"chrome_url"`
	ChromeStartURL string  `mapstructure:"chrome_start_url"`
	ChromeHeadless bool    `mapstructure:"chrome_headless"`
	KeysPerSecond  float64 `mapstructure:"keys_per_second"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
	CORS   bool   `mapstructure:"cors"`
	// FeedMoveRate caps MOVE envelopes per second on the live feed.
	FeedMoveRate float64 `mapstructure:"feed_move_rate"`
	// DedupeSize is how many recent request IDs are remembered.
	DedupeSize int `mapstructure:"dedupe_size"`
}

type SpeechConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Command   string `mapstructure:"command"`
	Rate      int    `mapstructure:"rate"`
	Async     bool   `mapstructure:"async"`
	QueueSize int    `mapstructure:"queue_size"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	v.SetDefault("bus.trace", false)

	v.SetDefault("gesture.enabled", true)
	v.SetDefault("gesture.required", true)
	v.SetDefault("gesture.url", "ws://localhost:8765/landmarks")
	v.SetDefault("gesture.file", "")
	v.SetDefault("gesture.replay_interval", "0s")
	v.SetDefault("gesture.connect_timeout", "30s")
	v.SetDefault("gesture.alpha", 0.35)
	v.SetDefault("gesture.pinch_threshold", 0.045)
	v.SetDefault("gesture.scroll_gain", 600.0)
	v.SetDefault("gesture.scroll_limit", 600)
	v.SetDefault("gesture.scroll_dead_zone", 30)
	v.SetDefault("gesture.start_enabled", true)

	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.required", false)
	v.SetDefault("classifier.url", "ws://localhost:8766/predictions")
	v.SetDefault("classifier.file", "")
	v.SetDefault("classifier.connect_timeout", "30s")
	v.SetDefault("classifier.threshold", 0.6)
	v.SetDefault("classifier.window", 5)
	v.SetDefault("classifier.debounce", "2s")
	v.SetDefault("classifier.scroll_step", 400)
	v.SetDefault("classifier.announce", true)
	v.SetDefault("classifier.labels_file", "")

	v.SetDefault("voice.enabled", true)
	v.SetDefault("voice.required", false)
	v.SetDefault("voice.vosk_url", "ws://localhost:2700")
	v.SetDefault("voice.audio", "-")
	v.SetDefault("voice.lines", "")
	v.SetDefault("voice.sample_rate", 16000)
	v.SetDefault("voice.block_size", 8000)
	v.SetDefault("voice.connect_timeout", "30s")
	v.SetDefault("voice.scroll_step", 400)
	v.SetDefault("voice.greet", true)
	v.SetDefault("voice.sites_file", "")

	v.SetDefault("executor.click_interval", "100ms")
	v.SetDefault("executor.type_interval", "20ms")
	v.SetDefault("executor.release_on_exit", true)
	v.SetDefault("executor.fallback_width", 1920)
	v.SetDefault("executor.fallback_height", 1080)

	v.SetDefault("device.backend", "")
	v.SetDefault("device.display", "")
	v.SetDefault("device.scroll_unit", 40)
	v.SetDefault("device.android_serial", "")
	v.SetDefault("device.adb_path", "")
	v.SetDefault("device.chrome_url", "")
	v.SetDefault("device.chrome_start_url", "about:blank")
	v.SetDefault("device.chrome_headless", false)
	v.SetDefault("device.keys_per_second", 20.0)

	v.SetDefault("server.listen", "localhost:12000")
	v.SetDefault("server.cors", false)
	v.SetDefault("server.feed_move_rate", 30.0)
	v.SetDefault("server.dedupe_size", 256)

	v.SetDefault("speech.enabled", true)
	v.SetDefault("speech.command", "")
	v.SetDefault("speech.rate", 175)
	v.SetDefault("speech.async", true)
	v.SetDefault("speech.queue_size", 32)
}

// NewViper returns a viper instance with defaults and environment binding.
// HANDSFREE_VOICE_VOSK_URL sets voice.vosk_url.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path when it is set and returns the validated configuration.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper unmarshals and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format))
	}

	g := c.Gesture
	check(g.Alpha >= 0 && g.Alpha < 1, "gesture.alpha must be in [0, 1)")
	check(g.PinchThreshold > 0, "gesture.pinch_threshold must be positive")
	check(g.ScrollLimit > 0, "gesture.scroll_limit must be positive")
	check(g.ScrollDeadZone >= 0, "gesture.scroll_dead_zone must not be negative")
	if g.Enabled {
		check(g.URL != "" || g.File != "", "gesture.url or gesture.file is required when gesture is enabled")
	}

	cl := c.Classifier
	check(cl.Threshold >= 0 && cl.Threshold <= 1, "classifier.threshold must be in [0, 1]")
	check(cl.Window > 0, "classifier.window must be a positive integer")
	check(cl.Debounce >= 0, "classifier.debounce must not be negative")
	if cl.Enabled {
		check(cl.URL != "" || cl.File != "", "classifier.url or classifier.file is required when classifier is enabled")
	}

	vc := c.Voice
	check(vc.SampleRate > 0, "voice.sample_rate must be a positive integer")
	check(vc.BlockSize > 0, "voice.block_size must be a positive integer")
	if vc.Enabled {
		check(vc.VoskURL != "" || vc.Lines != "", "voice.vosk_url or voice.lines is required when voice is enabled")
	}

	check(c.Executor.ClickInterval >= 0, "executor.click_interval must not be negative")
	check(c.Executor.TypeInterval >= 0, "executor.type_interval must not be negative")
	check(c.Executor.FallbackWidth > 0 && c.Executor.FallbackHeight > 0, "executor fallback size must be positive")

	check(c.Server.Listen != "", "server.listen is required")
	check(c.Server.DedupeSize > 0, "server.dedupe_size must be a positive integer")
	check(c.Speech.QueueSize > 0, "speech.queue_size must be a positive integer")

	return errors.Join(errs...)
}
