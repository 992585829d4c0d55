package devices

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendXdotool = "xdotool"
	BackendAndroid = "android"
	BackendChrome  = "chrome"
	BackendDryRun  = "dryrun"
)

// BackendConfig selects and configures an input backend.
type BackendConfig struct {
	Backend string
	Xdotool XdotoolOptions
	Android AndroidOptions
	Chrome  ChromeOptions
	// FallbackSize is reported by the dryrun backend.
	FallbackSize ScreenSize
}

type opener func(ctx context.Context, cfg BackendConfig, logger *zap.Logger) (InputDevice, error)

var backends = map[string]opener{
	BackendXdotool: func(ctx context.Context, cfg BackendConfig, logger *zap.Logger) (InputDevice, error) {
		return NewXdotoolDevice(cfg.Xdotool), nil
	},
	BackendAndroid: func(ctx context.Context, cfg BackendConfig, logger *zap.Logger) (InputDevice, error) {
		return NewAndroidDevice(cfg.Android), nil
	},
	BackendChrome: func(ctx context.Context, cfg BackendConfig, logger *zap.Logger) (InputDevice, error) {
		return NewChromeDevice(ctx, cfg.Chrome)
	},
	BackendDryRun: func(ctx context.Context, cfg BackendConfig, logger *zap.Logger) (InputDevice, error) {
		return NewRecorder(cfg.FallbackSize, logger), nil
	},
}

// Backends lists the available backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultBackend picks the backend for the current platform.
func DefaultBackend() string {
	if runtime.GOOS == "linux" || runtime.GOOS == "freebsd" {
		return BackendXdotool
	}
	return BackendChrome
}

// Open creates the configured input backend. An empty name selects
// DefaultBackend.
func Open(ctx context.Context, cfg BackendConfig, logger *zap.Logger) (InputDevice, error) {
	name := cfg.Backend
	if name == "" {
		name = DefaultBackend()
	}

	open, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown input backend %q (available: %v)", name, Backends())
	}

	device, err := open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", name, err)
	}
	return device, nil
}
