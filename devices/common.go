// Package devices implements the operating system side effects: pointer and
// keyboard injection backends, speech output and browser launch.
package devices

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDeviceUnavailable means the backend cannot reach the device at all.
	// Callers treat it as fatal.
	ErrDeviceUnavailable = errors.New("input device unavailable")
	// ErrUnsupported means the backend cannot perform the requested operation.
	ErrUnsupported = errors.New("operation not supported by device")
)

// ScreenSize is the pointer coordinate space of a device in pixels.
type ScreenSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (s ScreenSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// InputDevice injects pointer and keyboard input. Coordinates are absolute
// pixels within ScreenSize.
type InputDevice interface {
	Name() string
	ScreenSize(ctx context.Context) (ScreenSize, error)
	MoveTo(ctx context.Context, x, y int) error
	ButtonDown(ctx context.Context) error
	ButtonUp(ctx context.Context) error
	Click(ctx context.Context) error
	// Scroll scrolls by a signed amount; positive scrolls up.
	Scroll(ctx context.Context, amount int) error
	// TypeText types text literally, pausing interval between keystrokes
	// where the backend supports it.
	TypeText(ctx context.Context, text string, interval time.Duration) error
	Close() error
}

// DeviceInfo describes an available backend target.
type DeviceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Type     string `json:"type"`
	State    string `json:"state,omitempty"`
}
