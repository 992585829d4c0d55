// Package executor is the single consumer of the action bus. It is the only
// code that touches OS input state.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/devices"
	"go.uber.org/zap"
)

// Config replaces global automation settings with per-executor values.
type Config struct {
	// ClickInterval separates the two clicks of a double click.
	ClickInterval time.Duration
	// TypeInterval is the delay between typed characters.
	TypeInterval time.Duration
	// ReleaseOnExit releases a held button when Run returns.
	ReleaseOnExit bool
	// FallbackSize is used when the device cannot report its screen size.
	FallbackSize devices.ScreenSize
}

func DefaultConfig() Config {
	return Config{
		ClickInterval: 100 * time.Millisecond,
		TypeInterval:  20 * time.Millisecond,
		ReleaseOnExit: true,
		FallbackSize:  devices.ScreenSize{Width: 1920, Height: 1080},
	}
}

// Source yields envelopes; *actions.Bus satisfies it.
type Source interface {
	Get(ctx context.Context) (actions.Envelope, error)
}

// EnableRequester receives SET_ENABLED requests. The gesture producer owns
// the enabled flag, so the executor only asks.
type EnableRequester interface {
	RequestEnabled(enabled bool)
}

type Speaker interface {
	Say(ctx context.Context, text string) error
}

type URLOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// Stats counts executed and failed actions.
type Stats struct {
	Executed int            `json:"executed"`
	Failed   int            `json:"failed"`
	ByKind   map[string]int `json:"by_kind"`
}

// Executor performs actions against an input device.
type Executor struct {
	cfg     Config
	device  devices.InputDevice
	enabler EnableRequester
	speaker Speaker
	opener  URLOpener
	logger  *zap.Logger

	// owned by the Run goroutine
	buttonDown bool
	screen     devices.ScreenSize

	mu        sync.Mutex
	stats     Stats
	observers []func(actions.Envelope, error)
}

// Option configures optional collaborators.
type Option func(*Executor)

func WithEnableRequester(r EnableRequester) Option {
	return func(e *Executor) { e.enabler = r }
}

func WithSpeaker(s Speaker) Option {
	return func(e *Executor) { e.speaker = s }
}

func WithURLOpener(o URLOpener) Option {
	return func(e *Executor) { e.opener = o }
}

func New(cfg Config, device devices.InputDevice, logger *zap.Logger, opts ...Option) *Executor {
	if !cfg.FallbackSize.Valid() {
		cfg.FallbackSize = DefaultConfig().FallbackSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		cfg:    cfg,
		device: device,
		logger: logger.Named("executor"),
		stats:  Stats{ByKind: map[string]int{}},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnExecuted registers fn to be called after every action with its result.
func (e *Executor) OnExecuted(fn func(actions.Envelope, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Stats returns a snapshot of the counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ByKind = make(map[string]int, len(e.stats.ByKind))
	for k, v := range e.stats.ByKind {
		s.ByKind[k] = v
	}
	return s
}

// ButtonDown reports whether the executor believes the button is held.
// Only meaningful after Run returns or from the Run goroutine.
func (e *Executor) ButtonDown() bool {
	return e.buttonDown
}

// Run consumes envelopes until Quit, the source closes or ctx is done. It
// returns an error only when the input device becomes unavailable.
func (e *Executor) Run(ctx context.Context, src Source) error {
	e.screen = e.detectScreen(ctx)
	if e.cfg.ReleaseOnExit {
		defer e.releaseButton(ctx)
	}

	for {
		env, err := src.Get(ctx)
		if err != nil {
			if errors.Is(err, actions.ErrBusClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read action: %w", err)
		}

		if _, ok := env.Action.(actions.Quit); ok {
			e.record(env, nil)
			e.logger.Info("quit requested", zap.String("source", env.Source), zap.String("id", env.ID))
			return nil
		}

		err = e.Execute(ctx, env.Action)
		e.record(env, err)
		if err != nil {
			e.logger.Error("action failed",
				zap.String("kind", actions.Kind(env.Action)),
				zap.String("id", env.ID),
				zap.String("source", env.Source),
				zap.Error(err))
			if usesDevice(env.Action) && errors.Is(err, devices.ErrDeviceUnavailable) {
				return fmt.Errorf("input device %s unavailable: %w", e.device.Name(), err)
			}
		}
	}
}

// usesDevice reports whether a goes to the input device. Speech and URL
// failures never stop the executor, even when their helper program is missing.
func usesDevice(a actions.Action) bool {
	switch a.(type) {
	case actions.Move, actions.ButtonDown, actions.ButtonUp, actions.Click,
		actions.DoubleClick, actions.Scroll, actions.TypeText:
		return true
	}
	return false
}

func (e *Executor) detectScreen(ctx context.Context) devices.ScreenSize {
	size, err := e.device.ScreenSize(ctx)
	if err != nil || !size.Valid() {
		e.logger.Warn("screen size unavailable, using fallback",
			zap.Int("width", e.cfg.FallbackSize.Width),
			zap.Int("height", e.cfg.FallbackSize.Height),
			zap.Error(err))
		return e.cfg.FallbackSize
	}
	e.logger.Debug("screen size", zap.Int("width", size.Width), zap.Int("height", size.Height))
	return size
}

func (e *Executor) releaseButton(ctx context.Context) {
	if !e.buttonDown {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.device.ButtonUp(releaseCtx); err != nil {
		e.logger.Warn("failed to release button on exit", zap.Error(err))
		return
	}
	e.buttonDown = false
}

func (e *Executor) record(env actions.Envelope, err error) {
	e.mu.Lock()
	if err != nil {
		e.stats.Failed++
	} else {
		e.stats.Executed++
	}
	e.stats.ByKind[actions.Kind(env.Action)]++
	observers := e.observers
	e.mu.Unlock()

	for _, fn := range observers {
		fn(env, err)
	}
}

// Execute performs one non-terminal action. Quit is a no-op here; Run
// handles it.
func (e *Executor) Execute(ctx context.Context, a actions.Action) error {
	if !e.screen.Valid() {
		e.screen = e.cfg.FallbackSize
	}

	switch a := a.(type) {
	case actions.Move:
		x, y := e.scale(a.X, a.Y)
		return e.device.MoveTo(ctx, x, y)
	case actions.ButtonDown:
		if e.buttonDown {
			return nil
		}
		if err := e.device.ButtonDown(ctx); err != nil {
			return err
		}
		e.buttonDown = true
		return nil
	case actions.ButtonUp:
		if !e.buttonDown {
			return nil
		}
		if err := e.device.ButtonUp(ctx); err != nil {
			return err
		}
		e.buttonDown = false
		return nil
	case actions.Click:
		return e.device.Click(ctx)
	case actions.DoubleClick:
		return e.doubleClick(ctx)
	case actions.Scroll:
		return e.device.Scroll(ctx, a.Amount)
	case actions.TypeText:
		return e.device.TypeText(ctx, a.Text, e.cfg.TypeInterval)
	case actions.SetEnabled:
		if e.enabler == nil {
			e.logger.Warn("no gesture producer to enable", zap.Bool("enabled", a.Enabled))
			return nil
		}
		e.enabler.RequestEnabled(a.Enabled)
		return nil
	case actions.Say:
		if e.speaker == nil {
			e.logger.Info("say", zap.String("text", a.Text))
			return nil
		}
		return e.speaker.Say(ctx, a.Text)
	case actions.OpenURL:
		if e.opener == nil {
			return fmt.Errorf("no url opener configured for %s", a.URL)
		}
		return e.opener.OpenURL(ctx, a.URL)
	case actions.Quit:
		return nil
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

func (e *Executor) doubleClick(ctx context.Context) error {
	if err := e.device.Click(ctx); err != nil {
		return err
	}
	if e.cfg.ClickInterval > 0 {
		select {
		case <-time.After(e.cfg.ClickInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return e.device.Click(ctx)
}

// scale maps normalized coordinates onto pixels in [0, size-1].
func (e *Executor) scale(x, y int) (int, int) {
	x = actions.ClampCoordinate(x)
	y = actions.ClampCoordinate(y)
	return x * (e.screen.Width - 1) / actions.MaxCoordinate,
		y * (e.screen.Height - 1) / actions.MaxCoordinate
}
