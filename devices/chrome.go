package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

// ChromeOptions configure the Chrome DevTools backend.
type ChromeOptions struct {
	// RemoteURL attaches to a running browser's DevTools websocket instead of
	// launching one.
	RemoteURL string
	// StartURL is loaded after the browser starts.
	StartURL string
	Headless bool
	// KeysPerSecond caps keystroke dispatch; zero means 20 per second.
	KeysPerSecond float64
}

// ChromeDevice injects input into a Chrome page through the DevTools
// protocol. Coordinates are CSS pixels of the page viewport.
type ChromeDevice struct {
	opts ChromeOptions

	browserCtx context.Context
	cancel     context.CancelFunc
	run        func(ctx context.Context, actions ...chromedp.Action) error

	mu   sync.Mutex
	x, y float64
	down bool
	keys *rate.Limiter
}

// NewChromeDevice launches or attaches to Chrome and loads StartURL.
func NewChromeDevice(ctx context.Context, opts ChromeOptions) (*ChromeDevice, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", opts.Headless),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	d := newChromeDevice(opts, func(_ context.Context, actions ...chromedp.Action) error {
		return chromedp.Run(browserCtx, actions...)
	})
	d.browserCtx = browserCtx
	d.cancel = func() {
		browserCancel()
		allocCancel()
	}

	startURL := opts.StartURL
	if startURL == "" {
		startURL = "about:blank"
	}
	if err := chromedp.Run(browserCtx, chromedp.Navigate(startURL)); err != nil {
		d.cancel()
		return nil, fmt.Errorf("failed to start chrome: %v: %w", err, ErrDeviceUnavailable)
	}
	return d, nil
}

func newChromeDevice(opts ChromeOptions, run func(ctx context.Context, actions ...chromedp.Action) error) *ChromeDevice {
	kps := opts.KeysPerSecond
	if kps <= 0 {
		kps = 20
	}
	return &ChromeDevice{
		opts: opts,
		run:  run,
		keys: rate.NewLimiter(rate.Limit(kps), 1),
	}
}

func (d *ChromeDevice) Name() string {
	return "chrome"
}

func (d *ChromeDevice) dispatch(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.browserCtx != nil && d.browserCtx.Err() != nil {
		return fmt.Errorf("browser closed: %w", ErrDeviceUnavailable)
	}
	return d.run(ctx, actions...)
}

// ScreenSize returns the page viewport size.
func (d *ChromeDevice) ScreenSize(ctx context.Context) (ScreenSize, error) {
	var dims []int
	if err := d.dispatch(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims)); err != nil {
		return ScreenSize{}, fmt.Errorf("failed to read viewport size: %w", err)
	}
	if len(dims) != 2 {
		return ScreenSize{}, fmt.Errorf("unexpected viewport size %v", dims)
	}
	return ScreenSize{Width: dims[0], Height: dims[1]}, nil
}

func (d *ChromeDevice) mouse(typ input.MouseType) *input.DispatchMouseEventParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := input.DispatchMouseEvent(typ, d.x, d.y)
	if d.down {
		p = p.WithButtons(1)
	}
	return p
}

func (d *ChromeDevice) MoveTo(ctx context.Context, x, y int) error {
	d.mu.Lock()
	d.x, d.y = float64(x), float64(y)
	d.mu.Unlock()
	return d.dispatch(ctx, d.mouse(input.MouseMoved))
}

func (d *ChromeDevice) ButtonDown(ctx context.Context) error {
	err := d.dispatch(ctx, d.mouse(input.MousePressed).WithButton(input.Left).WithClickCount(1))
	if err == nil {
		d.mu.Lock()
		d.down = true
		d.mu.Unlock()
	}
	return err
}

func (d *ChromeDevice) ButtonUp(ctx context.Context) error {
	d.mu.Lock()
	d.down = false
	d.mu.Unlock()
	return d.dispatch(ctx, d.mouse(input.MouseReleased).WithButton(input.Left).WithClickCount(1))
}

func (d *ChromeDevice) Click(ctx context.Context) error {
	return d.dispatch(ctx,
		d.mouse(input.MousePressed).WithButton(input.Left).WithClickCount(1),
		d.mouse(input.MouseReleased).WithButton(input.Left).WithClickCount(1),
	)
}

// Scroll dispatches a wheel event; positive amounts scroll up.
func (d *ChromeDevice) Scroll(ctx context.Context, amount int) error {
	if amount == 0 {
		return nil
	}
	return d.dispatch(ctx, d.mouse(input.MouseWheel).WithDeltaX(0).WithDeltaY(float64(-amount)))
}

// TypeText sends one key event per rune, paced by the keystroke limiter and
// by interval when set.
func (d *ChromeDevice) TypeText(ctx context.Context, text string, interval time.Duration) error {
	for _, r := range text {
		if err := d.keys.Wait(ctx); err != nil {
			return err
		}
		if err := d.dispatch(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}
		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// OpenURL navigates the controlled page.
func (d *ChromeDevice) OpenURL(ctx context.Context, url string) error {
	return d.dispatch(ctx, chromedp.Navigate(url))
}

func (d *ChromeDevice) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}
