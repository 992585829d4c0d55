package gesture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/mobile-next/handsfree/actions"
	"go.uber.org/zap"
)

// Status values reported to the status observer.
const (
	StatusTracking = "tracking"
	StatusNoHand   = "no_hand"
)

// Config holds the producer tuning.
type Config struct {
	Alpha          float64
	PinchThreshold float64
	ScrollGain     float64
	ScrollLimit    int
	ScrollDeadZone int
	StartEnabled   bool
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.35,
		PinchThreshold: 0.045,
		ScrollGain:     600,
		ScrollLimit:    600,
		ScrollDeadZone: 30,
		StartEnabled:   true,
	}
}

type point struct {
	x, y float64
}

// Producer reduces landmark frames to Move, ButtonDown, ButtonUp, Scroll and
// Quit actions. Its state is only touched from the goroutine running Run;
// enable changes from other goroutines go through RequestEnabled.
type Producer struct {
	cfg    Config
	sink   actions.Sink
	logger *zap.Logger

	reqMu sync.Mutex
	// pending is the latest requested enable flag; disabled records that a
	// disable was requested since the last apply.
	pending  *bool
	disabled bool
	wake     chan struct{}

	onStatus func(status string)

	enabled  bool
	dragging bool
	smoothed *point
	status   string
}

// NewProducer creates a producer emitting into sink.
func NewProducer(cfg Config, sink actions.Sink, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		cfg:     cfg,
		sink:    sink,
		logger:  logger.Named("gesture"),
		wake:    make(chan struct{}, 1),
		enabled: cfg.StartEnabled,
	}
}

// OnStatus registers fn to be called when hand tracking is gained or lost.
// Must be called before Run.
func (p *Producer) OnStatus(fn func(status string)) {
	p.onStatus = fn
}

// RequestEnabled asks the producer to enable or disable pointer control.
// The change is applied on the producer goroutine. It never blocks; requests
// made before the producer catches up collapse into the latest one, but a
// disable among them still releases an active drag.
func (p *Producer) RequestEnabled(enabled bool) {
	p.reqMu.Lock()
	p.pending = &enabled
	if !enabled {
		p.disabled = true
	}
	p.reqMu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Enabled reports the current enable flag. Only safe from the producer goroutine or tests.
func (p *Producer) Enabled() bool {
	return p.enabled
}

// Dragging reports whether a ButtonDown is outstanding.
func (p *Producer) Dragging() bool {
	return p.dragging
}

// SetEnabled applies an enable change. Disabling during a drag emits exactly
// one ButtonUp first.
func (p *Producer) SetEnabled(enabled bool) {
	if !enabled && p.dragging {
		p.dragging = false
		p.sink.Emit(actions.ButtonUp{})
	}
	if enabled && !p.enabled {
		p.smoothed = nil
	}
	p.enabled = enabled
	p.logger.Debug("pointer control changed", zap.Bool("enabled", enabled))
}

// Process handles one frame.
func (p *Producer) Process(f Frame) {
	if f.Quit {
		p.sink.Emit(actions.Quit{})
		return
	}

	hand, ok := f.PrimaryHand()
	if !ok {
		p.setStatus(StatusNoHand)
		if p.dragging {
			p.dragging = false
			p.sink.Emit(actions.ButtonUp{})
		}
		return
	}
	p.setStatus(StatusTracking)

	pose := hand.Classify(p.cfg.PinchThreshold)

	if p.enabled && pose.IndexUp && !pose.MiddleUp {
		pos := p.smooth(point{x: hand[IndexTip].X, y: hand[IndexTip].Y})
		p.sink.Emit(actions.Move{X: actions.Normalize(pos.x), Y: actions.Normalize(pos.y)})
	}

	wantDrag := p.enabled && pose.Pinch && pose.IndexUp
	switch {
	case wantDrag && !p.dragging:
		p.dragging = true
		p.sink.Emit(actions.ButtonDown{})
	case !wantDrag && p.dragging:
		p.dragging = false
		p.sink.Emit(actions.ButtonUp{})
	}

	if p.enabled && pose.IndexUp && pose.MiddleUp {
		if amount := p.scrollAmount(hand); abs(amount) > p.cfg.ScrollDeadZone {
			p.sink.Emit(actions.Scroll{Amount: amount})
		}
	}
}

func (p *Producer) smooth(n point) point {
	if p.smoothed == nil {
		p.smoothed = &n
		return n
	}
	a := p.cfg.Alpha
	s := point{
		x: p.smoothed.x*a + n.x*(1-a),
		y: p.smoothed.y*a + n.y*(1-a),
	}
	p.smoothed = &s
	return s
}

func (p *Producer) scrollAmount(h Hand) int {
	raw := (h[Wrist].Y - h[MiddleTip].Y) * p.cfg.ScrollGain
	limit := float64(p.cfg.ScrollLimit)
	raw = math.Max(-limit, math.Min(limit, raw))
	return int(raw)
}

func (p *Producer) setStatus(status string) {
	if status == p.status {
		return
	}
	p.status = status
	if p.onStatus != nil {
		p.onStatus(status)
	}
}

// applyRequests applies the pending enable request, if any.
func (p *Producer) applyRequests() {
	p.reqMu.Lock()
	pending, disabled := p.pending, p.disabled
	p.pending, p.disabled = nil, false
	p.reqMu.Unlock()

	if pending == nil {
		return
	}
	if disabled && *pending && p.dragging {
		p.SetEnabled(false)
	}
	p.SetEnabled(*pending)
}

// Run reads frames from src until the context is done or the source ends.
// A source that fails to open is returned as an error.
func (p *Producer) Run(ctx context.Context, src FrameSource) error {
	if err := src.Open(ctx); err != nil {
		return fmt.Errorf("failed to open frame source: %w", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan Frame)
	errc := make(chan error, 1)
	go func() {
		defer close(frames)
		for {
			f, err := src.Next(ctx)
			if err != nil {
				errc <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	stopReader := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stopReader()

	p.logger.Info("gesture producer started")
	for {
		select {
		case <-ctx.Done():
			for range frames {
			}
			p.release()
			return nil

		case <-p.wake:
			p.applyRequests()

		case f, ok := <-frames:
			if !ok {
				p.release()
				var err error
				select {
				case err = <-errc:
				default:
				}
				if err == nil || errors.Is(err, ErrSourceClosed) || errors.Is(err, io.EOF) || ctx.Err() != nil {
					p.logger.Info("frame source ended")
					return nil
				}
				return fmt.Errorf("frame source failed: %w", err)
			}
			p.applyRequests()
			p.Process(f)
		}
	}
}

// release ends an outstanding drag when the producer stops.
func (p *Producer) release() {
	if p.dragging {
		p.dragging = false
		p.sink.Emit(actions.ButtonUp{})
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
