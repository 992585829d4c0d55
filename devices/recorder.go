package devices

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Call is one operation observed by a Recorder.
type Call struct {
	Op   string
	Args []interface{}
}

func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Op
	}
	return fmt.Sprintf("%s%v", c.Op, c.Args)
}

// Recorder is an InputDevice that performs nothing and remembers every call.
// It backs the "dryrun" backend and tests.
type Recorder struct {
	mu     sync.Mutex
	size   ScreenSize
	calls  []Call
	fail   map[string]error
	logger *zap.Logger
}

// NewRecorder creates a recorder reporting the given screen size.
func NewRecorder(size ScreenSize, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{size: size, fail: map[string]error{}, logger: logger.Named("dryrun")}
}

// FailOn makes every later call to op return err.
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the recorded operations as strings.
func (r *Recorder) Ops() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

func (r *Recorder) record(op string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := Call{Op: op, Args: args}
	r.calls = append(r.calls, call)
	r.logger.Debug("input", zap.Stringer("call", call))
	return r.fail[op]
}

func (r *Recorder) Name() string {
	return "dryrun"
}

func (r *Recorder) ScreenSize(ctx context.Context) (ScreenSize, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["screen"]; err != nil {
		return ScreenSize{}, err
	}
	return r.size, nil
}

func (r *Recorder) MoveTo(ctx context.Context, x, y int) error {
	return r.record("move", x, y)
}

func (r *Recorder) ButtonDown(ctx context.Context) error {
	return r.record("down")
}

func (r *Recorder) ButtonUp(ctx context.Context) error {
	return r.record("up")
}

func (r *Recorder) Click(ctx context.Context) error {
	return r.record("click")
}

func (r *Recorder) Scroll(ctx context.Context, amount int) error {
	return r.record("scroll", amount)
}

func (r *Recorder) TypeText(ctx context.Context, text string, interval time.Duration) error {
	return r.record("type", text)
}

// Say lets the recorder stand in for a speaker.
func (r *Recorder) Say(ctx context.Context, text string) error {
	return r.record("say", text)
}

// OpenURL lets the recorder stand in for a browser.
func (r *Recorder) OpenURL(ctx context.Context, url string) error {
	return r.record("open", url)
}

func (r *Recorder) Close() error {
	return nil
}
