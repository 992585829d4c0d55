package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type enableRecorder struct {
	mu       sync.Mutex
	requests []bool
}

func (r *enableRecorder) RequestEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, enabled)
}

func newTestExecutor(t *testing.T, cfg Config) (*Executor, *devices.Recorder, *enableRecorder) {
	t.Helper()
	rec := devices.NewRecorder(devices.ScreenSize{Width: 1921, Height: 1081}, zaptest.NewLogger(t))
	enabler := &enableRecorder{}
	e := New(cfg, rec, zaptest.NewLogger(t),
		WithEnableRequester(enabler),
		WithSpeaker(rec),
		WithURLOpener(rec))
	return e, rec, enabler
}

func runActions(t *testing.T, e *Executor, list ...actions.Action) error {
	t.Helper()
	bus := actions.NewBus()
	emit := bus.Emitter(actions.SourceCLI)
	for _, a := range list {
		emit.Emit(a)
	}
	bus.Close()
	return e.Run(context.Background(), bus)
}

func TestExecutor_Dispatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := DefaultConfig()
	cfg.ClickInterval = 0
	e, rec, enabler := newTestExecutor(t, cfg)

	err := runActions(t, e,
		actions.Move{X: 5000, Y: 5000},
		actions.Move{X: 10000, Y: 0},
		actions.Click{},
		actions.DoubleClick{},
		actions.Scroll{Amount: -400},
		actions.TypeText{Text: "hello world"},
		actions.SetEnabled{Enabled: false},
		actions.Say{Text: "hi"},
		actions.OpenURL{URL: "https://www.google.com"},
	)
	require.NoError(t, err)

	want := []string{
		"move[960 540]",
		"move[1920 0]",
		"click",
		"click",
		"click",
		"scroll[-400]",
		"type[hello world]",
		"say[hi]",
		"open[https://www.google.com]",
	}
	if diff := cmp.Diff(want, rec.Ops()); diff != "" {
		t.Errorf("device calls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []bool{false}, enabler.requests)

	stats := e.Stats()
	assert.Equal(t, 9, stats.Executed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, stats.ByKind[actions.KindMove])
}

func TestExecutor_ButtonIdempotence(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{})

	err := runActions(t, e,
		actions.ButtonUp{},
		actions.ButtonDown{},
		actions.ButtonDown{},
		actions.ButtonUp{},
		actions.ButtonUp{},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"down", "up"}, rec.Ops())
	assert.False(t, e.ButtonDown())
}

func TestExecutor_ClickIndependentOfButton(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{})

	require.NoError(t, runActions(t, e, actions.ButtonDown{}, actions.Click{}, actions.ButtonUp{}))
	assert.Equal(t, []string{"down", "click", "up"}, rec.Ops())
}

func TestExecutor_QuitStops(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{})

	require.NoError(t, runActions(t, e, actions.Click{}, actions.Quit{}, actions.Click{}))
	assert.Equal(t, []string{"click"}, rec.Ops())
}

func TestExecutor_ReleaseOnExit(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{ReleaseOnExit: true})

	require.NoError(t, runActions(t, e, actions.ButtonDown{}, actions.Quit{}))
	assert.Equal(t, []string{"down", "up"}, rec.Ops())
	assert.False(t, e.ButtonDown())
}

func TestExecutor_NoReleaseWhenDisabled(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{ReleaseOnExit: false})

	require.NoError(t, runActions(t, e, actions.ButtonDown{}, actions.Quit{}))
	assert.Equal(t, []string{"down"}, rec.Ops())
	assert.True(t, e.ButtonDown())
}

func TestExecutor_FailureContinues(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{})
	rec.FailOn("click", errors.New("xdotool exited 1"))

	var mu sync.Mutex
	var failed []string
	e.OnExecuted(func(env actions.Envelope, err error) {
		if err != nil {
			mu.Lock()
			failed = append(failed, actions.Kind(env.Action))
			mu.Unlock()
		}
	})

	require.NoError(t, runActions(t, e, actions.Click{}, actions.Scroll{Amount: 100}))
	assert.Equal(t, []string{"click", "scroll[100]"}, rec.Ops())
	assert.Equal(t, []string{actions.KindClick}, failed)
	assert.Equal(t, 1, e.Stats().Failed)
}

func TestExecutor_DeviceUnavailableIsFatal(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{})
	rec.FailOn("move", devices.ErrDeviceUnavailable)

	err := runActions(t, e, actions.Move{X: 1, Y: 1}, actions.Click{})
	assert.ErrorIs(t, err, devices.ErrDeviceUnavailable)
	assert.Equal(t, []string{"move[0 0]"}, rec.Ops())
}

type missingHelper struct{ name string }

func (m missingHelper) OpenURL(ctx context.Context, url string) error {
	return fmt.Errorf("failed to open browser: %s not found in PATH: %w", m.name, devices.ErrDeviceUnavailable)
}

func (m missingHelper) Say(ctx context.Context, text string) error {
	return fmt.Errorf("failed to speak: %s not found in PATH: %w", m.name, devices.ErrDeviceUnavailable)
}

func TestExecutor_MissingHelperProgramIsNotFatal(t *testing.T) {
	rec := devices.NewRecorder(devices.ScreenSize{Width: 1921, Height: 1081}, zaptest.NewLogger(t))
	e := New(Config{}, rec, zaptest.NewLogger(t),
		WithURLOpener(missingHelper{name: "xdg-open"}),
		WithSpeaker(missingHelper{name: "espeak"}))

	err := runActions(t, e,
		actions.OpenURL{URL: "https://www.youtube.com"},
		actions.Say{Text: "hello"},
		actions.Click{},
		actions.Quit{})
	require.NoError(t, err)
	assert.Equal(t, []string{"click"}, rec.Ops())

	stats := e.Stats()
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 2, stats.Executed)
}

func TestExecutor_UnknownAction(t *testing.T) {
	e, _, _ := newTestExecutor(t, Config{})

	err := e.Execute(context.Background(), nil)
	assert.ErrorContains(t, err, "unknown action")
}

func TestExecutor_ScreenFallback(t *testing.T) {
	rec := devices.NewRecorder(devices.ScreenSize{}, zaptest.NewLogger(t))
	rec.FailOn("screen", errors.New("no display"))
	e := New(Config{}, rec, zaptest.NewLogger(t))

	require.NoError(t, runActions(t, e, actions.Move{X: 10000, Y: 10000}))
	assert.Equal(t, []string{"move[1919 1079]"}, rec.Ops())
}

func TestExecutor_SayWithoutSpeakerIsLogged(t *testing.T) {
	rec := devices.NewRecorder(devices.ScreenSize{Width: 10, Height: 10}, zaptest.NewLogger(t))
	e := New(Config{}, rec, zaptest.NewLogger(t))

	require.NoError(t, runActions(t, e, actions.Say{Text: "hello"}, actions.OpenURL{URL: "https://x.org"}))
	assert.Empty(t, rec.Ops())
	assert.Equal(t, 1, e.Stats().Failed)
}

func TestExecutor_CancelStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	e, _, _ := newTestExecutor(t, Config{})
	bus := actions.NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, bus) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("executor did not stop on cancel")
	}
}

func TestExecutor_DoubleClickInterval(t *testing.T) {
	e, rec, _ := newTestExecutor(t, Config{ClickInterval: 20 * time.Millisecond})

	start := time.Now()
	require.NoError(t, runActions(t, e, actions.DoubleClick{}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, []string{"click", "click"}, rec.Ops())
}
