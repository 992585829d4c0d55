package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/config"
	"github.com/mobile-next/handsfree/devices"
	"github.com/mobile-next/handsfree/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func dryRunConfig() *config.Config {
	cfg := config.Default()
	cfg.Device.Backend = devices.BackendDryRun
	cfg.Speech.Enabled = false
	return cfg
}

func TestPerformAction_ScalesAndRecords(t *testing.T) {
	tests := []struct {
		name   string
		action actions.Action
		want   []string
	}{
		{"move center", actions.Move{X: 5000, Y: 5000}, []string{"move[960 540]"}},
		{"move corner", actions.Move{X: 10000, Y: 0}, []string{"move[1920 0]"}},
		{"button down", actions.ButtonDown{}, []string{"down"}},
		{"double click", actions.DoubleClick{}, []string{"click", "click"}},
		{"scroll", actions.Scroll{Amount: -30}, []string{"scroll[-30]"}},
		{"type", actions.TypeText{Text: "hi"}, []string{"type[hi]"}},
		{"open url", actions.OpenURL{URL: "https://example.com"}, []string{"open[https://example.com]"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := dryRunConfig()
			cfg.Executor.ClickInterval = 0
			rec := devices.NewRecorder(devices.ScreenSize{Width: 1921, Height: 1081}, zaptest.NewLogger(t))

			resp := performAction(context.Background(), cfg, rec, tt.action, executor.WithURLOpener(rec))
			require.Equal(t, "ok", resp.Status, resp.Error)
			assert.Equal(t, tt.want, rec.Ops())

			result, ok := resp.Data.(ActionResult)
			require.True(t, ok)
			assert.Equal(t, "dryrun", result.Backend)
			assert.Equal(t, actions.Describe(tt.action), result.Action)
		})
	}
}

func TestPerformAction_ButtonDownIsNotReleased(t *testing.T) {
	cfg := dryRunConfig()
	require.True(t, cfg.Executor.ReleaseOnExit)
	rec := devices.NewRecorder(devices.ScreenSize{Width: 100, Height: 100}, nil)

	resp := performAction(context.Background(), cfg, rec, actions.ButtonDown{})

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"down"}, rec.Ops())
}

func TestPerformAction_DeviceError(t *testing.T) {
	rec := devices.NewRecorder(devices.ScreenSize{Width: 100, Height: 100}, nil)
	rec.FailOn("click", errors.New("boom"))

	resp := performAction(context.Background(), dryRunConfig(), rec, actions.Click{})

	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "failed to perform CLICK on dryrun")
	assert.Contains(t, resp.Error, "boom")
}

func TestPerformAction_DeviceUnavailable(t *testing.T) {
	rec := devices.NewRecorder(devices.ScreenSize{Width: 100, Height: 100}, nil)
	rec.FailOn("move", devices.ErrDeviceUnavailable)

	resp := performAction(context.Background(), dryRunConfig(), rec, actions.Move{X: 1, Y: 1})

	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "unavailable")
}

func TestActionCommand(t *testing.T) {
	tests := []struct {
		name      string
		req       ActionRequest
		wantErr   string
		wantMatch string
	}{
		{name: "move", req: ActionRequest{Kind: "MOVE", Arg: "5000,5000"}, wantMatch: "MOVE(5000,5000)"},
		{name: "lower case kind", req: ActionRequest{Kind: "click"}, wantMatch: "CLICK"},
		{name: "say without speech", req: ActionRequest{Kind: "SAY", Arg: "hello"}, wantMatch: `SAY("hello")`},
		{name: "bad coordinates", req: ActionRequest{Kind: "MOVE", Arg: "5000"}, wantErr: "invalid coordinate format"},
		{name: "missing text", req: ActionRequest{Kind: "TYPE_TEXT"}, wantErr: "TYPE_TEXT requires text"},
		{name: "unknown kind", req: ActionRequest{Kind: "JUMP"}, wantErr: "unknown action type: JUMP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ActionCommand(context.Background(), dryRunConfig(), tt.req)
			if tt.wantErr != "" {
				assert.Equal(t, "error", resp.Status)
				assert.Contains(t, resp.Error, tt.wantErr)
				return
			}
			require.Equal(t, "ok", resp.Status, resp.Error)
			result := resp.Data.(ActionResult)
			if result.Action != tt.wantMatch {
				t.Errorf("ActionCommand(%+v) action = %q, want %q", tt.req, result.Action, tt.wantMatch)
			}
		})
	}
}

func TestActionCommand_UnknownBackend(t *testing.T) {
	cfg := dryRunConfig()
	cfg.Device.Backend = "joystick"

	resp := ActionCommand(context.Background(), cfg, ActionRequest{Kind: "CLICK"})

	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, `unknown input backend "joystick"`)
}
