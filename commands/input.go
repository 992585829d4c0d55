package commands

import (
	"context"
	"fmt"

	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/config"
	"github.com/mobile-next/handsfree/devices"
	"github.com/mobile-next/handsfree/engine"
	"github.com/mobile-next/handsfree/executor"
	"github.com/mobile-next/handsfree/utils"
	"go.uber.org/zap"
)

// ActionRequest names one action in command line form, for example
// {Kind: "MOVE", Arg: "5000,5000"} or {Kind: "TYPE_TEXT", Arg: "hello"}.
type ActionRequest struct {
	Kind string `json:"kind"`
	Arg  string `json:"arg,omitempty"`
}

// ActionResult reports what was performed and on which backend.
type ActionResult struct {
	Action  string `json:"action"`
	Backend string `json:"backend"`
	Message string `json:"message"`
}

// ActionCommand opens the configured input backend, performs a single
// action and closes the backend again.
func ActionCommand(ctx context.Context, cfg *config.Config, req ActionRequest) *CommandResponse {
	a, err := actions.Parse(req.Kind, req.Arg)
	if err != nil {
		return NewErrorResponse(err)
	}

	device, err := devices.Open(ctx, engine.BackendConfig(cfg), utils.Logger())
	if err != nil {
		return NewErrorResponse(err)
	}
	defer func() {
		if err := device.Close(); err != nil {
			utils.Verbose("failed to close %s: %v", device.Name(), err)
		}
	}()

	opts := []executor.Option{executor.WithURLOpener(urlOpener(device))}
	if _, ok := a.(actions.Say); ok && cfg.Speech.Enabled {
		// a one-shot process exits right away, so speak synchronously
		speaker, err := devices.NewSpeaker(devices.SpeechOptions{
			Command: cfg.Speech.Command,
			Rate:    cfg.Speech.Rate,
		}, utils.Logger())
		if err != nil {
			return NewErrorResponse(err)
		}
		defer speaker.Close()
		opts = append(opts, executor.WithSpeaker(speaker))
	}

	return performAction(ctx, cfg, device, a, opts...)
}

func urlOpener(device devices.InputDevice) executor.URLOpener {
	if opener, ok := device.(executor.URLOpener); ok {
		return opener
	}
	return devices.NewSystemBrowser()
}

// performAction runs a through an executor so coordinates are scaled and
// errors are reported exactly as they are in the engine.
func performAction(ctx context.Context, cfg *config.Config, device devices.InputDevice, a actions.Action, opts ...executor.Option) *CommandResponse {
	execCfg := engine.ExecutorConfig(cfg)
	// "io down" must leave the button held
	execCfg.ReleaseOnExit = false

	exec := executor.New(execCfg, device, utils.Logger(), opts...)
	var actionErr error
	exec.OnExecuted(func(env actions.Envelope, err error) {
		actionErr = err
	})

	bus := actions.NewBus()
	bus.Put(actions.NewEnvelope(actions.SourceCLI, a))
	bus.Close()

	if err := exec.Run(ctx, bus); err != nil {
		return NewErrorResponse(err)
	}
	if actionErr != nil {
		return NewErrorResponse(fmt.Errorf("failed to perform %s on %s: %w", actions.Kind(a), device.Name(), actionErr))
	}

	utils.Logger().Debug("action performed", zap.String("action", actions.Describe(a)), zap.String("backend", device.Name()))
	return NewSuccessResponse(ActionResult{
		Action:  actions.Describe(a),
		Backend: device.Name(),
		Message: fmt.Sprintf("Performed %s on %s", actions.Describe(a), device.Name()),
	})
}
