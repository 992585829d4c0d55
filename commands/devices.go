package commands

import (
	"context"

	"github.com/mobile-next/handsfree/devices"
	"github.com/mobile-next/handsfree/utils"
)

// BackendInfo describes one input backend and the targets it can drive.
type BackendInfo struct {
	Name    string               `json:"name"`
	Default bool                 `json:"default"`
	Targets []devices.DeviceInfo `json:"targets,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// DevicesCommand lists the input backends. Android targets are listed when
// adb is available; showAll also reports backends whose probe failed.
func DevicesCommand(ctx context.Context, showAll bool) *CommandResponse {
	return NewSuccessResponse(map[string]interface{}{
		"backends": listBackends(ctx, showAll, devices.ListAndroidDevices),
	})
}

func listBackends(ctx context.Context, showAll bool, listAndroid func(context.Context) ([]devices.DeviceInfo, error)) []BackendInfo {
	def := devices.DefaultBackend()
	var out []BackendInfo
	for _, name := range devices.Backends() {
		info := BackendInfo{Name: name, Default: name == def}
		if name == devices.BackendAndroid {
			targets, err := listAndroid(ctx)
			if err != nil {
				utils.Verbose("android probe failed: %v", err)
				if !showAll {
					continue
				}
				info.Error = err.Error()
			}
			info.Targets = targets
		}
		out = append(out, info)
	}
	return out
}
