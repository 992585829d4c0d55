package commands

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/mobile-next/handsfree/config"
	"github.com/mobile-next/handsfree/devices"
	"github.com/mobile-next/handsfree/sidecar"
	"github.com/mobile-next/handsfree/utils"
	"golang.org/x/sync/errgroup"
)

const sidecarProbeTimeout = 2 * time.Second

// ToolCheck reports whether an external program one of the backends needs
// can be found.
type ToolCheck struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Path     string `json:"path,omitempty"`
	Found    bool   `json:"found"`
	Required bool   `json:"required"`
}

// SidecarCheck reports whether a configured sidecar accepts connections.
type SidecarCheck struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type DoctorInfo struct {
	HandsfreeVersion string         `json:"handsfree_version"`
	OS               string         `json:"os"`
	OSVersion        string         `json:"os_version"`
	Backend          string         `json:"backend"`
	Backends         []string       `json:"backends"`
	Display          string         `json:"display,omitempty"`
	Tools            []ToolCheck    `json:"tools"`
	Sidecars         []SidecarCheck `json:"sidecars"`
}

type toolSpec struct {
	purpose  string
	names    []string
	required bool
}

func requiredTools(cfg *config.Config, goos string) []toolSpec {
	backend := cfg.Device.Backend
	if backend == "" {
		backend = devices.DefaultBackend()
	}

	speech := []string{"espeak-ng", "espeak", "spd-say"}
	browser := []string{"xdg-open"}
	switch goos {
	case "darwin":
		speech = []string{"say"}
		browser = []string{"open"}
	case "windows":
		browser = []string{"rundll32"}
	}
	if cfg.Speech.Command != "" {
		speech = []string{cfg.Speech.Command}
	}

	return []toolSpec{
		{purpose: "xdotool input backend", names: []string{"xdotool"}, required: backend == devices.BackendXdotool},
		{purpose: "android input backend", names: []string{"adb"}, required: backend == devices.BackendAndroid},
		{purpose: "chrome input backend", names: []string{"google-chrome", "chromium", "chromium-browser", "chrome"},
			required: backend == devices.BackendChrome && cfg.Device.ChromeURL == ""},
		{purpose: "speech", names: speech, required: cfg.Speech.Enabled},
		{purpose: "opening urls", names: browser},
	}
}

func checkTools(specs []toolSpec, lookPath func(string) (string, error)) []ToolCheck {
	checks := make([]ToolCheck, 0, len(specs))
	for _, spec := range specs {
		check := ToolCheck{Name: spec.names[0], Purpose: spec.purpose, Required: spec.required}
		for _, name := range spec.names {
			if path, err := lookPath(name); err == nil {
				check.Name, check.Path, check.Found = name, path, true
				break
			}
		}
		checks = append(checks, check)
	}
	return checks
}

func adbLookPath(name string) (string, error) {
	if name == "adb" {
		if path := devices.AdbPath(); path != "" {
			return path, nil
		}
		return "", exec.ErrNotFound
	}
	return exec.LookPath(name)
}

// probeSidecars dials every enabled websocket producer concurrently.
func probeSidecars(ctx context.Context, cfg *config.Config) []SidecarCheck {
	var checks []SidecarCheck
	if cfg.Gesture.Enabled && cfg.Gesture.File == "" {
		checks = append(checks, SidecarCheck{Name: "gesture", URL: cfg.Gesture.URL})
	}
	if cfg.Classifier.Enabled && cfg.Classifier.File == "" {
		checks = append(checks, SidecarCheck{Name: "classifier", URL: cfg.Classifier.URL})
	}
	if cfg.Voice.Enabled && cfg.Voice.Lines == "" {
		checks = append(checks, SidecarCheck{Name: "voice", URL: cfg.Voice.VoskURL})
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range checks {
		check := &checks[i]
		g.Go(func() error {
			client := sidecar.NewClient(sidecar.Options{URL: check.URL, MaxElapsed: sidecarProbeTimeout, Logger: utils.Logger()})
			defer client.Close()
			if err := client.Connect(ctx); err != nil {
				check.Error = err.Error()
				return nil
			}
			check.Reachable = true
			return nil
		})
	}
	_ = g.Wait()
	return checks
}

func getOSVersion() string {
	switch runtime.GOOS {
	case "darwin":
		output, err := exec.Command("sw_vers", "-productVersion").CombinedOutput()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(output))
	case "windows":
		output, err := exec.Command("cmd", "/c", "ver").CombinedOutput()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(output))
	case "linux":
		data, err := os.ReadFile("/etc/os-release")
		if err != nil {
			return ""
		}
		return parseOSRelease(string(data))
	default:
		return ""
	}
}

func parseOSRelease(data string) string {
	for _, line := range strings.Split(data, "\n") {
		if strings.HasPrefix(line, "PRETTY_NAME=") {
			return strings.Trim(strings.TrimPrefix(line, "PRETTY_NAME="), "\"")
		}
	}
	return ""
}

// DoctorCommand reports the tools and sidecars the configuration depends on.
// It fails when a required tool is missing.
func DoctorCommand(ctx context.Context, version string, cfg *config.Config) *CommandResponse {
	backend := cfg.Device.Backend
	if backend == "" {
		backend = devices.DefaultBackend()
	}

	info := DoctorInfo{
		HandsfreeVersion: version,
		OS:               runtime.GOOS,
		OSVersion:        getOSVersion(),
		Backend:          backend,
		Backends:         devices.Backends(),
		Display:          os.Getenv("DISPLAY"),
		Tools:            checkTools(requiredTools(cfg, runtime.GOOS), adbLookPath),
		Sidecars:         probeSidecars(ctx, cfg),
	}

	if missing := missingRequired(info.Tools); len(missing) > 0 {
		return &CommandResponse{
			Status: "error",
			Data:   info,
			Error:  "missing required tools: " + strings.Join(missing, ", "),
		}
	}
	return NewSuccessResponse(info)
}

func missingRequired(tools []ToolCheck) []string {
	var missing []string
	for _, t := range tools {
		if t.Required && !t.Found {
			missing = append(missing, t.Name)
		}
	}
	return missing
}
