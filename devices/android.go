package devices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AndroidOptions configure the adb backend.
type AndroidOptions struct {
	// Serial selects the device; empty uses the only connected device.
	Serial string
	// AdbPath overrides adb discovery.
	AdbPath string
	// ScrollSpan is the scroll amount that corresponds to a full-height swipe.
	ScrollSpan int
}

// AndroidDevice injects touch input into an Android device over adb. Pointer
// moves while the button is down become touch MOVE events; otherwise the
// position is remembered for the next tap or touch.
type AndroidDevice struct {
	opts AndroidOptions
	run  runner

	mu     sync.Mutex
	x, y   int
	down   bool
	screen ScreenSize
}

// NewAndroidDevice creates the adb backend.
func NewAndroidDevice(opts AndroidOptions) *AndroidDevice {
	if opts.AdbPath == "" {
		opts.AdbPath = AdbPath()
	}
	if opts.AdbPath == "" {
		opts.AdbPath = "adb"
	}
	if opts.ScrollSpan <= 0 {
		opts.ScrollSpan = 2000
	}
	return &AndroidDevice{opts: opts, run: newExecRunner()}
}

func (d *AndroidDevice) Name() string {
	if d.opts.Serial != "" {
		return "android:" + d.opts.Serial
	}
	return "android"
}

// adbUnavailable matches adb failures that mean the device cannot be reached.
var adbUnavailable = []string{
	"no devices/emulators found",
	"device offline",
	"device unauthorized",
	"not found",
	"more than one device",
}

func (d *AndroidDevice) runAdbCommand(ctx context.Context, args ...string) ([]byte, error) {
	cmdArgs := args
	if d.opts.Serial != "" {
		cmdArgs = append([]string{"-s", d.opts.Serial}, args...)
	}

	output, err := d.run(ctx, d.opts.AdbPath, cmdArgs...)
	if err != nil && !errors.Is(err, ErrDeviceUnavailable) {
		lower := strings.ToLower(string(output))
		for _, marker := range adbUnavailable {
			if strings.Contains(lower, marker) {
				return output, fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), ErrDeviceUnavailable)
			}
		}
	}
	return output, err
}

func (d *AndroidDevice) shellInput(ctx context.Context, args ...string) error {
	_, err := d.runAdbCommand(ctx, append([]string{"shell", "input"}, args...)...)
	return err
}

// ScreenSize reads the effective display size from "wm size".
func (d *AndroidDevice) ScreenSize(ctx context.Context) (ScreenSize, error) {
	output, err := d.runAdbCommand(ctx, "shell", "wm", "size")
	if err != nil {
		return ScreenSize{}, fmt.Errorf("failed to get screen size: %w", err)
	}
	size, err := parseWmSize(string(output))
	if err != nil {
		return ScreenSize{}, err
	}

	d.mu.Lock()
	d.screen = size
	d.mu.Unlock()
	return size, nil
}

var wmSizePattern = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)

// parseWmSize prefers the override size over the physical size.
func parseWmSize(output string) (ScreenSize, error) {
	var size ScreenSize
	for _, m := range wmSizePattern.FindAllStringSubmatch(output, -1) {
		w, _ := strconv.Atoi(m[2])
		h, _ := strconv.Atoi(m[3])
		if m[1] == "Override" || !size.Valid() {
			size = ScreenSize{Width: w, Height: h}
		}
	}
	if !size.Valid() {
		return ScreenSize{}, fmt.Errorf("unexpected wm size output %q", strings.TrimSpace(output))
	}
	return size, nil
}

func (d *AndroidDevice) MoveTo(ctx context.Context, x, y int) error {
	d.mu.Lock()
	d.x, d.y = x, y
	down := d.down
	d.mu.Unlock()

	if !down {
		return nil
	}
	return d.shellInput(ctx, "motionevent", "MOVE", strconv.Itoa(x), strconv.Itoa(y))
}

func (d *AndroidDevice) position() (string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strconv.Itoa(d.x), strconv.Itoa(d.y)
}

func (d *AndroidDevice) ButtonDown(ctx context.Context) error {
	x, y := d.position()
	if err := d.shellInput(ctx, "motionevent", "DOWN", x, y); err != nil {
		return err
	}
	d.mu.Lock()
	d.down = true
	d.mu.Unlock()
	return nil
}

func (d *AndroidDevice) ButtonUp(ctx context.Context) error {
	x, y := d.position()
	d.mu.Lock()
	d.down = false
	d.mu.Unlock()
	return d.shellInput(ctx, "motionevent", "UP", x, y)
}

// Click taps at the current position.
func (d *AndroidDevice) Click(ctx context.Context) error {
	x, y := d.position()
	return d.shellInput(ctx, "tap", x, y)
}

// Scroll swipes vertically from the current position. Positive amounts
// scroll up, which drags the content down.
func (d *AndroidDevice) Scroll(ctx context.Context, amount int) error {
	if amount == 0 {
		return nil
	}

	d.mu.Lock()
	x, y, screen := d.x, d.y, d.screen
	d.mu.Unlock()

	if !screen.Valid() {
		var err error
		if screen, err = d.ScreenSize(ctx); err != nil {
			return err
		}
	}

	endY := y + amount*screen.Height/d.opts.ScrollSpan
	endY = max(0, min(screen.Height-1, endY))

	return d.shellInput(ctx, "swipe",
		strconv.Itoa(x), strconv.Itoa(y),
		strconv.Itoa(x), strconv.Itoa(endY),
		"300")
}

// TypeText sends ASCII text through "input text". adb offers no per-key
// pacing, so interval is ignored.
func (d *AndroidDevice) TypeText(ctx context.Context, text string, interval time.Duration) error {
	if text == "" {
		return nil
	}
	if !isAscii(text) {
		return fmt.Errorf("non-ASCII text: %w", ErrUnsupported)
	}
	return d.shellInput(ctx, "text", escapeShellText(text))
}

func (d *AndroidDevice) Close() error {
	return nil
}

func isAscii(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
	}
	return true
}

// escapeShellText backslash-escapes characters the device shell would interpret.
func escapeShellText(text string) string {
	const special = " '\"\\;|&()<>$*?`~!#{}[]"
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(special, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseAdbDevicesOutput(output string) []DeviceInfo {
	var devices []DeviceInfo

	lines := strings.Split(output, "\n")
	for i := 1; i < len(lines); i++ {
		parts := strings.Fields(strings.TrimSpace(lines[i]))
		if len(parts) < 2 {
			continue
		}

		deviceType := "real"
		if strings.HasPrefix(parts[0], "emulator-") {
			deviceType = "emulator"
		}
		devices = append(devices, DeviceInfo{
			ID:       parts[0],
			Name:     parts[0],
			Platform: "android",
			Type:     deviceType,
			State:    parts[1],
		})
	}

	return devices
}

// ListAndroidDevices returns the devices adb can see.
func ListAndroidDevices(ctx context.Context) ([]DeviceInfo, error) {
	adb := AdbPath()
	if adb == "" {
		return nil, fmt.Errorf("adb not found: %w", ErrDeviceUnavailable)
	}

	output, err := newExecRunner()(ctx, adb, "devices")
	if err != nil {
		return nil, fmt.Errorf("failed to run 'adb devices': %w", err)
	}
	return parseAdbDevicesOutput(string(output)), nil
}

func androidSdkPath() string {
	if sdkPath := os.Getenv("ANDROID_HOME"); sdkPath != "" {
		if _, err := os.Stat(sdkPath); err == nil {
			return sdkPath
		}
	}

	homeDir, _ := os.UserHomeDir()
	candidates := []string{}
	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates, filepath.Join(homeDir, "Library", "Android", "sdk"))
	case "linux":
		candidates = append(candidates, filepath.Join(homeDir, "Android", "Sdk"))
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			candidates = append(candidates, filepath.Join(localAppData, "Android", "Sdk"))
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// AdbPath locates adb in the Android SDK or on PATH, or returns "".
func AdbPath() string {
	if sdkPath := androidSdkPath(); sdkPath != "" {
		adbPath := filepath.Join(sdkPath, "platform-tools", "adb")
		if runtime.GOOS == "windows" {
			adbPath += ".exe"
		}
		if _, err := os.Stat(adbPath); err == nil {
			return adbPath
		}
	}

	if adbPath, err := exec.LookPath("adb"); err == nil {
		return adbPath
	}
	return ""
}
