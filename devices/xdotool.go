package devices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	xdotoolBinary = "xdotool"

	buttonLeft       = "1"
	buttonScrollUp   = "4"
	buttonScrollDown = "5"
)

// XdotoolOptions configure the X11 desktop backend.
type XdotoolOptions struct {
	// Display overrides $DISPLAY for the spawned commands.
	Display string
	// ScrollUnit is how many scroll amount units make one wheel click.
	ScrollUnit int
}

// XdotoolDevice drives the X11 pointer and keyboard through xdotool.
type XdotoolDevice struct {
	opts XdotoolOptions
	run  runner
}

// NewXdotoolDevice creates the desktop backend.
func NewXdotoolDevice(opts XdotoolOptions) *XdotoolDevice {
	if opts.ScrollUnit <= 0 {
		opts.ScrollUnit = 40
	}
	var env []string
	if opts.Display != "" {
		env = append(env, "DISPLAY="+opts.Display)
	}
	return &XdotoolDevice{opts: opts, run: newExecRunner(env...)}
}

func (d *XdotoolDevice) Name() string {
	return "xdotool"
}

func (d *XdotoolDevice) xdotool(ctx context.Context, args ...string) ([]byte, error) {
	return d.run(ctx, xdotoolBinary, args...)
}

// ScreenSize queries the root window geometry.
func (d *XdotoolDevice) ScreenSize(ctx context.Context) (ScreenSize, error) {
	output, err := d.xdotool(ctx, "getdisplaygeometry")
	if err != nil {
		return ScreenSize{}, fmt.Errorf("failed to get display geometry: %w", err)
	}
	return parseDisplayGeometry(string(output))
}

func parseDisplayGeometry(output string) (ScreenSize, error) {
	fields := strings.Fields(output)
	if len(fields) != 2 {
		return ScreenSize{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(output))
	}
	w, errW := strconv.Atoi(fields[0])
	h, errH := strconv.Atoi(fields[1])
	if errW != nil || errH != nil {
		return ScreenSize{}, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(output))
	}
	return ScreenSize{Width: w, Height: h}, nil
}

func (d *XdotoolDevice) MoveTo(ctx context.Context, x, y int) error {
	_, err := d.xdotool(ctx, "mousemove", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

func (d *XdotoolDevice) ButtonDown(ctx context.Context) error {
	_, err := d.xdotool(ctx, "mousedown", buttonLeft)
	return err
}

func (d *XdotoolDevice) ButtonUp(ctx context.Context) error {
	_, err := d.xdotool(ctx, "mouseup", buttonLeft)
	return err
}

func (d *XdotoolDevice) Click(ctx context.Context) error {
	_, err := d.xdotool(ctx, "click", buttonLeft)
	return err
}

// Scroll converts the amount to wheel clicks on buttons 4 (up) or 5 (down).
func (d *XdotoolDevice) Scroll(ctx context.Context, amount int) error {
	clicks, button := scrollClicks(amount, d.opts.ScrollUnit)
	if clicks == 0 {
		return nil
	}
	_, err := d.xdotool(ctx, "click", "--repeat", strconv.Itoa(clicks), button)
	return err
}

func scrollClicks(amount, unit int) (int, string) {
	button := buttonScrollUp
	if amount < 0 {
		button = buttonScrollDown
		amount = -amount
	}
	if amount == 0 {
		return 0, button
	}
	clicks := amount / unit
	if clicks == 0 {
		clicks = 1
	}
	return clicks, button
}

func (d *XdotoolDevice) TypeText(ctx context.Context, text string, interval time.Duration) error {
	if text == "" {
		return nil
	}
	_, err := d.xdotool(ctx, "type", "--delay", strconv.FormatInt(interval.Milliseconds(), 10), "--", text)
	return err
}

func (d *XdotoolDevice) Close() error {
	return nil
}
