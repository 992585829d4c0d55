package devices

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
)

// SystemBrowser opens URLs with the desktop's default browser.
type SystemBrowser struct {
	goos string
	run  runner
}

// NewSystemBrowser creates an opener for the current platform.
func NewSystemBrowser() *SystemBrowser {
	return &SystemBrowser{goos: runtime.GOOS, run: newDetachedRunner()}
}

// OpenURL launches the browser. Only http and https URLs are accepted.
func (b *SystemBrowser) OpenURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: only http(s) URLs are supported", rawURL)
	}

	name, args, err := browserCommand(b.goos, u.String())
	if err != nil {
		return err
	}
	if _, err := b.run(ctx, name, args...); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(goos, target string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	}
	return "", nil, fmt.Errorf("unsupported platform: %s", goos)
}
