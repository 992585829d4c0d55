package devices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mobile-next/handsfree/utils"
)

// runner executes an external command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// newExecRunner returns a runner that spawns real processes with extra
// environment variables appended to the current environment.
func newExecRunner(env ...string) runner {
	return execRunner(false, env)
}

// newDetachedRunner runs commands in their own process group, so a terminal
// interrupt aimed at handsfree does not reach what they launch.
func newDetachedRunner() runner {
	return execRunner(true, nil)
}

func execRunner(detached bool, env []string) runner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}
		if detached {
			utils.ConfigureDetachedProcAttr(cmd)
		}

		utils.Verbose("Running %s %s", name, strings.Join(args, " "))
		output, err := cmd.CombinedOutput()
		if err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				return output, fmt.Errorf("%s not found in PATH: %w", name, ErrDeviceUnavailable)
			}
			return output, fmt.Errorf("%s %s failed: %w\nOutput: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
		}
		return output, nil
	}
}
