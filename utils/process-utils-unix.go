//go:build unix

package utils

import (
	"os/exec"
	"syscall"
)

// ConfigureDetachedProcAttr starts cmd in a new process group, so Ctrl-C in
// the terminal running handsfree does not also kill what cmd launches (the
// browser opened for a spoken "open youtube", for example).
func ConfigureDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
