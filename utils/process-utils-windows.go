//go:build windows

package utils

import (
	"os/exec"
	"syscall"
)

// ConfigureDetachedProcAttr starts cmd in a new process group so console
// Ctrl-C events sent to handsfree do not reach it.
func ConfigureDetachedProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
