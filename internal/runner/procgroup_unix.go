//go:build linux || darwin || freebsd || netbsd || openbsd

package runner

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the command in its own process group and
// makes cancellation kill the whole group, so children of the tool die with it
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
