//go:build !windows

package deploy

import (
	"os/exec"
	"syscall"
)

// killProcessTree kills the copy tool's session. pty.Start makes the child a
// session leader, so its pid is also the process group id and the ssh
// subprocess goes down with it.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
