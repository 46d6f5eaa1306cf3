//go:build windows

package harness

import (
	"errors"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// terminate has no graceful form on Windows; the caller escalates to kill.
func terminate(*exec.Cmd) error {
	return errors.New("terminate not supported")
}

func killProcess(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}
