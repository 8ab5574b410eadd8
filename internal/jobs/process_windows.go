package jobs

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcess hides the console window for the worker on Windows.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow: true,
	}
}

// interruptProcess kills the worker; Windows has no os.Interrupt for
// child processes.
func interruptProcess(p *os.Process) error {
	return p.Kill()
}
