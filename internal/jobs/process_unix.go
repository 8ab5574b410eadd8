//go:build !windows

package jobs

import (
	"os"
	"os/exec"
)

// configureProcess is a no-op on non-Windows platforms.
func configureProcess(_ *exec.Cmd) {}

// interruptProcess asks the worker to stop so it can flush its report.
func interruptProcess(p *os.Process) error {
	return p.Signal(os.Interrupt)
}
