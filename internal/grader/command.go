package grader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// Command grades an artifact by running an external checker on it.
// The artifact is written to a temp file whose path is appended to the argv;
// exit status 0 approves.
type Command struct {
	argv    []string
	timeout time.Duration
	breaker *breaker
}

// Breaker settings of the command grader.
const (
	breakerThreshold    = 5
	breakerResetTimeout = 30 * time.Second
)

// NewCommand returns a test-execution grader.
func NewCommand(argv []string, timeout time.Duration) (*Command, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: command grader needs a command", domain.ErrInvalidConfig)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Command{
		argv:    argv,
		timeout: timeout,
		breaker: newBreaker(breakerThreshold, breakerResetTimeout),
	}, nil
}

// Grade runs the checker. Output is capped to the last lines for feedback.
func (c *Command) Grade(_ string, artifact string) domain.Verdict {
	if err := c.breaker.allow(); err != nil {
		return failed(err.Error())
	}
	v, healthy := c.run(artifact)
	if healthy {
		c.breaker.success()
	} else {
		c.breaker.failure()
	}
	return v
}

// run reports healthy=false when the checker itself could not do its job.
func (c *Command) run(artifact string) (v domain.Verdict, healthy bool) {
	f, err := os.CreateTemp("", "artifact-*.txt")
	if err != nil {
		return failed(fmt.Sprintf("write artifact: %v", err)), false
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(artifact); err != nil {
		f.Close()
		return failed(fmt.Sprintf("write artifact: %v", err)), false
	}
	f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	args := append(append([]string{}, c.argv[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return failed(fmt.Sprintf("checker timed out after %s", c.timeout)), false
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return failed(fmt.Sprintf("run checker: %v", err)), false
		}
		return failed(tail(out.String(), 10)), true
	}
	return domain.Verdict{Passed: true, Feedback: ApprovedFeedback}, true
}

func failed(detail string) domain.Verdict {
	if detail == "" {
		return domain.Verdict{Feedback: RejectedFeedback}
	}
	return domain.Verdict{Feedback: RejectedFeedback + "\n" + detail}
}
