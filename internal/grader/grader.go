// Package grader scores submitted artifacts. A Grader is a pure policy
// mapping (task, artifact) to a pass/fail verdict with feedback text; the
// episode package depends only on the interface.
package grader

import (
	"fmt"
	"strings"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/infra/metrics"
)

// Feedback strings of the reference policy. Trainers and tests match on them.
const (
	ApprovedFeedback = "LGTM! [APPROVED]"
	RejectedFeedback = "The code is not correct. Please try again."
)

// Grader judges one artifact submitted for a task.
type Grader interface {
	Grade(task, artifact string) domain.Verdict
}

// Func adapts a plain function to the Grader interface.
type Func func(task, artifact string) domain.Verdict

// Grade calls f(task, artifact).
func (f Func) Grade(task, artifact string) domain.Verdict { return f(task, artifact) }

// Kind names a grader implementation in configuration.
type Kind string

const (
	KindKeyword Kind = "keyword"
	KindScript  Kind = "script"
	KindCommand Kind = "command"
)

// Config selects and parameterizes a grader.
type Config struct {
	Kind       Kind          `yaml:"kind"`
	Keyword    string        `yaml:"keyword,omitempty"`     // keyword: substring that approves an artifact
	ScriptPath string        `yaml:"script_path,omitempty"` // script: Starlark file defining grade(task, artifact)
	MaxSteps   uint64        `yaml:"max_steps,omitempty"`   // script: execution step budget per call
	Command    []string      `yaml:"command,omitempty"`     // command: argv; the artifact file path is appended
	Timeout    time.Duration `yaml:"timeout,omitempty"`     // command: per-call time limit
}

// DefaultConfig returns the reference keyword policy.
func DefaultConfig() Config {
	return Config{
		Kind:     KindKeyword,
		Keyword:  DefaultKeyword,
		MaxSteps: 1_000_000,
		Timeout:  30 * time.Second,
	}
}

// New builds the grader named by cfg.Kind, instrumented with metrics.
func New(cfg Config) (Grader, error) {
	var g Grader
	switch cfg.Kind {
	case KindKeyword, "":
		g = NewKeyword(cfg.Keyword)
		cfg.Kind = KindKeyword
	case KindScript:
		s, err := LoadScript(cfg.ScriptPath, cfg.MaxSteps)
		if err != nil {
			return nil, err
		}
		g = s
	case KindCommand:
		c, err := NewCommand(cfg.Command, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		g = c
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGrader, cfg.Kind)
	}
	return Instrument(string(cfg.Kind), g), nil
}

// Instrument wraps g so every call is timed and counted under the given label.
func Instrument(label string, g Grader) Grader {
	return Func(func(task, artifact string) domain.Verdict {
		start := time.Now()
		v := g.Grade(task, artifact)
		metrics.GradeLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
		result := "fail"
		if v.Passed {
			result = "pass"
		}
		metrics.Verdicts.WithLabelValues(label, result).Inc()
		return v
	})
}

// tail returns at most the last n lines of s, trimmed.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
