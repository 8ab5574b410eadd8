package grader

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
}

// Script runs a Starlark grade(task, artifact) function.
//
// The function may return a bool, or a (passed, feedback) tuple. A bool
// result gets the reference feedback strings.
type Script struct {
	name     string
	fn       starlark.Callable
	maxSteps uint64
}

// LoadScript reads and compiles a grading script from disk.
func LoadScript(path string, maxSteps uint64) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grader script: %w", err)
	}
	return CompileScript(path, string(src), maxSteps)
}

// CompileScript executes src once and captures its grade function.
func CompileScript(name, src string, maxSteps uint64) (*Script, error) {
	thread := &starlark.Thread{Name: "grader-load"}
	globals, err := starlark.ExecFileOptions(fileOptions, thread, name, src, nil)
	if err != nil {
		return nil, fmt.Errorf("load grader script %s: %w", name, err)
	}
	globals.Freeze()

	fn, ok := globals["grade"].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("grader script %s: grade(task, artifact) not defined", name)
	}
	return &Script{name: name, fn: fn, maxSteps: maxSteps}, nil
}

// Grade calls the script. Script errors become failing verdicts.
func (s *Script) Grade(task, artifact string) domain.Verdict {
	thread := &starlark.Thread{Name: "grader"}
	if s.maxSteps > 0 {
		thread.SetMaxExecutionSteps(s.maxSteps)
	}

	v, err := starlark.Call(thread, s.fn, starlark.Tuple{
		starlark.String(task),
		starlark.String(artifact),
	}, nil)
	if err != nil {
		return domain.Verdict{
			Passed:   false,
			Feedback: fmt.Sprintf("%s\nGrader error: %v", RejectedFeedback, err),
		}
	}
	return toVerdict(v)
}

func toVerdict(v starlark.Value) domain.Verdict {
	if t, ok := v.(starlark.Tuple); ok && len(t) == 2 {
		passed := bool(t[0].Truth())
		feedback, ok := starlark.AsString(t[1])
		if !ok {
			feedback = t[1].String()
		}
		return domain.Verdict{Passed: passed, Feedback: feedback}
	}
	if v.Truth() {
		return domain.Verdict{Passed: true, Feedback: ApprovedFeedback}
	}
	return domain.Verdict{Passed: false, Feedback: RejectedFeedback}
}
