// Package episode implements the turn-bounded review episode: an agent
// submits an artifact, a grader judges it, and the episode either ends with
// a reward or continues until its turn budget is spent.
//
// An Env is owned by a single trainer loop; Step and Reset are not safe for
// concurrent use.
package episode

import (
	"fmt"
	"io"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/grader"
	"github.com/tutu-network/tutu-gym/internal/infra/metrics"
)

// DefaultTask is the task given to agents when none is configured.
const DefaultTask = "Create a function that adds two numbers."

// DefaultMaxTurns is the turn budget of an episode.
const DefaultMaxTurns = 5

// State is the position of an episode in its lifecycle.
type State string

const (
	StateActive    State = "active"
	StateApproved  State = "approved"  // terminal, reward 1
	StateExhausted State = "exhausted" // terminal, reward 0
)

// IsTerminal returns true for approved and exhausted episodes.
func (s State) IsTerminal() bool {
	return s == StateApproved || s == StateExhausted
}

// StepResult is what one Step hands back to the trainer.
type StepResult struct {
	Observation string
	Reward      float64
	Done        bool
	Info        map[string]any
}

// Env is one episode environment.
type Env struct {
	task       string
	grader     grader.Grader
	maxTurns   int
	turn       int
	state      State
	obs        string
	transcript []domain.Exchange
}

// Option configures an Env.
type Option func(*Env)

// WithMaxTurns sets the turn budget. Non-positive values keep the default.
func WithMaxTurns(n int) Option {
	return func(e *Env) {
		if n > 0 {
			e.maxTurns = n
		}
	}
}

// New creates an episode for task, judged by g, in the active state.
// An empty task uses DefaultTask; a nil grader uses the keyword policy.
func New(task string, g grader.Grader, opts ...Option) *Env {
	if task == "" {
		task = DefaultTask
	}
	if g == nil {
		g = grader.NewKeyword("")
	}
	e := &Env{
		task:     task,
		grader:   g,
		maxTurns: DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Reset()
	return e
}

// Reset returns the episode to the active state and yields the task as the
// initial observation.
func (e *Env) Reset() string {
	e.turn = 0
	e.state = StateActive
	e.transcript = nil
	e.obs = e.task
	return e.obs
}

// Step submits one artifact.
//
// The observation concatenates the task, the submitted artifact and the
// grader feedback, in that order, under labelled sections. Stepping a
// terminal episode is a no-op that reports done with zero reward and
// info["ignored"] set; the turn counter never exceeds the budget.
func (e *Env) Step(artifact string) StepResult {
	if e.state.IsTerminal() {
		return StepResult{
			Observation: e.obs,
			Reward:      0,
			Done:        true,
			Info:        map[string]any{"ignored": true},
		}
	}

	e.turn++
	metrics.EpisodeSteps.Inc()

	v := e.grader.Grade(e.task, artifact)
	e.transcript = append(e.transcript, domain.Exchange{
		Artifact: artifact,
		Feedback: v.Feedback,
		Passed:   v.Passed,
	})

	var reward float64
	switch {
	case v.Passed:
		reward = 1.0
		e.state = StateApproved
	case e.turn >= e.maxTurns:
		e.state = StateExhausted
	}

	e.obs = FormatObservation(e.task, artifact, v.Feedback)

	done := e.state.IsTerminal()
	if done {
		metrics.EpisodesFinished.WithLabelValues(string(e.state)).Inc()
		metrics.EpisodeTurns.Observe(float64(e.turn))
	}

	return StepResult{
		Observation: e.obs,
		Reward:      reward,
		Done:        done,
		Info:        map[string]any{},
	}
}

// FormatObservation renders the next-turn context shown to the agent.
func FormatObservation(task, artifact, feedback string) string {
	return fmt.Sprintf("Task: %s\nPrevious Code:\n%s\nFeedback:\n%s", task, artifact, feedback)
}

// Render writes the current observation to w.
func (e *Env) Render(w io.Writer) error {
	_, err := fmt.Fprintln(w, e.obs)
	return err
}

// Observation returns the current observation text.
func (e *Env) Observation() string { return e.obs }

// Task returns the episode's task description.
func (e *Env) Task() string { return e.task }

// Turn returns the number of artifacts submitted since the last reset.
func (e *Env) Turn() int { return e.turn }

// MaxTurns returns the turn budget.
func (e *Env) MaxTurns() int { return e.maxTurns }

// State returns the lifecycle state.
func (e *Env) State() State { return e.state }

// Done reports whether the episode is terminal.
func (e *Env) Done() bool { return e.state.IsTerminal() }

// Transcript returns a copy of the exchanges since the last reset.
func (e *Env) Transcript() []domain.Exchange {
	out := make([]domain.Exchange, len(e.transcript))
	copy(out, e.transcript)
	return out
}
