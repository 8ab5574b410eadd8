// Package domain holds the pure types shared by the episode, trainer and
// job packages: verdicts, transcripts, job records and sentinel errors.
package domain

import "time"

// JobState is the liveness answer to a status query.
type JobState string

const (
	JobRunning JobState = "RUNNING"
	JobIdle    JobState = "IDLE"
)

// JobOutcome records how a training job ended.
type JobOutcome string

const (
	OutcomeRunning   JobOutcome = "RUNNING"
	OutcomeSucceeded JobOutcome = "SUCCEEDED"
	OutcomeFailed    JobOutcome = "FAILED"
	OutcomeCancelled JobOutcome = "CANCELLED"
	OutcomeTimedOut  JobOutcome = "TIMED_OUT"
)

// IsTerminal returns true if the outcome is final.
func (o JobOutcome) IsTerminal() bool {
	return o != OutcomeRunning && o != ""
}

// TrainingReport summarizes a finished (or interrupted) training run.
type TrainingReport struct {
	Steps          int64   `json:"steps" yaml:"steps"`
	Episodes       int64   `json:"episodes" yaml:"episodes"`
	Approved       int64   `json:"approved" yaml:"approved"`
	MeanReward     float64 `json:"mean_reward" yaml:"mean_reward"`
	BestEvalReward float64 `json:"best_eval_reward" yaml:"best_eval_reward"`
	Evaluations    int     `json:"evaluations" yaml:"evaluations"`
}

// JobRecord is the persisted view of one training job.
type JobRecord struct {
	ID         string          `json:"id"`
	Outcome    JobOutcome      `json:"outcome"`
	Isolation  string          `json:"isolation"`
	ConfigJSON string          `json:"-"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
	Error      string          `json:"error,omitempty"`
	Report     *TrainingReport `json:"report,omitempty"`
}

// IsTerminal returns true if the job has reached a final state.
func (j *JobRecord) IsTerminal() bool {
	return j.Outcome.IsTerminal()
}

// Duration returns the wall time of the job (up to now while running).
func (j *JobRecord) Duration() time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	end := j.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(j.StartedAt)
}
