// Package metrics provides Prometheus metrics for tutu-gym: grading,
// episodes, training progress and job lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Grading ────────────────────────────────────────────────────────────────

// GradeLatency tracks grader call duration in seconds.
var GradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "tutu_gym",
	Name:      "grade_latency_seconds",
	Help:      "Grader call duration in seconds.",
	Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30},
}, []string{"grader"})

// Verdicts tracks grader verdicts by grader kind and result.
var Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tutu_gym",
	Name:      "verdicts_total",
	Help:      "Total grader verdicts.",
}, []string{"grader", "result"})

// ─── Episodes ───────────────────────────────────────────────────────────────

// EpisodeSteps tracks total episode steps taken.
var EpisodeSteps = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tutu_gym",
	Name:      "episode_steps_total",
	Help:      "Total steps taken across all episodes.",
})

// EpisodesFinished tracks finished episodes by final state.
var EpisodesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tutu_gym",
	Name:      "episodes_finished_total",
	Help:      "Total finished episodes by final state.",
}, []string{"state"})

// EpisodeTurns tracks the number of turns an episode took to finish.
var EpisodeTurns = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "tutu_gym",
	Name:      "episode_turns",
	Help:      "Turns taken by finished episodes.",
	Buckets:   []float64{1, 2, 3, 4, 5, 8, 13, 21},
})

// ─── Training ───────────────────────────────────────────────────────────────

// EvalReward tracks the latest evaluation mean reward.
var EvalReward = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tutu_gym",
	Name:      "eval_reward",
	Help:      "Mean reward of the latest evaluation round.",
})

// PolicyUpdates tracks optimizer passes.
var PolicyUpdates = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tutu_gym",
	Name:      "policy_updates_total",
	Help:      "Total policy update passes.",
})

// ─── Jobs ───────────────────────────────────────────────────────────────────

// JobsStarted tracks accepted start requests.
var JobsStarted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tutu_gym",
	Name:      "jobs_started_total",
	Help:      "Total training jobs started.",
})

// JobsRejected tracks start requests rejected because a job was running.
var JobsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tutu_gym",
	Name:      "jobs_rejected_total",
	Help:      "Total start requests rejected while a job was running.",
})

// JobsActive is 1 while a training job is alive.
var JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tutu_gym",
	Name:      "jobs_active",
	Help:      "Number of currently alive training jobs (0 or 1).",
})

// JobOutcomes tracks finished jobs by outcome.
var JobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tutu_gym",
	Name:      "job_outcomes_total",
	Help:      "Total finished training jobs by outcome.",
}, []string{"outcome"})

// JobDuration tracks training job wall time.
var JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "tutu_gym",
	Name:      "job_duration_seconds",
	Help:      "Training job wall time in seconds.",
	Buckets:   []float64{1, 10, 60, 300, 900, 3600, 4 * 3600, 12 * 3600},
})
