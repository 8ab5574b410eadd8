package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestGradeMetrics(t *testing.T) {
	// promauto registers with the default registry automatically.
	GradeLatency.WithLabelValues("keyword").Observe(0.0005)
	Verdicts.WithLabelValues("keyword", "pass").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"tutu_gym_grade_latency_seconds",
		"tutu_gym_verdicts_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestEpisodeMetrics(t *testing.T) {
	EpisodeSteps.Inc()
	EpisodesFinished.WithLabelValues("approved").Inc()
	EpisodeTurns.Observe(3)
	EvalReward.Set(0.75)
	PolicyUpdates.Inc()

	names := gatheredNames(t)
	expected := []string{
		"tutu_gym_episode_steps_total",
		"tutu_gym_episodes_finished_total",
		"tutu_gym_episode_turns",
		"tutu_gym_eval_reward",
		"tutu_gym_policy_updates_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestJobMetrics(t *testing.T) {
	JobsStarted.Inc()
	JobsRejected.Inc()
	JobsActive.Set(1)
	JobOutcomes.WithLabelValues("SUCCEEDED").Inc()
	JobDuration.Observe(42)

	names := gatheredNames(t)
	expected := []string{
		"tutu_gym_jobs_started_total",
		"tutu_gym_jobs_rejected_total",
		"tutu_gym_jobs_active",
		"tutu_gym_job_outcomes_total",
		"tutu_gym_job_duration_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
