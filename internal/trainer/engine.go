package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/episode"
	"github.com/tutu-network/tutu-gym/internal/infra/metrics"
)

// EnvFactory creates a fresh episode environment.
type EnvFactory func() *episode.Env

// Engine runs one training job.
type Engine struct {
	cfg    Config
	agent  Agent
	newEnv EnvFactory
	logger *slog.Logger
	rng    *rand.Rand
	now    func() time.Time
}

// New validates cfg and creates an engine. A nil agent gets a PolicyAgent
// over DefaultCandidates.
func New(cfg Config, agent Agent, newEnv EnvFactory, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if newEnv == nil {
		return nil, fmt.Errorf("%w: trainer needs an environment factory", domain.ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	if agent == nil {
		agent = NewPolicyAgent(DefaultCandidates, cfg.NetDim, cfg.LearningRate, rng)
	}

	return &Engine{
		cfg:    cfg,
		agent:  agent,
		newEnv: newEnv,
		logger: logger.With("component", "trainer"),
		rng:    rng,
		now:    time.Now,
	}, nil
}

type pending struct {
	obs    string
	action int
	reward float64
}

// Run trains until BreakStep steps have been taken or ctx is done. The
// report is returned in both cases; the error is ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) (domain.TrainingReport, error) {
	var (
		report      domain.TrainingReport
		totalReward float64
		buffer      []Transition
		trajectory  []pending
		lastEval    = e.now()
	)

	env := e.newEnv()
	obs := env.Reset()
	e.logger.Info("training started",
		"break_step", e.cfg.BreakStep,
		"net_dim", e.cfg.NetDim,
		"max_step", e.cfg.MaxStep,
	)

	finish := func() {
		if report.Episodes > 0 {
			report.MeanReward = totalReward / float64(report.Episodes)
		}
	}

	for report.Steps < e.cfg.BreakStep {
		if err := ctx.Err(); err != nil {
			finish()
			e.logger.Warn("training interrupted", "steps", report.Steps, "error", err)
			return report, err
		}

		act := e.agent.Act(obs, true)
		if err := domain.CheckText(act.Text); err != nil {
			finish()
			return report, fmt.Errorf("agent action: %w", err)
		}

		r := env.Step(act.Text)
		report.Steps++
		trajectory = append(trajectory, pending{obs: obs, action: act.Index, reward: r.Reward})

		if r.Done {
			buffer = append(buffer, discount(trajectory, e.cfg.Gamma)...)
			trajectory = trajectory[:0]
			report.Episodes++
			totalReward += r.Reward
			if env.State() == episode.StateApproved {
				report.Approved++
			}
			obs = env.Reset()
		} else {
			obs = r.Observation
		}

		if report.Steps%int64(e.cfg.MaxStep) == 0 {
			e.update(buffer)
			buffer = buffer[:0]
			e.logger.Debug("round complete", "steps", report.Steps, "episodes", report.Episodes)
		}

		if gap := e.cfg.EvalInterval(); gap > 0 && e.now().Sub(lastEval) >= gap {
			e.evaluate(&report)
			lastEval = e.now()
		}
	}

	e.update(buffer)
	e.evaluate(&report)
	finish()

	e.logger.Info("training finished",
		"steps", report.Steps,
		"episodes", report.Episodes,
		"mean_reward", report.MeanReward,
		"best_eval_reward", report.BestEvalReward,
	)
	return report, nil
}

// update runs RepeatTimes shuffled passes of BatchSize minibatches.
func (e *Engine) update(buffer []Transition) {
	if len(buffer) == 0 {
		return
	}
	for range e.cfg.RepeatTimes {
		e.rng.Shuffle(len(buffer), func(i, j int) { buffer[i], buffer[j] = buffer[j], buffer[i] })
		for start := 0; start < len(buffer); start += e.cfg.BatchSize {
			end := min(start+e.cfg.BatchSize, len(buffer))
			e.agent.Learn(buffer[start:end])
		}
		metrics.PolicyUpdates.Inc()
	}
}

// evaluate plays EvalTimes1 greedy episodes; a new best is confirmed with
// EvalTimes2 more before it is recorded.
func (e *Engine) evaluate(report *domain.TrainingReport) {
	mean := e.playGreedy(e.cfg.EvalTimes1)
	if mean > report.BestEvalReward && e.cfg.EvalTimes2 > 0 {
		confirm := e.playGreedy(e.cfg.EvalTimes2)
		n1, n2 := float64(e.cfg.EvalTimes1), float64(e.cfg.EvalTimes2)
		mean = (mean*n1 + confirm*n2) / (n1 + n2)
	}
	report.Evaluations++
	report.BestEvalReward = max(report.BestEvalReward, mean)
	metrics.EvalReward.Set(mean)
	e.logger.Info("evaluation", "steps", report.Steps, "eval_reward", mean, "best", report.BestEvalReward)
}

func (e *Engine) playGreedy(n int) float64 {
	env := e.newEnv()
	var total float64
	for range n {
		obs := env.Reset()
		for {
			r := env.Step(e.agent.Act(obs, false).Text)
			if r.Done {
				total += r.Reward
				break
			}
			obs = r.Observation
		}
	}
	return total / float64(n)
}

// discount converts a finished trajectory into transitions with
// gamma-discounted returns.
func discount(traj []pending, gamma float64) []Transition {
	out := make([]Transition, len(traj))
	var g float64
	for i := len(traj) - 1; i >= 0; i-- {
		g = traj[i].reward + gamma*g
		out[i] = Transition{Obs: traj[i].obs, Action: traj[i].action, Return: g}
	}
	return out
}
