// Package trainer is the training engine: it drives episode environments in
// a tight reset/step loop, collects trajectories and improves an agent's
// policy until a total step budget is spent.
package trainer

import (
	"fmt"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// Config holds the training hyperparameters. The core treats them as opaque;
// Validate is the only place they are checked.
type Config struct {
	Gamma        float64 `json:"gamma" yaml:"gamma" toml:"gamma"`                         // discount factor
	NetDim       int     `json:"net_dim" yaml:"net_dim" toml:"net_dim"`                   // policy feature width
	MaxStep      int     `json:"max_step" yaml:"max_step" toml:"max_step"`                // env steps collected per round
	BatchSize    int     `json:"batch_size" yaml:"batch_size" toml:"batch_size"`          // transitions per update
	RepeatTimes  int     `json:"repeat_times" yaml:"repeat_times" toml:"repeat_times"`    // passes over each round
	EvalGap      int     `json:"eval_gap" yaml:"eval_gap" toml:"eval_gap"`                // seconds between evaluations, 0 = end only
	EvalTimes1   int     `json:"eval_times1" yaml:"eval_times1" toml:"eval_times1"`       // episodes per evaluation
	EvalTimes2   int     `json:"eval_times2" yaml:"eval_times2" toml:"eval_times2"`       // confirmation episodes on a new best
	BreakStep    int64   `json:"break_step" yaml:"break_step" toml:"break_step"`          // total step budget
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate" toml:"learning_rate"` // policy gradient step size
	Seed         int64   `json:"seed" yaml:"seed" toml:"seed"`                            // 0 = time based
}

// DefaultConfig returns the reference hyperparameters.
func DefaultConfig() Config {
	netDim := 1 << 8
	return Config{
		Gamma:        0.99,
		NetDim:       netDim,
		MaxStep:      netDim * 4,
		BatchSize:    netDim,
		RepeatTimes:  1 << 3,
		EvalGap:      30,
		EvalTimes1:   2,
		EvalTimes2:   4,
		BreakStep:    1_000_000,
		LearningRate: 0.01,
	}
}

// Validate checks the integer budgets and clamps gamma into [0, 1].
func (c *Config) Validate() error {
	checks := []struct {
		name string
		v    int64
	}{
		{"net_dim", int64(c.NetDim)},
		{"max_step", int64(c.MaxStep)},
		{"batch_size", int64(c.BatchSize)},
		{"repeat_times", int64(c.RepeatTimes)},
		{"eval_times1", int64(c.EvalTimes1)},
		{"break_step", c.BreakStep},
	}
	for _, ch := range checks {
		if ch.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", domain.ErrInvalidConfig, ch.name, ch.v)
		}
	}
	if c.EvalGap < 0 || c.EvalTimes2 < 0 {
		return fmt.Errorf("%w: eval_gap and eval_times2 must not be negative", domain.ErrInvalidConfig)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning_rate must be positive", domain.ErrInvalidConfig)
	}
	c.Gamma = min(max(c.Gamma, 0), 1)
	return nil
}

// EvalInterval returns EvalGap as a duration.
func (c Config) EvalInterval() time.Duration {
	return time.Duration(c.EvalGap) * time.Second
}
