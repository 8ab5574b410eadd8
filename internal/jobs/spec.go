package jobs

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/episode"
	"github.com/tutu-network/tutu-gym/internal/grader"
	"github.com/tutu-network/tutu-gym/internal/logging"
	"github.com/tutu-network/tutu-gym/internal/trainer"
)

// Spec is everything a launcher needs to run one training job. It is
// written as YAML for subprocess workers.
type Spec struct {
	ID       string         `yaml:"id"`
	Task     string         `yaml:"task"`
	MaxTurns int            `yaml:"max_turns"`
	Grader   grader.Config  `yaml:"grader"`
	Training trainer.Config `yaml:"training"`
	// Logging is applied by subprocess workers; in-process jobs share the
	// daemon's logger.
	Logging logging.Config `yaml:"logging"`
}

// DefaultSpec returns the reference task, turn budget, grader and
// hyperparameters.
func DefaultSpec() Spec {
	return Spec{
		Task:     episode.DefaultTask,
		MaxTurns: episode.DefaultMaxTurns,
		Grader:   grader.DefaultConfig(),
		Training: trainer.DefaultConfig(),
		Logging:  logging.DefaultConfig(),
	}
}

// Engine builds the grader, environment factory and trainer for s.
func (s Spec) Engine(logger *slog.Logger) (*trainer.Engine, error) {
	g, err := grader.New(s.Grader)
	if err != nil {
		return nil, fmt.Errorf("build grader: %w", err)
	}
	task, maxTurns := s.Task, s.MaxTurns
	newEnv := func() *episode.Env {
		return episode.New(task, g, episode.WithMaxTurns(maxTurns))
	}
	return trainer.New(s.Training, nil, newEnv, logger)
}

// WriteSpec writes s to path as YAML.
func WriteSpec(path string, s Spec) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal job spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write job spec: %w", err)
	}
	return nil
}

// ReadSpec loads a YAML job spec. Fields missing from the file keep their
// DefaultSpec values.
func ReadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read job spec: %w", err)
	}
	s := DefaultSpec()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("%w: parse job spec %s: %v", domain.ErrInvalidConfig, path, err)
	}
	return s, nil
}

