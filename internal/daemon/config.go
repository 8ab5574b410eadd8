// Package daemon manages the training daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/episode"
	"github.com/tutu-network/tutu-gym/internal/grader"
	"github.com/tutu-network/tutu-gym/internal/jobs"
	"github.com/tutu-network/tutu-gym/internal/logging"
	"github.com/tutu-network/tutu-gym/internal/trainer"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Episode   EpisodeConfig   `toml:"episode"`
	Grader    GraderConfig    `toml:"grader"`
	Training  trainer.Config  `toml:"training"`
	Jobs      JobsConfig      `toml:"jobs"`
	Logging   logging.Config  `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// EpisodeConfig sets the task every training episode works on.
type EpisodeConfig struct {
	Task     string `toml:"task"`
	MaxTurns int    `toml:"max_turns"`
}

// GraderConfig selects the grading policy.
type GraderConfig struct {
	Kind       string   `toml:"kind"`
	Keyword    string   `toml:"keyword"`
	ScriptPath string   `toml:"script_path"`
	MaxSteps   uint64   `toml:"max_steps"`
	Command    []string `toml:"command"`
	Timeout    string   `toml:"timeout"`
}

// JobsConfig controls how training jobs are run.
type JobsConfig struct {
	Isolation   string `toml:"isolation"` // inprocess or subprocess
	Timeout     string `toml:"timeout"`   // empty = no limit
	Dir         string `toml:"dir"`       // worker spec and report files
	GracePeriod string `toml:"grace_period"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// Isolation modes.
const (
	IsolationInProcess  = "inprocess"
	IsolationSubprocess = "subprocess"
)

// DefaultConfig returns the reference setup: the add-two-numbers task,
// keyword grading and in-process training.
func DefaultConfig() Config {
	homeDir := gymHome()
	g := grader.DefaultConfig()
	logCfg := logging.DefaultConfig()
	logCfg.File = filepath.Join(homeDir, "tutu-gym.log")
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        5000,
			CORSOrigins: []string{"*"},
		},
		Episode: EpisodeConfig{
			Task:     episode.DefaultTask,
			MaxTurns: episode.DefaultMaxTurns,
		},
		Grader: GraderConfig{
			Kind:     string(g.Kind),
			Keyword:  g.Keyword,
			MaxSteps: g.MaxSteps,
			Timeout:  g.Timeout.String(),
		},
		Training: trainer.DefaultConfig(),
		Jobs: JobsConfig{
			Isolation:   IsolationInProcess,
			Dir:         filepath.Join(homeDir, "jobs"),
			GracePeriod: jobs.DefaultGracePeriod.String(),
		},
		Logging: logCfg,
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// Validate checks the values the daemon cannot start without.
func (c Config) Validate() error {
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("%w: api.port %d out of range", domain.ErrInvalidConfig, c.API.Port)
	}
	if c.Episode.MaxTurns <= 0 {
		return fmt.Errorf("%w: episode.max_turns must be positive", domain.ErrInvalidConfig)
	}
	if !slices.Contains([]string{IsolationInProcess, IsolationSubprocess}, c.Jobs.Isolation) {
		return fmt.Errorf("%w: jobs.isolation %q", domain.ErrInvalidConfig, c.Jobs.Isolation)
	}
	for key, val := range map[string]string{
		"grader.timeout":    c.Grader.Timeout,
		"jobs.timeout":      c.Jobs.Timeout,
		"jobs.grace_period": c.Jobs.GracePeriod,
	} {
		if err := checkDuration(val); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
		}
	}
	training := c.Training
	return training.Validate()
}

// checkDuration accepts an empty string (use the default) or a
// non-negative Go duration.
func checkDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	return nil
}

// GraderSettings converts the TOML grader section.
func (c Config) GraderSettings() grader.Config {
	return grader.Config{
		Kind:       grader.Kind(c.Grader.Kind),
		Keyword:    c.Grader.Keyword,
		ScriptPath: c.Grader.ScriptPath,
		MaxSteps:   c.Grader.MaxSteps,
		Command:    c.Grader.Command,
		Timeout:    parseDuration(c.Grader.Timeout, grader.DefaultConfig().Timeout),
	}
}

// JobTemplate is the job spec every training run starts from.
func (c Config) JobTemplate() jobs.Spec {
	return jobs.Spec{
		Task:     c.Episode.Task,
		MaxTurns: c.Episode.MaxTurns,
		Grader:   c.GraderSettings(),
		Training: c.Training,
		Logging:  c.Logging,
	}
}

// LoadConfig reads config from $TUTU_GYM_HOME/config.toml, falling back
// to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $TUTU_GYM_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(gymHome(), "config.toml")
}

// gymHome returns the data directory.
func gymHome() string {
	if env := os.Getenv("TUTU_GYM_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tutu-gym")
}

// Home is exported for use by other packages.
func Home() string {
	return gymHome()
}

// parseDuration parses a duration string, returning a fallback when it is
// empty. Validate has already rejected malformed values.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
