package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/episode"
	"github.com/tutu-network/tutu-gym/internal/grader"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("TUTU_GYM_HOME", t.TempDir())
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 5000 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 5000)
	}
	if cfg.Episode.MaxTurns != episode.DefaultMaxTurns {
		t.Errorf("Episode.MaxTurns = %d, want %d", cfg.Episode.MaxTurns, episode.DefaultMaxTurns)
	}
	if cfg.Grader.Kind != string(grader.KindKeyword) {
		t.Errorf("Grader.Kind = %q, want keyword", cfg.Grader.Kind)
	}
	if cfg.Training.Gamma != 0.99 {
		t.Errorf("Training.Gamma = %v, want 0.99", cfg.Training.Gamma)
	}
	if cfg.Jobs.Isolation != IsolationInProcess {
		t.Errorf("Jobs.Isolation = %q, want %q", cfg.Jobs.Isolation, IsolationInProcess)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("TUTU_GYM_HOME", t.TempDir())
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.API.Port = 70000 }},
		{"max turns", func(c *Config) { c.Episode.MaxTurns = 0 }},
		{"isolation", func(c *Config) { c.Jobs.Isolation = "container" }},
		{"training", func(c *Config) { c.Training.BatchSize = 0 }},
		{"jobs timeout", func(c *Config) { c.Jobs.Timeout = "30mins" }},
		{"grader timeout", func(c *Config) { c.Grader.Timeout = "soon" }},
		{"grace period", func(c *Config) { c.Jobs.GracePeriod = "-5s" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidate_Durations(t *testing.T) {
	t.Setenv("TUTU_GYM_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Jobs.Timeout = "2h"
	cfg.Grader.Timeout = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Setenv("TUTU_GYM_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != DefaultConfig().API.Port {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TUTU_GYM_HOME", home)

	cfg := DefaultConfig()
	cfg.API.Port = 5050
	cfg.Episode.Task = "Write a function that reverses a string."
	cfg.Grader.Kind = string(grader.KindCommand)
	cfg.Grader.Command = []string{"python3", "check.py"}
	cfg.Grader.Timeout = "5s"
	cfg.Training.BreakStep = 4096
	cfg.Jobs.Isolation = IsolationSubprocess

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.toml")); err != nil {
		t.Fatalf("config.toml not written: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 5050 {
		t.Errorf("API.Port = %d, want 5050", got.API.Port)
	}
	if got.Episode.Task != cfg.Episode.Task {
		t.Errorf("Episode.Task = %q, want %q", got.Episode.Task, cfg.Episode.Task)
	}
	if got.Training.BreakStep != 4096 {
		t.Errorf("Training.BreakStep = %d, want 4096", got.Training.BreakStep)
	}
	if got.Jobs.Isolation != IsolationSubprocess {
		t.Errorf("Jobs.Isolation = %q, want subprocess", got.Jobs.Isolation)
	}

	g := got.GraderSettings()
	if g.Kind != grader.KindCommand || len(g.Command) != 2 || g.Timeout != 5*time.Second {
		t.Errorf("GraderSettings() = %+v", g)
	}
}

func TestLoadConfig_Partial(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TUTU_GYM_HOME", home)
	data := "[api]\nport = 6000\n\n[training]\nbreak_step = 100\n"
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 6000 || cfg.Training.BreakStep != 100 {
		t.Errorf("overrides not applied: port=%d break_step=%d", cfg.API.Port, cfg.Training.BreakStep)
	}
	if cfg.Training.NetDim != 256 || cfg.API.Host != "127.0.0.1" {
		t.Errorf("defaults lost: net_dim=%d host=%q", cfg.Training.NetDim, cfg.API.Host)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := t.TempDir()
	t.Setenv("TUTU_GYM_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("[api\nport ="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should fail on malformed TOML")
	}
}

func TestJobTemplate(t *testing.T) {
	t.Setenv("TUTU_GYM_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Episode.MaxTurns = 3

	spec := cfg.JobTemplate()
	if spec.Task != episode.DefaultTask {
		t.Errorf("Task = %q, want default task", spec.Task)
	}
	if spec.MaxTurns != 3 {
		t.Errorf("MaxTurns = %d, want 3", spec.MaxTurns)
	}
	if spec.Grader.Keyword != grader.DefaultKeyword {
		t.Errorf("Grader.Keyword = %q, want %q", spec.Grader.Keyword, grader.DefaultKeyword)
	}
	if spec.Logging != cfg.Logging {
		t.Errorf("Logging = %+v, want %+v", spec.Logging, cfg.Logging)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		fallback time.Duration
		want     time.Duration
	}{
		{"30s", time.Second, 30 * time.Second},
		{"2h", 0, 2 * time.Hour},
		{"", 10 * time.Second, 10 * time.Second},
		{"soon", 5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, tt.fallback); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
