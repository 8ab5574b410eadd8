// Package logging builds the process-wide slog logger: text on stderr for
// interactive use, an optional JSON log file, and the systemd journal when
// running as a service.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// Journal modes.
const (
	JournalAuto   = "auto"   // only when running as a systemd service
	JournalAlways = "always"
	JournalNever  = "never"
)

// Config selects log destinations.
type Config struct {
	Level   string `toml:"level" yaml:"level"`     // debug, info, warn or error
	File    string `toml:"file" yaml:"file"`       // JSON lines; empty disables
	Journal string `toml:"journal" yaml:"journal"` // auto, always or never
}

// DefaultConfig logs info and above to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Journal: JournalAuto}
}

// ParseLevel accepts slog level names, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", domain.ErrInvalidConfig, s)
	}
	return l, nil
}

// New builds a logger fanning out to every configured handler. The
// returned close function releases the log file, if any.
func New(cfg Config, stderr io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	closeFn := func() error { return nil }

	journal := false
	switch cfg.Journal {
	case JournalAlways:
		journal = true
	case JournalAuto, "":
		journal = isSystemdService()
	case JournalNever:
	default:
		return nil, nil, fmt.Errorf("%w: journal mode %q", domain.ErrInvalidConfig, cfg.Journal)
	}

	var handlers []slog.Handler

	// the journal already timestamps and collects stderr of services
	var terminal slog.Handler
	if !journal {
		terminal = slog.NewTextHandler(stderr, opts)
		handlers = append(handlers, terminal)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closeFn = f.Close
	}

	if journal {
		h, err := slogjournal.NewHandler(&slogjournal.Options{
			Level:        level,
			ReplaceGroup: toJournalKey,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			// No journal socket: fall back to stderr.
			terminal = slog.NewTextHandler(stderr, opts)
			handlers = append(handlers, terminal)
			slog.New(terminal).Warn("systemd journal unavailable", "error", err)
		} else {
			handlers = append(handlers, h)
		}
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFn, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// toJournalKey maps attribute keys to journal field names, which allow only
// upper-case letters, digits and underscores.
func toJournalKey(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(s))
}

// isSystemdService reports whether this process lives in a systemd
// service's cgroup.
func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.SplitN(strings.TrimSpace(string(content)), ":", 3)
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service")
}
