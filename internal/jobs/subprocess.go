package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// DefaultGracePeriod is how long a cancelled worker may take to write its
// report before it is killed.
const DefaultGracePeriod = 10 * time.Second

// Subprocess re-executes the binary as a worker so a crash in training
// cannot take down the daemon. The job spec goes to the worker as a YAML
// file; the report comes back as a JSON file.
type Subprocess struct {
	Executable  string   // defaults to os.Executable()
	Args        []string // defaults to ["worker"]
	Dir         string   // spec and report files; defaults to os.TempDir()
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// Name implements Launcher.
func (l *Subprocess) Name() string { return "subprocess" }

// Launch implements Launcher. Cancelling ctx interrupts the worker.
func (l *Subprocess) Launch(ctx context.Context, spec Spec) (Handle, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exe := l.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
	}
	dir := l.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}

	specPath := filepath.Join(dir, spec.ID+".spec.yaml")
	reportPath := filepath.Join(dir, spec.ID+".report.json")
	if err := WriteSpec(specPath, spec); err != nil {
		return nil, err
	}

	args := l.Args
	if len(args) == 0 {
		args = []string{"worker"}
	}
	args = append(append([]string{}, args...), "--spec", specPath, "--report", reportPath)

	grace := l.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Cancel = func() error { return interruptProcess(cmd.Process) }
	cmd.WaitDelay = grace
	configureProcess(cmd)
	stderr := &limitedBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		os.Remove(specPath)
		return nil, fmt.Errorf("start worker: %w", err)
	}
	logger.Info("worker started", "job_id", spec.ID, "pid", cmd.Process.Pid)

	h := newResult()
	go func() {
		waitErr := cmd.Wait()
		report, readErr := readReport(reportPath)
		if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
			logger.Warn("unreadable worker report", "job_id", spec.ID, "error", readErr)
		}
		os.Remove(specPath)
		os.Remove(reportPath)

		if waitErr != nil {
			if ctx.Err() != nil {
				waitErr = ctx.Err()
			} else {
				waitErr = fmt.Errorf("worker exited: %w: %s", waitErr, lastLine(stderr.String()))
			}
		}
		h.finish(report, waitErr)
	}()
	return h, nil
}

// RunWorker is the worker side of Subprocess: it trains spec and writes the
// report (also on cancellation) before returning.
func RunWorker(ctx context.Context, spec Spec, reportPath string, logger *slog.Logger) error {
	eng, err := spec.Engine(logger.With("job_id", spec.ID))
	if err != nil {
		return err
	}
	report, runErr := eng.Run(ctx)
	if reportPath != "" {
		if err := writeReport(reportPath, report); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func writeReport(path string, report domain.TrainingReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return os.Rename(tmp, path)
}

func readReport(path string) (*domain.TrainingReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r domain.TrainingReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

// lastLine returns the last non-empty line of worker stderr.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// limitedBuffer keeps only the last max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.buf.Write(p)
	if b.buf.Len() > b.max {
		data := b.buf.Bytes()
		b.buf.Reset()
		b.buf.Write(data[len(data)-b.max:])
	}
	return n, err
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
