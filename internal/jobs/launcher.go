package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// Handle is an opaque reference to a launched unit of work.
type Handle interface {
	// Done is closed when the work has terminated for any reason.
	Done() <-chan struct{}
	// Result returns the report (nil if none was produced) and the
	// terminal error. Only valid after Done is closed.
	Result() (*domain.TrainingReport, error)
}

// Launcher starts a job. Cancelling ctx must make the work terminate.
type Launcher interface {
	Name() string
	Launch(ctx context.Context, spec Spec) (Handle, error)
}

// alive probes h without blocking.
func alive(h Handle) bool {
	if h == nil {
		return false
	}
	select {
	case <-h.Done():
		return false
	default:
		return true
	}
}

// result is the Handle shared by both launchers.
type result struct {
	done chan struct{}

	mu     sync.Mutex
	report *domain.TrainingReport
	err    error
}

func newResult() *result {
	return &result{done: make(chan struct{})}
}

func (r *result) Done() <-chan struct{} { return r.done }

func (r *result) Result() (*domain.TrainingReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report, r.err
}

func (r *result) finish(report *domain.TrainingReport, err error) {
	r.mu.Lock()
	r.report, r.err = report, err
	r.mu.Unlock()
	close(r.done)
}

// InProcess runs the training engine on a goroutine in the daemon process.
type InProcess struct {
	Logger *slog.Logger
}

// Name implements Launcher.
func (l *InProcess) Name() string { return "inprocess" }

// Launch implements Launcher. A panic in the engine becomes a failure.
func (l *InProcess) Launch(ctx context.Context, spec Spec) (Handle, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	eng, err := spec.Engine(logger.With("job_id", spec.ID))
	if err != nil {
		return nil, err
	}

	h := newResult()
	go func() {
		var (
			report domain.TrainingReport
			runErr error
		)
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("training panicked: %v", r)
				logger.Error("training panicked", "job_id", spec.ID, "panic", r)
			}
			h.finish(&report, runErr)
		}()
		report, runErr = eng.Run(ctx)
	}()
	return h, nil
}
