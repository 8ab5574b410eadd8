// Package jobs orchestrates training runs. At most one job is alive at a
// time; a start request while one is alive is rejected, never queued.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/infra/metrics"
	"github.com/tutu-network/tutu-gym/internal/trainer"
)

// Store persists job records. *sqlite.DB implements it.
type Store interface {
	InsertJob(job domain.JobRecord) error
	FinishJob(id string, outcome domain.JobOutcome, finishedAt time.Time, errMsg string, report *domain.TrainingReport) error
	GetJob(id string) (*domain.JobRecord, error)
	ListJobs(limit int) ([]domain.JobRecord, error)
}

// Options configures a Manager.
type Options struct {
	Launcher Launcher
	Store    Store
	// Template supplies the task, turn budget and grader of every job.
	// Its Training field is replaced by the config passed to Start.
	Template Spec
	// Timeout bounds each job's wall time. Zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Status is the answer to a liveness query.
type Status struct {
	State domain.JobState   `json:"state"`
	Job   *domain.JobRecord `json:"job,omitempty"`
}

// Running reports whether a job was alive when the status was taken.
func (s Status) Running() bool { return s.State == domain.JobRunning }

type activeJob struct {
	record   domain.JobRecord
	handle   Handle
	cancel   context.CancelFunc
	stopped  atomic.Bool
	finished chan struct{} // closed once the outcome is persisted
}

// Manager owns the single optional current job.
type Manager struct {
	launcher Launcher
	store    Store
	template Spec
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	// mu is held across the whole probe-then-launch sequence of Start.
	mu      sync.Mutex
	current atomic.Pointer[activeJob]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates an idle manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Launcher == nil {
		return nil, fmt.Errorf("%w: job manager needs a launcher", domain.ErrInvalidConfig)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: job manager needs a store", domain.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		launcher: opts.Launcher,
		store:    opts.Store,
		template: opts.Template,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With("component", "jobs"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start launches a training job with cfg unless one is already alive, in
// which case it returns domain.ErrAlreadyRunning and changes nothing.
func (m *Manager) Start(cfg trainer.Config) (domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job := m.current.Load(); job != nil && alive(job.handle) {
		metrics.JobsRejected.Inc()
		m.logger.Info("start rejected", "running_job", job.record.ID)
		return domain.JobRecord{}, domain.ErrAlreadyRunning
	}
	if err := m.ctx.Err(); err != nil {
		return domain.JobRecord{}, fmt.Errorf("job manager closed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return domain.JobRecord{}, err
	}

	spec := m.template
	spec.ID = uuid.NewString()
	spec.Training = cfg

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return domain.JobRecord{}, fmt.Errorf("marshal training config: %w", err)
	}
	record := domain.JobRecord{
		ID:         spec.ID,
		Outcome:    domain.OutcomeRunning,
		Isolation:  m.launcher.Name(),
		ConfigJSON: string(cfgJSON),
		StartedAt:  m.now(),
	}
	if err := m.store.InsertJob(record); err != nil {
		return domain.JobRecord{}, err
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(m.ctx, m.timeout)
	} else {
		ctx, cancel = context.WithCancel(m.ctx)
	}

	handle, err := m.launcher.Launch(ctx, spec)
	if err != nil {
		cancel()
		if ferr := m.store.FinishJob(record.ID, domain.OutcomeFailed, m.now(), err.Error(), nil); ferr != nil {
			m.logger.Error("record launch failure", "job_id", record.ID, "error", ferr)
		}
		metrics.JobOutcomes.WithLabelValues(string(domain.OutcomeFailed)).Inc()
		return domain.JobRecord{}, fmt.Errorf("launch job: %w", err)
	}

	job := &activeJob{
		record:   record,
		handle:   handle,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
	m.current.Store(job)
	metrics.JobsStarted.Inc()
	metrics.JobsActive.Set(1)
	m.logger.Info("training job started", "job_id", record.ID, "isolation", record.Isolation)

	m.wg.Add(1)
	go m.watch(job)
	return record, nil
}

// watch waits for the job's handle and persists its outcome.
func (m *Manager) watch(job *activeJob) {
	defer m.wg.Done()
	defer close(job.finished)
	defer job.cancel()

	<-job.handle.Done()
	report, err := job.handle.Result()
	outcome := classify(err, job.stopped.Load())

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	finishedAt := m.now()
	if ferr := m.store.FinishJob(job.record.ID, outcome, finishedAt, errMsg, report); ferr != nil {
		m.logger.Error("persist job outcome", "job_id", job.record.ID, "error", ferr)
	}

	// A newer job may already own the gauge.
	m.mu.Lock()
	if m.current.Load() == job {
		metrics.JobsActive.Set(0)
	}
	m.mu.Unlock()
	metrics.JobOutcomes.WithLabelValues(string(outcome)).Inc()
	metrics.JobDuration.Observe(finishedAt.Sub(job.record.StartedAt).Seconds())

	attrs := []any{"job_id", job.record.ID, "outcome", outcome}
	if report != nil {
		attrs = append(attrs, "steps", report.Steps, "best_eval_reward", report.BestEvalReward)
	}
	if outcome == domain.OutcomeFailed {
		m.logger.Error("training job failed", append(attrs, "error", errMsg)...)
	} else {
		m.logger.Info("training job finished", attrs...)
	}
}

func classify(err error, stopped bool) domain.JobOutcome {
	switch {
	case err == nil:
		return domain.OutcomeSucceeded
	case stopped, errors.Is(err, context.Canceled):
		return domain.OutcomeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return domain.OutcomeTimedOut
	default:
		return domain.OutcomeFailed
	}
}

// Status reports whether a job is alive. It never blocks on Start or on
// the job itself.
func (m *Manager) Status() Status {
	job := m.current.Load()
	if job == nil || !alive(job.handle) {
		return Status{State: domain.JobIdle}
	}
	rec := job.record
	return Status{State: domain.JobRunning, Job: &rec}
}

// Stop cancels the running job. It returns domain.ErrNoActiveJob when
// nothing is alive. The outcome is recorded asynchronously.
func (m *Manager) Stop() (domain.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.current.Load()
	if job == nil || !alive(job.handle) {
		return domain.JobRecord{}, domain.ErrNoActiveJob
	}
	job.stopped.Store(true)
	job.cancel()
	m.logger.Info("training job stop requested", "job_id", job.record.ID)
	return job.record, nil
}

// Get returns one persisted job record.
func (m *Manager) Get(id string) (*domain.JobRecord, error) {
	return m.store.GetJob(id)
}

// List returns persisted job records, newest first.
func (m *Manager) List(limit int) ([]domain.JobRecord, error) {
	return m.store.ListJobs(limit)
}

// Wait blocks until the current job (if any) has finished and its outcome
// is persisted, or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	job := m.current.Load()
	if job == nil {
		return nil
	}
	select {
	case <-job.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown refuses new jobs, cancels the running one and waits for every
// outcome to be persisted.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
