package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutu-network/tutu-gym/internal/api"
	"github.com/tutu-network/tutu-gym/internal/domain"
	"github.com/tutu-network/tutu-gym/internal/grader"
	"github.com/tutu-network/tutu-gym/internal/infra/sqlite"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("TUTU_GYM_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Training.NetDim = 16
	cfg.Training.MaxStep = 64
	cfg.Training.BatchSize = 16
	cfg.Training.RepeatTimes = 1
	cfg.Training.EvalGap = 0
	cfg.Training.BreakStep = 1 << 40
	cfg.Training.Seed = 1
	return cfg
}

func TestNewWithConfig_UnknownGrader(t *testing.T) {
	cfg := testConfig(t)
	cfg.Grader.Kind = "oracle"

	_, err := NewWithConfig(cfg, quietLogger())
	assert.ErrorIs(t, err, domain.ErrUnknownGrader)
}

func TestNewWithConfig_FailsOrphanedJobs(t *testing.T) {
	cfg := testConfig(t)

	db, err := sqlite.Open(Home())
	require.NoError(t, err)
	require.NoError(t, db.InsertJob(domain.JobRecord{
		ID:        "stale",
		Outcome:   domain.OutcomeRunning,
		Isolation: "inprocess",
		StartedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, db.Close())

	d, err := NewWithConfig(cfg, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	got, err := d.Jobs.Get("stale")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, got.Outcome)
	assert.NotEmpty(t, got.Error)
}

func TestNewWithConfig_SubprocessLauncher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs.Isolation = IsolationSubprocess
	cfg.Jobs.Dir = filepath.Join(Home(), "work")

	d, err := NewWithConfig(cfg, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	assert.DirExists(t, cfg.Jobs.Dir)
	assert.Equal(t, domain.JobIdle, d.Jobs.Status().State)
}

func TestServe_ShutdownCancelsRunningJob(t *testing.T) {
	cfg := testConfig(t)
	d, err := NewWithConfig(cfg, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- d.ServeListener(ctx, ln) }()

	c := api.NewClient("http://" + ln.Addr().String())
	started, err := c.Train(context.Background(), nil)
	require.NoError(t, err)

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.StatusInProgress, st.Status)

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(40 * time.Second):
		t.Fatal("ServeListener did not return after cancel")
	}

	got, err := d.Jobs.Get(started.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCancelled, got.Outcome)

	_, err = d.Jobs.Start(cfg.Training)
	assert.True(t, errors.Is(err, context.Canceled), "start after shutdown: %v", err)
}

func TestGraderSettings_Defaults(t *testing.T) {
	t.Setenv("TUTU_GYM_HOME", t.TempDir())
	cfg := DefaultConfig()
	cfg.Grader.Timeout = "bogus"

	g := cfg.GraderSettings()
	assert.Equal(t, grader.DefaultConfig().Timeout, g.Timeout)
	assert.Equal(t, grader.KindKeyword, g.Kind)
}
