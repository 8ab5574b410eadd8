package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tutu-network/tutu-gym/internal/grader"
	"github.com/tutu-network/tutu-gym/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), grader.DefaultConfig())
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 3 {
		t.Errorf("checks = %d, want 3", len(c.checks))
	}
}

func TestChecker_RunOnceHealthy(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), grader.DefaultConfig())
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), grader.DefaultConfig())

	// No statuses yet, so vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_ClosedDB(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	c := NewChecker(db, t.TempDir(), grader.DefaultConfig())
	c.RunOnce(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false with a closed database")
	}
	if s := c.Statuses()[0]; s.Name != "sqlite" || s.Healthy {
		t.Errorf("sqlite status = %+v, want unhealthy", s)
	}
}

func TestChecker_JobDirRecovers(t *testing.T) {
	jobDir := filepath.Join(t.TempDir(), "jobs")
	c := NewChecker(newTestDB(t), jobDir, grader.DefaultConfig())

	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Fatal("missing job dir should be unhealthy on first run")
	}
	if _, err := os.Stat(jobDir); err != nil {
		t.Fatalf("recovery should create job dir: %v", err)
	}

	c.RunOnce(context.Background())
	if !c.IsHealthy() {
		t.Errorf("job dir should be healthy after recovery: %+v", c.Statuses())
	}
}

func TestChecker_Run_StopsOnCancel(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir(), grader.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if len(c.Statuses()) != 3 {
		t.Errorf("Run should check once before waiting, got %d statuses", len(c.Statuses()))
	}
}

// ─── Check Implementation Tests ─────────────────────────────────────────────

func TestCheckGrader(t *testing.T) {
	script := filepath.Join(t.TempDir(), "grade.star")
	if err := os.WriteFile(script, []byte("def grade(task, artifact):\n    return True\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     grader.Config
		wantErr bool
	}{
		{"keyword", grader.DefaultConfig(), false},
		{"script present", grader.Config{Kind: grader.KindScript, ScriptPath: script}, false},
		{"script missing", grader.Config{Kind: grader.KindScript, ScriptPath: script + ".nope"}, true},
		{"command empty", grader.Config{Kind: grader.KindCommand}, true},
		{"command unknown", grader.Config{Kind: grader.KindCommand, Command: []string{"no-such-checker-binary"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkGrader(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkGrader() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckWritable_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := checkWritable(file); err == nil {
		t.Error("checkWritable(file) should fail")
	}
}
