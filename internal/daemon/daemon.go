package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tutu-network/tutu-gym/internal/api"
	"github.com/tutu-network/tutu-gym/internal/grader"
	"github.com/tutu-network/tutu-gym/internal/health"
	"github.com/tutu-network/tutu-gym/internal/infra/sqlite"
	"github.com/tutu-network/tutu-gym/internal/jobs"
)

// shutdownTimeout bounds HTTP drain plus waiting for the active job.
const shutdownTimeout = 30 * time.Second

// Daemon is the training service runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Jobs   *jobs.Manager
	Health *health.Checker
	Server *api.Server
	Logger *slog.Logger
}

// New creates and initializes a Daemon from the config file.
func New(logger *slog.Logger) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg, logger)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "daemon")

	template := cfg.JobTemplate()
	// Fail at startup, not on the first POST /train.
	if _, err := grader.New(template.Grader); err != nil {
		return nil, fmt.Errorf("grader: %w", err)
	}

	if err := os.MkdirAll(cfg.Jobs.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}

	db, err := sqlite.Open(gymHome())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A job still RUNNING in the store belonged to a previous process.
	n, err := db.FailOrphanedJobs("daemon restarted while the job was running")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("recover orphaned jobs: %w", err)
	}
	if n > 0 {
		logger.Warn("marked orphaned jobs as failed", "count", n)
	}

	mgr, err := jobs.NewManager(jobs.Options{
		Launcher: newLauncher(cfg, logger),
		Store:    db,
		Template: template,
		Timeout:  parseDuration(cfg.Jobs.Timeout, 0),
		Logger:   logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	checker := health.NewChecker(db, cfg.Jobs.Dir, template.Grader)

	srv := api.NewServer(mgr, cfg.Training, logger)
	srv.SetHealth(checker)
	srv.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config: cfg,
		DB:     db,
		Jobs:   mgr,
		Health: checker,
		Server: srv,
		Logger: logger,
	}, nil
}

func newLauncher(cfg Config, logger *slog.Logger) jobs.Launcher {
	if cfg.Jobs.Isolation == IsolationSubprocess {
		return &jobs.Subprocess{
			Dir:         cfg.Jobs.Dir,
			GracePeriod: parseDuration(cfg.Jobs.GracePeriod, jobs.DefaultGracePeriod),
			Logger:      logger,
		}
	}
	return &jobs.InProcess{Logger: logger}
}

// Addr returns host:port from the API config.
func (d *Daemon) Addr() string {
	return net.JoinHostPort(d.Config.API.Host, fmt.Sprint(d.Config.API.Port))
}

// Serve listens on the configured address and blocks until ctx is done or
// SIGINT/SIGTERM arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", d.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return d.ServeListener(ctx, ln)
}

// ServeListener serves the API on ln until ctx is done, then drains HTTP,
// stops the active job and waits for its outcome to be recorded.
func (d *Daemon) ServeListener(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Health.Run(gctx)
		return nil
	})

	g.Go(func() error {
		d.Logger.Info("serving", "addr", ln.Addr().String(), "isolation", d.Config.Jobs.Isolation)
		if d.Config.Telemetry.Prometheus {
			d.Logger.Info("metrics enabled", "url", "http://"+ln.Addr().String()+"/metrics")
		}
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		d.Logger.Info("shutting down")
		err := httpServer.Shutdown(shutdownCtx)
		if jerr := d.Jobs.Shutdown(shutdownCtx); jerr != nil {
			err = errors.Join(err, fmt.Errorf("wait for training job: %w", jerr))
		}
		return err
	})

	return g.Wait()
}

// Close releases daemon resources. Call after Serve returns.
func (d *Daemon) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
