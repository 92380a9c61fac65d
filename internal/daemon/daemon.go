package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"scriptcheck/internal/broker"
	"scriptcheck/internal/config"
	"scriptcheck/internal/ledger"
	"scriptcheck/internal/logging"
	"scriptcheck/internal/services"
	"scriptcheck/internal/stage"
)

// Daemon runs the configured stage consumers and the status API, and
// enforces single-instance execution per host through a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  ledger.Store
	queue  *broker.Client
	stages []stage.Handler

	lock       *flock.Flock
	httpServer *http.Server

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store ledger.Store, queue *broker.Client, stages []stage.Handler, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || queue == nil || logger == nil {
		return nil, errors.New("daemon requires config, ledger, broker, and logger")
	}
	if len(stages) == 0 {
		return nil, errors.New("daemon requires at least one stage")
	}

	return &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		store:  store,
		queue:  queue,
		stages: stages,
		lock:   flock.New(filepath.Join(cfg.Paths.LogDir, "scriptcheckd.lock")),
	}, nil
}

// Start acquires the instance lock, reaps stale workspaces, and launches one
// consumer goroutine per stage plus the status API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return errors.New("another scriptcheckd instance holds the lock")
	}

	cleanStaleWorkspaces(
		d.cfg.Paths.WorkDir,
		time.Duration(d.cfg.Workflow.WorkspaceMaxAgeHours)*time.Hour,
		d.logger,
	)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	consumerID := uuid.NewString()[:8]
	for _, handler := range d.stages {
		handler := handler
		consumer := handler.Name() + "-" + consumerID
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.queue.Consume(runCtx, handler.Queue(), consumer, d.instrument(handler)); err != nil {
				d.logger.Error("consumer exited",
					logging.String(logging.FieldQueue, handler.Queue()),
					logging.Error(err))
			}
		}()
	}

	d.httpServer = d.newAPIServer()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Info("api listening", logging.String("bind", d.cfg.Workflow.APIBind))
		if err := d.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("api server failed", logging.Error(err))
		}
	}()

	d.logger.Info("daemon started", logging.Int("stages", len(d.stages)))
	return nil
}

// instrument stamps each delivery's context with a correlation identifier
// before the stage sees it.
func (d *Daemon) instrument(handler stage.Handler) broker.HandlerFunc {
	return func(ctx context.Context, delivery broker.Delivery) error {
		ctx = services.WithRequestID(ctx, uuid.NewString())
		return handler.Handle(ctx, delivery)
	}
}

// Stop shuts the consumers and the API down and releases the instance lock.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.Load() {
		return nil
	}
	d.cancel()

	if d.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("api shutdown failed", logging.Error(err))
		}
	}

	d.wg.Wait()
	d.running.Store(false)

	if err := d.lock.Unlock(); err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	d.logger.Info("daemon stopped")
	return nil
}
