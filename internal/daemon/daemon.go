package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"trendclip/internal/clips"
	"trendclip/internal/config"
	"trendclip/internal/events"
	"trendclip/internal/joblog"
	"trendclip/internal/logging"
	"trendclip/internal/pipeline"
	"trendclip/internal/preflight"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
	"trendclip/internal/workflow"
)

// Version identifies the daemon build in status reports and notifications.
const Version = "0.1.0"

// Daemon wires the stores, the workflow manager, the event hub, the HTTP API,
// and the retention schedule, and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store         *queue.Store
	clipStore     *clips.Store
	logStore      *joblog.Store
	settingsStore *settings.Store
	hub           *events.Hub
	prober        *pipeline.Prober
	workflow      *workflow.Manager

	api       *apiServer
	scheduler *cron.Cron

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	started time.Time
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies. The database and all
// working directories are created if missing.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires a configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	clipStore := clips.NewStore(store.DB())
	logStore := joblog.NewStore(store.DB())
	settingsStore := settings.NewStore(store.DB(),
		settings.Default(cfg.Paths.LibraryDir, cfg.Paths.OutputDir))
	hub := events.NewHub(logger)
	gpu := preflight.NewGPUDetector()
	prober := pipeline.NewProber(cfg)

	manager := workflow.NewManager(workflow.Deps{
		Config:   cfg,
		Store:    store,
		Clips:    clipStore,
		Logs:     logStore,
		Settings: settingsStore,
		Hub:      hub,
		Logger:   logger,
		Stages:   workflow.DefaultStages(cfg, gpu),
		Prober:   prober,
		Preflight: func(ctx context.Context) []preflight.Result {
			return preflight.RunAll(ctx, cfg)
		},
	})

	lockPath := filepath.Join(cfg.Paths.LogDir, "trendclipd.lock")
	d := &Daemon{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "daemon"),
		store:         store,
		clipStore:     clipStore,
		logStore:      logStore,
		settingsStore: settingsStore,
		hub:           hub,
		prober:        prober,
		workflow:      manager,
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
	}

	d.api, err = newAPIServer(cfg, d, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	d.scheduler = cron.New()
	if _, err := d.scheduler.AddFunc(cfg.Retention.Schedule, d.runRetention); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Retention.Schedule, err)
	}

	return d, nil
}

// Start acquires the instance lock and launches the workflow manager, the
// HTTP API, and the retention schedule.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another trendclip daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}
	d.scheduler.Start()

	d.started = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("trendclip daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
	)
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.scheduler.Stop().Done()
	d.workflow.Stop()
	d.api.stop()
	d.hub.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("trendclip daemon stopped")
}

// Close stops the daemon and releases the database.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address, available after Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// publishSettingsUpdated mirrors a settings save onto the event stream with
// API keys masked.
func (d *Daemon) publishSettingsUpdated(saved settings.AppSettings) {
	d.hub.Publish(events.Event{
		Type:    events.TypeSettingsUpdated,
		Payload: saved.Masked(),
	})
}

// runRetention prunes terminal jobs and old dashboard logs per the configured
// retention windows. Clips are records of produced files and are never pruned.
func (d *Daemon) runRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now().UTC()
	jobCutoff := now.AddDate(0, 0, -d.cfg.Retention.JobDays)
	jobs, err := d.store.PruneTerminal(ctx, jobCutoff)
	if err != nil {
		d.logger.Error("job retention failed", logging.Error(err))
	}

	logCutoff := now.AddDate(0, 0, -d.cfg.Retention.LogDays)
	entries, err := d.logStore.Prune(ctx, logCutoff)
	if err != nil {
		d.logger.Error("log retention failed", logging.Error(err))
	}

	if jobs > 0 || entries > 0 {
		d.logger.Info("retention pass finished",
			logging.Int64("jobs_pruned", jobs),
			logging.Int64("logs_pruned", entries),
		)
	}
}
