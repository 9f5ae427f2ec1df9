package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trendclip/internal/api"
	"trendclip/internal/clips"
	"trendclip/internal/config"
	"trendclip/internal/events"
	"trendclip/internal/joblog"
	"trendclip/internal/logging"
	"trendclip/internal/notifications"
	"trendclip/internal/pipeline"
	"trendclip/internal/preflight"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
	"trendclip/internal/stage"
)

// PipelineStage pairs a stage handler with the queue status the job holds
// while the handler runs.
type PipelineStage struct {
	Name    string
	Status  queue.Status
	Handler stage.Handler
}

// DefaultStages wires the production download, transcribe, clip, and render
// handlers in execution order.
func DefaultStages(cfg *config.Config, gpu *preflight.GPUDetector) []PipelineStage {
	available := func(ctx context.Context) bool {
		return gpu != nil && gpu.Available(ctx)
	}
	return []PipelineStage{
		{Name: "download", Status: queue.StatusDownloading, Handler: pipeline.NewDownloader(cfg)},
		{Name: "transcribe", Status: queue.StatusTranscribing, Handler: pipeline.NewTranscriber(cfg, available)},
		{Name: "clip", Status: queue.StatusClipping, Handler: pipeline.NewClipper()},
		{Name: "render", Status: queue.StatusRendering, Handler: pipeline.NewRenderer(cfg, available)},
	}
}

// Deps collects the collaborators the manager coordinates. Fields with
// sensible zero values may be left unset in tests.
type Deps struct {
	Config   *config.Config
	Store    *queue.Store
	Clips    *clips.Store
	Logs     *joblog.Store
	Settings *settings.Store
	Notifier notifications.Service
	Hub      *events.Hub
	Logger   *slog.Logger
	Stages   []PipelineStage
	Prober   *pipeline.Prober

	// Preflight gates admission; nil means always ready. The daemon wires
	// preflight.RunAll here.
	Preflight func(ctx context.Context) []preflight.Result

	// Poll and grace overrides for tests. Zero falls back to the config.
	PollInterval time.Duration
	CancelGrace  time.Duration
}

// Manager owns the job queue: it admits queued jobs FIFO up to the settings
// snapshot's concurrency cap, runs one executor goroutine per admitted job,
// and is the single writer of job status.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	clipStore *clips.Store
	logStore  *joblog.Store
	settings  *settings.Store
	notifier  notifications.Service
	hub       *events.Hub
	logger    *slog.Logger
	stages    []PipelineStage
	prober    *pipeline.Prober
	preflight func(ctx context.Context) []preflight.Result

	pollInterval time.Duration
	cancelGrace  time.Duration

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	executors map[string]context.CancelFunc
	wg        sync.WaitGroup

	// Drain accounting for the queue-drained notification.
	batchActive    bool
	batchStart     time.Time
	batchProcessed int
	batchFailed    int
}

// NewManager constructs a workflow manager from its dependencies.
func NewManager(deps Deps) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(deps.Config)
	}

	pollInterval := deps.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Duration(deps.Config.Workflow.QueuePollInterval) * time.Second
	}
	cancelGrace := deps.CancelGrace
	if cancelGrace <= 0 {
		cancelGrace = time.Duration(deps.Config.Workflow.CancelGracePeriod) * time.Second
	}

	return &Manager{
		cfg:          deps.Config,
		store:        deps.Store,
		clipStore:    deps.Clips,
		logStore:     deps.Logs,
		settings:     deps.Settings,
		notifier:     notifier,
		hub:          deps.Hub,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		stages:       deps.Stages,
		prober:       deps.Prober,
		preflight:    deps.Preflight,
		pollInterval: pollInterval,
		cancelGrace:  cancelGrace,
		executors:    make(map[string]context.CancelFunc),
	}
}

// Start launches the admission loop. Jobs left in an active state by a
// previous run are returned to the queue first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancel = cancel
	m.mu.Unlock()

	reset, err := m.store.ResetStuckActive(runCtx)
	if err != nil {
		m.logger.Error("failed to reset interrupted jobs", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("returned interrupted jobs to queue", logging.Int64("jobs", reset))
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(runCtx)
	}()
	return nil
}

// Stop cancels the admission loop and all executors, then waits for them.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.started = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		m.admitReady(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// admitReady admits queued jobs oldest first until the concurrency cap from
// the current settings snapshot is reached. Each admitted job captures that
// snapshot; later settings saves do not affect it.
func (m *Manager) admitReady(ctx context.Context) {
	snapshot, err := m.settings.Load(ctx)
	if err != nil {
		m.logger.Error("failed to load settings", logging.Error(err))
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		active, err := m.store.CountActive(ctx)
		if err != nil {
			m.logger.Error("failed to count active jobs", logging.Error(err))
			return
		}
		if active >= snapshot.MaxConcurrentJobs {
			return
		}

		job, err := m.store.NextQueued(ctx)
		if err != nil {
			m.logger.Error("failed to fetch next queued job", logging.Error(err))
			return
		}
		if job == nil {
			return
		}

		if !m.runPreflight(ctx, job) {
			return
		}

		admitted, err := m.store.Transition(ctx, job.ID, queue.StatusQueued, m.stages[0].Status)
		if err != nil {
			// Lost a race with a cancel; move on to the next job.
			m.logger.Warn("admission transition failed",
				logging.String(logging.FieldJobID, job.ID), logging.Error(err))
			continue
		}

		m.noteAdmission()
		m.publishJobEvent(events.TypeJobUpdated, admitted)

		execCtx, execCancel := context.WithCancel(ctx)
		m.mu.Lock()
		m.executors[job.ID] = execCancel
		m.mu.Unlock()

		m.wg.Add(1)
		go func(job *queue.Job, snapshot settings.AppSettings) {
			defer m.wg.Done()
			defer func() {
				execCancel()
				m.mu.Lock()
				delete(m.executors, job.ID)
				m.mu.Unlock()
			}()
			m.runJob(execCtx, job, snapshot)
		}(admitted, snapshot)
	}
}

// runPreflight verifies tools and directories before a job occupies a slot.
// Failures park the queue until the next poll rather than failing the job.
func (m *Manager) runPreflight(ctx context.Context, job *queue.Job) bool {
	if m.preflight == nil {
		return true
	}
	results := m.preflight(ctx)
	failure, failed := preflight.FirstFailure(results)
	if !failed {
		return true
	}
	m.logger.Warn("preflight failed, delaying admission",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("check", failure.Name),
		logging.String("detail", failure.Detail),
	)
	return false
}

func (m *Manager) noteAdmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.batchActive {
		m.batchActive = true
		m.batchStart = time.Now()
		m.batchProcessed = 0
		m.batchFailed = 0
	}
}

// noteOutcome updates drain accounting and fires the queue-drained
// notification when the last in-flight job finishes with nothing queued.
func (m *Manager) noteOutcome(ctx context.Context, failed bool) {
	m.mu.Lock()
	if failed {
		m.batchFailed++
	} else {
		m.batchProcessed++
	}
	m.mu.Unlock()

	health, err := m.store.Health(ctx)
	if err != nil || health.Active > 0 || health.Queued > 0 {
		return
	}

	m.mu.Lock()
	if !m.batchActive {
		m.mu.Unlock()
		return
	}
	processed, failures := m.batchProcessed, m.batchFailed
	elapsed := time.Since(m.batchStart)
	m.batchActive = false
	m.mu.Unlock()

	if err := m.notifier.NotifyQueueDrained(ctx, processed, failures, elapsed); err != nil {
		m.logger.Debug("queue drained notification failed", logging.Error(err))
	}
	m.appendLog(ctx, joblog.LevelInfo, "Queue drained", "", "")
}

func (m *Manager) appendLog(ctx context.Context, level joblog.Level, message, details, jobID string) {
	if m.logStore == nil {
		return
	}
	entry, err := m.logStore.Append(ctx, level, message, details, jobID)
	if err != nil {
		m.logger.Debug("failed to append dashboard log", logging.Error(err))
		return
	}
	if m.hub != nil {
		m.hub.Publish(events.Event{Type: events.TypeLogAppended, JobID: jobID, Payload: api.NewLogEntry(entry)})
	}
}

func (m *Manager) publishJobEvent(eventType events.Type, job *queue.Job) {
	if m.hub == nil {
		return
	}
	m.hub.Publish(events.Event{Type: eventType, JobID: job.ID, Payload: api.NewJob(job)})
}
