package workflow

import (
	"log/slog"
	"sync"
	"time"

	"guidora/internal/config"
	"guidora/internal/logging"
	"guidora/internal/notifications"
	"guidora/internal/pipeline"
	"guidora/internal/scheduler"
	"guidora/internal/stage"
)

// Manager drives content units through the pipeline using registered stage
// handlers and runs the scheduler cadence. Units in different stages are
// processed in parallel by a bounded worker pool; a single unit is never
// processed by two workers at once.
type Manager struct {
	cfg      *config.Config
	store    *pipeline.Store
	machine  *pipeline.StateMachine
	sched    *scheduler.Scheduler
	notifier notifications.Service
	logger   *slog.Logger

	handlers   map[pipeline.Stage]stage.Handler
	stageOrder []pipeline.Stage

	pollInterval    time.Duration
	cadenceInterval time.Duration
	workers         int

	mu         sync.Mutex
	running    bool
	cancel     func()
	done       chan struct{}
	inflight   map[string]bool
	pauseUntil time.Time
	lastErr    error
}

// NewManager constructs a workflow manager. Handlers are registered
// separately so tests can wire fakes.
func NewManager(cfg *config.Config, machine *pipeline.StateMachine, sched *scheduler.Scheduler, notifier notifications.Service, logger *slog.Logger) *Manager {
	pollInterval := time.Duration(cfg.Workflow.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	cadenceInterval := time.Duration(cfg.Scheduler.CadenceMinutes) * time.Minute
	if cadenceInterval <= 0 {
		cadenceInterval = time.Hour
	}
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		cfg:             cfg,
		store:           machine.Store(),
		machine:         machine,
		sched:           sched,
		notifier:        notifier,
		logger:          logging.NewComponentLogger(logger, "workflow"),
		handlers:        make(map[pipeline.Stage]stage.Handler),
		pollInterval:    pollInterval,
		cadenceInterval: cadenceInterval,
		workers:         workers,
		inflight:        make(map[string]bool),
	}
}

// RegisterHandler binds a stage handler to the stage whose units it consumes.
func (m *Manager) RegisterHandler(from pipeline.Stage, handler stage.Handler) {
	if _, exists := m.handlers[from]; !exists {
		m.stageOrder = append(m.stageOrder, from)
	}
	m.handlers[from] = handler
}

// Running reports whether background processing is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
