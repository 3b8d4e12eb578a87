package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"boxd/internal/config"
	"boxd/internal/logging"
	"boxd/internal/preflight"
	"boxd/internal/runs"
)

// ErrRunActive is returned when another run holds the pipeline lock.
var ErrRunActive = errors.New("another pipeline run is active")

// PreflightFunc runs environment checks before the first stage.
type PreflightFunc func(context.Context, *config.Config) []preflight.Result

// Manager coordinates pipeline runs using registered stage handlers.
type Manager struct {
	cfg        *config.Config
	store      *runs.Store
	logger     *slog.Logger
	lock       *flock.Flock
	preflight  PreflightFunc
	retryDelay time.Duration

	stages []pipelineStage

	mu      sync.RWMutex
	running bool
	lastErr error
	lastRun *runs.Run
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPreflight replaces the environment checks run before each attempt.
func WithPreflight(fn PreflightFunc) ManagerOption {
	return func(m *Manager) {
		m.preflight = fn
	}
}

// WithRetryDelay overrides the configured delay between attempts.
func WithRetryDelay(delay time.Duration) ManagerOption {
	return func(m *Manager) {
		m.retryDelay = delay
	}
}

// NewManager constructs a pipeline manager. Stages must be registered with
// ConfigureStages before RunOnce.
func NewManager(cfg *config.Config, store *runs.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:        cfg,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		lock:       flock.New(cfg.LockPath()),
		preflight:  preflight.RunAll,
		retryDelay: cfg.RetryDelay(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureStages registers the stage handlers in pipeline order. Nil
// handlers are skipped.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage
	if set.Scraper != nil {
		stages = append(stages, pipelineStage{
			name:             "scrape",
			handler:          set.Scraper,
			processingStatus: runs.StatusScraping,
			doneStatus:       runs.StatusScraped,
		})
	}
	if set.Cleaner != nil {
		stages = append(stages, pipelineStage{
			name:             "clean",
			handler:          set.Cleaner,
			processingStatus: runs.StatusCleaning,
			doneStatus:       runs.StatusCleaned,
		})
	}
	if set.Loader != nil {
		stages = append(stages, pipelineStage{
			name:             "load",
			handler:          set.Loader,
			processingStatus: runs.StatusLoading,
			doneStatus:       runs.StatusCompleted,
		})
	}

	m.mu.Lock()
	m.stages = stages
	m.mu.Unlock()
}

// LockPath returns the file used to serialize runs.
func (m *Manager) LockPath() string {
	return m.lock.Path()
}
