package pipeline

import (
	"context"

	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/stage"
)

// StatusSummary represents lightweight pipeline diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastRun     *runs.Run
	RunStats    map[runs.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest pipeline information. LastRun falls back to the
// run store when this manager has not run anything yet.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastRun := m.lastRun
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read run stats", logging.Error(err))
	}
	if lastRun == nil {
		if stored, err := m.store.LastStarted(ctx); err != nil {
			m.logger.Warn("failed to read last run", logging.Error(err))
		} else {
			lastRun = stored
		}
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, RunStats: stats, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastRun != nil {
		copy := *lastRun
		summary.LastRun = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRun(run *runs.Run) {
	m.mu.Lock()
	if run != nil {
		copy := *run
		m.lastRun = &copy
	} else {
		m.lastRun = nil
	}
	m.mu.Unlock()
}
