package core

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/eleven-am/jobgraph/internal/adapters/engine"
	"github.com/eleven-am/jobgraph/internal/adapters/storage"
	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

// Manager wires the engine to its optional persistent run history.
type Manager struct {
	engine  *engine.Engine
	storage ports.StoragePort
	history *storage.HistoryStore

	config       *domain.Config
	logger       *slog.Logger
	drainTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func New(logger *slog.Logger) (*Manager, error) {
	config := domain.DefaultConfig()
	if logger != nil {
		config.WithLogger(logger)
	}
	return NewWithConfig(config)
}

func NewWithConfig(config *domain.Config, opts ...engine.Option) (*Manager, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, domain.NewConfigurationError("invalid configuration", err, domain.WithComponent("manager"))
	}

	m := &Manager{
		config:       config,
		logger:       config.Logger.With("component", "manager"),
		drainTimeout: config.Blocking.InterruptGrace + time.Second,
	}

	if config.History.Persist {
		store, err := storage.NewBadgerStorage(config.Storage, config.Logger)
		if err != nil {
			return nil, err
		}
		m.storage = store
		m.history = storage.NewHistoryStore(store, config.Logger)
		opts = append(opts, engine.WithHistorySink(m.history))
	}

	e, err := engine.NewEngine(config, opts...)
	if err != nil {
		if m.storage != nil {
			_ = m.storage.Close()
		}
		return nil, err
	}
	m.engine = e

	m.logger.Info("manager ready",
		"persist_history", config.History.Persist,
		"in_memory", config.Storage.InMemory,
		"max_parallel_entries", config.Engine.MaxParallelEntries)
	return m, nil
}

func (m *Manager) Engine() *engine.Engine {
	return m.engine
}

func (m *Manager) NewJob(definition *domain.WorkflowDefinition, opts ...engine.JobOption) *engine.Job {
	return m.engine.NewJob(definition, opts...)
}

func (m *Manager) Run(ctx context.Context, definition *domain.WorkflowDefinition, initial *domain.Result, opts ...engine.JobOption) (*domain.Result, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return m.engine.Run(ctx, definition, initial, opts...)
}

// StopRun raises the stop flag of an active run.
func (m *Manager) StopRun(runID string) error {
	job, ok := m.engine.Job(runID)
	if !ok {
		return domain.NewValidationError("run is not active", domain.ErrNotFound, domain.WithRunID(runID))
	}
	job.Stop()
	return nil
}

// ActiveRuns summarises the runs currently executing, oldest first.
func (m *Manager) ActiveRuns() []domain.RunSummary {
	jobs := m.engine.ActiveJobs()
	runs := make([]domain.RunSummary, 0, len(jobs))
	for _, job := range jobs {
		started := job.StartedAt()
		runs = append(runs, domain.RunSummary{
			RunID:     job.ID(),
			Workflow:  job.Definition().Name,
			Errors:    job.ErrorCount(),
			Stopped:   job.IsStopped(),
			Entries:   len(job.History()),
			StartedAt: started,
			Duration:  time.Since(started),
		})
	}
	sort.Slice(runs, func(i, k int) bool {
		return runs[i].StartedAt.Before(runs[k].StartedAt)
	})
	return runs
}

func (m *Manager) StopAll() {
	m.engine.StopAll()
}

// History returns the persisted trail of a run, or the live trail while
// the run is still active.
func (m *Manager) History(ctx context.Context, runID string) ([]domain.EntryOutcome, error) {
	if job, ok := m.engine.Job(runID); ok {
		return job.Trail(), nil
	}
	if m.history == nil {
		return nil, domain.NewStorageError("run history is not persisted", domain.ErrNotFound, domain.WithRunID(runID))
	}
	return m.history.Load(ctx, runID)
}

func (m *Manager) Summary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	if m.history == nil {
		return nil, domain.NewStorageError("run history is not persisted", domain.ErrNotFound, domain.WithRunID(runID))
	}
	return m.history.Summary(ctx, runID)
}

func (m *Manager) PurgeHistory(ctx context.Context, runID string) (int, error) {
	if m.history == nil {
		return 0, nil
	}
	return m.history.Purge(ctx, runID)
}

func (m *Manager) Stats() domain.ExecutionMetrics {
	return m.engine.Stats()
}

// SetDrainTimeout bounds how long Close waits for stopped runs to finish.
func (m *Manager) SetDrainTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainTimeout = timeout
}

// Close stops every active run, waits for them to record their history and
// then releases the history storage.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	timeout := m.drainTimeout
	m.mu.Unlock()

	m.engine.StopAll()

	drainCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := m.engine.WaitForDraining(drainCtx); err != nil {
		m.logger.Warn("drain timeout reached, closing with runs still active",
			"timeout", timeout, "error", err)
	}

	if m.storage == nil {
		return nil
	}
	if err := m.storage.Close(); err != nil {
		m.logger.Error("failed to close history storage", "error", err)
		return err
	}
	m.logger.Info("manager closed")
	return nil
}

func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.NewValidationError("manager is closed", domain.ErrStopped)
	}
	return nil
}
