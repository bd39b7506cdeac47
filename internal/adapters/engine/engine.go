package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

// Engine holds what every run it creates shares: configuration, logging,
// metrics, tracing and the history sink.
type Engine struct {
	config  *domain.Config
	logger  *slog.Logger
	metrics *Metrics
	stats   *domain.ExecutionMetrics
	tracer  trace.Tracer
	sink    ports.HistorySink

	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider

	mu      sync.RWMutex
	jobs    map[string]*Job
	drained chan struct{}
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithHistorySink(sink ports.HistorySink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registerer = reg }
}

func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = provider }
}

func NewEngine(config *domain.Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, domain.NewConfigurationError("invalid engine configuration", err, domain.WithComponent(engineComponent))
	}

	e := &Engine{
		config: config,
		logger: config.Logger,
		stats:  domain.NewExecutionMetrics(),
		jobs:   make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "engine")

	var reg prometheus.Registerer
	if config.Metrics.Enabled {
		reg = e.registerer
	}
	e.metrics = NewMetrics(reg, config.Metrics.Namespace)

	switch {
	case !config.Tracing.Enabled:
		e.tracer = noop.NewTracerProvider().Tracer(config.Tracing.TracerName)
	case e.tracerProvider != nil:
		e.tracer = e.tracerProvider.Tracer(config.Tracing.TracerName)
	default:
		e.tracer = otel.GetTracerProvider().Tracer(config.Tracing.TracerName)
	}

	return e, nil
}

type JobOption func(*Job)

func WithParentJob(parent *Job) JobOption {
	return func(j *Job) { j.parent = parent }
}

func WithRunID(runID string) JobOption {
	return func(j *Job) {
		if runID != "" {
			j.id = runID
		}
	}
}

func WithVariables(values map[string]string) JobOption {
	return func(j *Job) { j.variables.SetAll(values) }
}

func WithParameters(values map[string]string) JobOption {
	return func(j *Job) {
		for k, v := range values {
			j.parameters[k] = v
		}
	}
}

// NewJob prepares a run of definition. The run starts when Run is called.
func (e *Engine) NewJob(definition *domain.WorkflowDefinition, opts ...JobOption) *Job {
	j := newJob(e, definition, uuid.NewString())
	for _, opt := range opts {
		opt(j)
	}
	if j.parent != nil {
		j.variables.SetParent(j.parent.variables)
	}
	j.logger = e.logger.With("run_id", j.id, "workflow", definition.Name)
	return j
}

// Run executes definition to completion and returns its final result.
func (e *Engine) Run(ctx context.Context, definition *domain.WorkflowDefinition, initial *domain.Result, opts ...JobOption) (*domain.Result, error) {
	return e.NewJob(definition, opts...).Run(ctx, initial)
}

func (e *Engine) Job(runID string) (*Job, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j, ok := e.jobs[runID]
	return j, ok
}

func (e *Engine) ActiveJobs() []*Job {
	e.mu.RLock()
	defer e.mu.RUnlock()

	jobs := make([]*Job, 0, len(e.jobs))
	for _, j := range e.jobs {
		jobs = append(jobs, j)
	}
	return jobs
}

// StopAll raises the stop flag on every active run.
func (e *Engine) StopAll() {
	for _, j := range e.ActiveJobs() {
		j.Stop()
	}
}

func (e *Engine) Stats() domain.ExecutionMetrics {
	return e.stats.GetSnapshot()
}

func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

func (e *Engine) Config() domain.Config {
	return *e.config
}

func (e *Engine) register(j *Job) {
	e.mu.Lock()
	e.jobs[j.id] = j
	e.mu.Unlock()
}

func (e *Engine) unregister(j *Job) {
	e.mu.Lock()
	delete(e.jobs, j.id)
	if len(e.jobs) == 0 && e.drained != nil {
		close(e.drained)
		e.drained = nil
	}
	e.mu.Unlock()
}

// WaitForDraining blocks until no run is active, including the history
// flush each run performs when it finishes, or until ctx is done.
func (e *Engine) WaitForDraining(ctx context.Context) error {
	e.mu.Lock()
	if len(e.jobs) == 0 {
		e.mu.Unlock()
		return nil
	}
	if e.drained == nil {
		e.drained = make(chan struct{})
	}
	drained := e.drained
	active := len(e.jobs)
	e.mu.Unlock()

	e.logger.Debug("waiting for active runs to finish", "active_runs", active)
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return domain.NewCancellationError("runs still active after drain timeout", ctx.Err(),
			domain.WithComponent(engineComponent))
	}
}
