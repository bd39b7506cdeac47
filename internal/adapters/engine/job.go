package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eleven-am/jobgraph/internal/adapters/tracker"
	"github.com/eleven-am/jobgraph/internal/adapters/variables"
	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

const startReason = "start of workflow execution"

// Job is one execution of a workflow definition. Its status flags and error
// counter are read and written from every branch of the run.
type Job struct {
	id         string
	engine     *Engine
	definition *domain.WorkflowDefinition
	parent     *Job
	logger     *slog.Logger
	variables  *variables.Space
	parameters map[string]string
	tracker    *tracker.Tracker
	lifecycle  *LifecycleManager
	slots      *semaphore.Weighted

	started     atomic.Bool
	initialized atomic.Bool
	active      atomic.Bool
	stopped     atomic.Bool
	finished    atomic.Bool
	errors      atomic.Int64

	mu         sync.RWMutex
	cancel     context.CancelFunc
	result     *domain.Result
	startedAt  time.Time
	finishedAt time.Time
}

func newJob(e *Engine, definition *domain.WorkflowDefinition, runID string) *Job {
	j := &Job{
		id:         runID,
		engine:     e,
		definition: definition,
		logger:     e.logger,
		variables:  variables.NewSpace(nil),
		parameters: make(map[string]string),
		lifecycle:  NewLifecycleManager(e.logger),
	}
	if limit := e.config.Engine.MaxParallelEntries; limit > 0 {
		j.slots = semaphore.NewWeighted(int64(limit))
	}
	return j
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Definition() *domain.WorkflowDefinition {
	return j.definition
}

func (j *Job) Parent() *Job {
	return j.parent
}

func (j *Job) Engine() *Engine {
	return j.engine
}

func (j *Job) Variables() domain.Variables {
	return j.variables
}

func (j *Job) SetVariable(name, value string) {
	j.variables.Set(name, value)
}

// SetParameter overrides a declared parameter's default for this run.
func (j *Job) SetParameter(name, value string) {
	j.mu.Lock()
	j.parameters[name] = value
	j.mu.Unlock()
}

func (j *Job) OnRunStarted(l RunListener) { j.lifecycle.OnRunStarted(l) }
func (j *Job) OnRunFinished(l RunListener) { j.lifecycle.OnRunFinished(l) }
func (j *Job) OnBeforeEntry(l EntryListener) { j.lifecycle.OnBeforeEntry(l) }
func (j *Job) OnAfterEntry(l EntryListener) { j.lifecycle.OnAfterEntry(l) }
func (j *Job) OnHeartbeat(l HeartbeatListener) { j.lifecycle.OnHeartbeat(l) }

// Stop raises the stop flag. Entries already running finish unless they
// observe the flag or their context; no new entry starts afterwards.
func (j *Job) Stop() {
	if j.stopped.Swap(true) {
		return
	}
	j.logger.Info("workflow run stop requested")

	j.mu.RLock()
	cancel := j.cancel
	j.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// IsStopped also reports a stop raised on any parent run.
func (j *Job) IsStopped() bool {
	if j.stopped.Load() {
		return true
	}
	return j.parent != nil && j.parent.IsStopped()
}

func (j *Job) IsActive() bool { return j.active.Load() }
func (j *Job) IsFinished() bool { return j.finished.Load() }
func (j *Job) IsInitialized() bool { return j.initialized.Load() }

func (j *Job) ErrorCount() int64 {
	return j.errors.Load()
}

// History returns the completion record of every entry executed so far.
func (j *Job) History() []domain.EntryOutcome {
	if j.tracker == nil {
		return nil
	}
	return j.tracker.Finished()
}

// Trail returns every record of the run including start markers.
func (j *Job) Trail() []domain.EntryOutcome {
	if j.tracker == nil {
		return nil
	}
	return j.tracker.Outcomes()
}

func (j *Job) Result() *domain.Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return nil
	}
	return j.result.Clone()
}

func (j *Job) StartedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.startedAt
}

func (j *Job) FinishedAt() time.Time {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.finishedAt
}

// Run walks the definition from its start entry. A run can be executed once.
func (j *Job) Run(ctx context.Context, initial *domain.Result) (*domain.Result, error) {
	if !j.started.CompareAndSwap(false, true) {
		return nil, newJobValidationError("run already started", domain.ErrAlreadyStarted, domain.WithRunID(j.id))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	j.mu.Lock()
	j.cancel = cancel
	j.startedAt = time.Now()
	j.mu.Unlock()
	if j.IsStopped() {
		cancel()
	}

	stopWatch := context.AfterFunc(ctx, j.Stop)
	defer stopWatch()

	j.tracker = tracker.New(j.id, j.definition.Name, j.engine.config.History.MaxEntriesLogged, j.sink(), j.logger)
	j.engine.register(j)
	defer j.engine.unregister(j)

	runCtx, span := j.startRunSpan(runCtx)

	start, err := j.prepare()
	if err != nil {
		j.logger.Error("workflow run rejected", errorLogAttrs(err)...)
		j.addErrors(1)
		res := j.finish(runCtx, nil, err)
		endSpan(span, res, err)
		return res, err
	}

	j.active.Store(true)
	j.engine.stats.IncrementRunsStarted()
	j.engine.metrics.RunsStarted.WithLabelValues(j.definition.Name).Inc()
	j.engine.metrics.ActiveRuns.WithLabelValues(j.definition.Name).Inc()
	j.logger.Info("workflow run started", "entries", j.definition.Len())

	j.tracker.Append(runCtx, j.marker(domain.PhaseRunStarted, "workflow started", startReason, nil))

	var res *domain.Result
	if err = j.lifecycle.TriggerRunStarted(j); err != nil {
		j.addErrors(1)
	} else {
		stopHeartbeat := j.startHeartbeat()
		res, err = j.runFromStart(runCtx, start, initial)
		stopHeartbeat()
	}

	res = j.finish(runCtx, res, err)
	endSpan(span, res, err)
	return res, err
}

func (j *Job) prepare() (domain.NodeID, error) {
	if err := j.definition.Validate(); err != nil {
		return -1, err
	}
	start, err := j.definition.FindStart()
	if err != nil {
		return -1, err
	}

	for i := 0; i < j.definition.Len(); i++ {
		node := j.definition.MustNode(domain.NodeID(i))
		validator, ok := node.Factory().(domain.ConfigValidator)
		if !ok {
			continue
		}
		if err := validator.Validate(); err != nil {
			return -1, newJobValidationError("entry configuration is invalid", err,
				domain.WithRunID(j.id), domain.WithEntry(node.Name, node.CopyNr))
		}
	}

	j.definition.Seal()
	j.activateParameters()
	j.variables.Set(variables.InternalWorkflowName, j.definition.Name)
	j.variables.Set(variables.InternalRunID, j.id)
	if j.parent != nil {
		j.variables.Set(variables.InternalParentRunID, j.parent.ID())
	}
	j.initialized.Store(true)
	return start, nil
}

func (j *Job) activateParameters() {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, p := range j.definition.Parameters() {
		value, ok := j.parameters[p.Name]
		if !ok || value == "" {
			value = p.Default
		}
		j.variables.Set(p.Name, value)
	}
}

// runFromStart executes the walk once, or repeatedly when the start entry
// asks to repeat, until the run is stopped.
func (j *Job) runFromStart(ctx context.Context, start domain.NodeID, initial *domain.Result) (*domain.Result, error) {
	node := j.definition.MustNode(start)

	repeats := false
	var interval time.Duration
	if r, ok := node.Factory().(domain.Repeater); ok {
		repeats = r.Repeats()
		interval = r.RepeatInterval()
	}

	maxRepeats := j.engine.config.Engine.MaxRepeats
	input := initial
	var res *domain.Result

	for iteration := 0; (iteration == 0 || repeats) && !j.IsStopped(); iteration++ {
		if iteration > 0 {
			if maxRepeats > 0 && iteration > maxRepeats {
				break
			}
			if !j.wait(ctx, interval) {
				break
			}
			j.engine.stats.IncrementRepeats()
			j.engine.metrics.Repeats.WithLabelValues(j.definition.Name).Inc()
			j.logger.Debug("repeating workflow from start", "iteration", iteration)
			input = nil
		}

		out, err := j.execute(ctx, 0, 0, input, start, startReason)
		if err != nil {
			return out, err
		}
		res = out
	}

	if res == nil {
		res = domain.StoppedResult(0)
	}
	return res, nil
}

func (j *Job) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !j.IsStopped()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !j.IsStopped()
	case <-ctx.Done():
		return false
	}
}

func (j *Job) finish(ctx context.Context, res *domain.Result, runErr error) *domain.Result {
	if res == nil {
		res = domain.NewResult()
	} else {
		res = res.Clone()
	}
	if runErr != nil {
		errs := j.ErrorCount()
		if errs < 1 {
			errs = 1
		}
		if res.Errors > errs {
			errs = res.Errors
		}
		res.Fail(errs)
	}
	if j.IsStopped() {
		res.Stopped = true
	}

	wasActive := j.active.Swap(false)
	j.tracker.Append(ctx, j.marker(domain.PhaseRunFinished, "workflow finished", "end of workflow execution", res))

	j.mu.Lock()
	j.finishedAt = time.Now()
	j.result = res.Clone()
	duration := j.finishedAt.Sub(j.startedAt)
	j.mu.Unlock()
	j.finished.Store(true)

	if err := j.lifecycle.TriggerRunFinished(j); err != nil {
		j.addErrors(1)
		res.Fail(res.Errors + 1)
		j.mu.Lock()
		j.result = res.Clone()
		j.mu.Unlock()
	}

	flushCtx := context.WithoutCancel(ctx)
	if err := j.tracker.Flush(flushCtx); err != nil {
		j.logger.Warn("failed to flush run history", errorLogAttrs(err)...)
	}
	if summarizer, ok := j.sink().(ports.RunSummarizer); ok {
		summary := domain.RunSummary{
			RunID:      j.id,
			Workflow:   j.definition.Name,
			Success:    res.Success,
			Errors:     res.Errors,
			Stopped:    res.Stopped,
			Entries:    len(j.tracker.Finished()),
			StartedAt:  j.StartedAt(),
			FinishedAt: j.FinishedAt(),
			Duration:   duration,
		}
		if err := summarizer.SaveSummary(flushCtx, summary); err != nil {
			j.logger.Warn("failed to save run summary", errorLogAttrs(err)...)
		}
	}

	if wasActive {
		j.engine.metrics.ActiveRuns.WithLabelValues(j.definition.Name).Dec()
	}
	j.engine.metrics.RunsFinished.WithLabelValues(j.definition.Name, runStatus(res.Success, res.Stopped)).Inc()
	j.engine.stats.RecordRunFinished(res)

	j.logger.Info("workflow run finished",
		"success", res.Success,
		"errors", res.Errors,
		"stopped", res.Stopped,
		"duration", duration)
	return res
}

func (j *Job) addErrors(n int64) {
	if n <= 0 {
		return
	}
	j.errors.Add(n)
	j.engine.metrics.RunErrors.WithLabelValues(j.definition.Name).Add(float64(n))
}

func (j *Job) sink() ports.HistorySink {
	if j.engine.sink == nil {
		return nil
	}
	return j.engine.sink
}

func (j *Job) marker(phase domain.OutcomePhase, comment, reason string, res *domain.Result) domain.EntryOutcome {
	outcome := domain.NewEntryOutcome(j.id, j.definition.Name, domain.EntryNode{}, phase, res)
	outcome.Comment = comment
	outcome.Reason = reason
	return outcome
}
