package blocking

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/eleven-am/jobgraph/internal/adapters/engine"
	"github.com/eleven-am/jobgraph/internal/domain"
)

// Task is the work behind a blocking entry.
type Task interface {
	// CreateConfig returns the task's options. Blocking options it leaves
	// out fall back to the engine's defaults.
	CreateConfig() Config
	IsValid(config Config) bool
	// Work returns the unit of work that fills result.
	Work(config Config, result *domain.Result) WorkFunc
	// OnUncaughtFailure is invoked on the unit's goroutine when the work
	// fails or panics. Calls are serialised per entry execution.
	OnUncaughtFailure(unit *Unit, err error, result *domain.Result)
}

// Entry runs a Task on a supervised unit. In blocking mode it polls the unit
// until it terminates or the run is stopped; otherwise it returns at once
// and leaves the unit running.
type Entry struct {
	task Task
}

func NewEntry(task Task) *Entry {
	return &Entry{task: task}
}

// Factory returns an entry factory building a fresh Entry around the task
// produced by newTask.
func Factory(newTask func() Task) domain.EntryFactory {
	return func() domain.Entry {
		return NewEntry(newTask())
	}
}

func (e *Entry) Task() Task {
	return e.task
}

func (e *Entry) Validate() error {
	if e.task == nil {
		return domain.NewValidationError("blocking entry has no task", domain.ErrInvalidConfig)
	}
	// Options that refer to variables can only be checked once resolved.
	config := e.config(nil)
	if config.References() {
		return nil
	}
	if !e.task.IsValid(config) {
		return domain.NewValidationError("blocking entry configuration is invalid", domain.ErrInvalidConfig)
	}
	return nil
}

func (e *Entry) Execute(ctx context.Context, scope domain.Scope, prev *domain.Result) (*domain.Result, error) {
	logger := scope.Logger().With("component", "blocking-entry")

	config := e.config(scope).Resolve(scope.Variables())
	if !e.task.IsValid(config) {
		logger.Error("blocking entry configuration is invalid after substitution")
		return prev.Clone().Fail(1), nil
	}

	result := prev.Clone()
	result.Success = true
	result.Errors = 0

	var guard sync.Mutex
	onFailure := func(unit *Unit, err error) {
		logger.Warn("blocking unit failed", "state", unit.State().String(), "error", err)
		guard.Lock()
		defer guard.Unlock()
		e.task.OnUncaughtFailure(unit, err, result)
	}
	unit := NewUnit(scope.EntryName(), e.task.Work(config, result), onFailure, logger)

	if !config.Blocking() {
		snapshot := result.Clone()
		if err := unit.Start(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		logger.Debug("blocking entry detached from its unit")
		return snapshot, nil
	}

	if err := unit.Start(ctx); err != nil {
		return nil, err
	}
	if e.await(ctx, scope, unit, config.PollingInterval()) {
		guard.Lock()
		defer guard.Unlock()
		if unit.Interrupted() {
			result.Success = false
			result.Stopped = scope.IsStopped()
		}
		return result, nil
	}

	logger.Info("interrupting blocking unit", "state", unit.State().String())
	unit.Interrupt()

	grace := config.InterruptGrace()
	if unit.Wait(grace) {
		guard.Lock()
		defer guard.Unlock()
		result.Success = false
		result.Stopped = scope.IsStopped()
		return result, nil
	}

	logger.Warn("blocking unit ignored interruption", "grace", grace)
	failed := prev.Clone().Fail(1)
	failed.Stopped = scope.IsStopped()
	return failed, nil
}

// config layers the task's options over the blocking defaults of the engine
// running scope.
func (e *Entry) config(scope domain.Scope) Config {
	config := DefaultConfig()
	if job, ok := engine.JobFromScope(scope); ok {
		defaults := job.Engine().Config().Blocking
		config.Set(OptionPollingInterval, strconv.FormatInt(defaults.PollingInterval.Milliseconds(), 10))
		config.Set(OptionInterruptGrace, strconv.FormatInt(defaults.InterruptGrace.Milliseconds(), 10))
	}
	for k, v := range e.task.CreateConfig() {
		config[k] = v
	}
	return config
}

// await polls unit until it terminates, reporting false when the run was
// stopped or ctx ended first.
func (e *Entry) await(ctx context.Context, scope domain.Scope, unit *Unit, interval time.Duration) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-unit.Done():
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if scope.IsStopped() {
				return false
			}
		}
	}
}

// FailResult is an OnUncaughtFailure helper shared by tasks: it records err
// in the result log and counts one error unless the unit was interrupted.
func FailResult(unit *Unit, err error, result *domain.Result) {
	result.Success = false
	if err != nil {
		result.AppendLog(err.Error())
	}
	if unit.State() != StateInterrupted {
		result.Errors++
	}
}
