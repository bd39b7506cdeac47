// Package jobgraph executes workflows described as a graph of entries
// connected by hops.
//
// A run starts at the single start entry and walks every hop whose condition
// holds for the entry's result. Entries that launch in parallel run each
// taken hop on its own goroutine and merge the branch results once all of
// them finished. Every run keeps an error counter, a stop flag that halts
// the walk before the next entry, and an ordered history of entry outcomes.
//
// Basic usage:
//
//	manager, err := jobgraph.New(logger)
//	if err != nil {
//	    return err
//	}
//	defer manager.Close()
//
//	wf := jobgraph.NewWorkflow("nightly")
//	start, _ := wf.AddNode(jobgraph.Start("start"))
//	load, _ := wf.AddNode(jobgraph.Shell("load", jobgraph.ShellTask{Command: "./load.sh"}))
//	_ = wf.Connect(start, load, true, false)
//
//	result, err := manager.Run(ctx, wf, nil)
package jobgraph

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eleven-am/jobgraph/internal/adapters/blocking"
	"github.com/eleven-am/jobgraph/internal/adapters/engine"
	"github.com/eleven-am/jobgraph/internal/adapters/entries"
	"github.com/eleven-am/jobgraph/internal/adapters/observability"
	"github.com/eleven-am/jobgraph/internal/core"
	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

// Manager owns an engine and, when enabled, the persistent run history.
type Manager = core.Manager

// Engine creates and executes runs.
type Engine = engine.Engine

// Job is a single run of a workflow definition.
type Job = engine.Job

type EngineOption = engine.Option

type JobOption = engine.JobOption

// RunListener is notified when a run starts or finishes. An error fails the
// run.
type RunListener = engine.RunListener

// EntryListener is notified before (with a nil result) and after every entry.
type EntryListener = engine.EntryListener

type HeartbeatListener = engine.HeartbeatListener

// WorkflowDefinition is the graph of entries and hops a run walks.
type WorkflowDefinition = domain.WorkflowDefinition

type NodeID = domain.NodeID

type EntryNode = domain.EntryNode

type Hop = domain.Hop

type ParameterDefinition = domain.ParameterDefinition

// Result is threaded through the run; every entry returns its own.
type Result = domain.Result

type Row = domain.Row

// Entry is the unit of work behind a node.
type Entry = domain.Entry

type EntryFunc = domain.EntryFunc

type EntryFactory = domain.EntryFactory

// Scope is what an executing entry can see of its run.
type Scope = domain.Scope

type Variables = domain.Variables

// Repeater is implemented by start entries that loop the run.
type Repeater = domain.Repeater

// ConfigValidator is checked for every entry before a run starts.
type ConfigValidator = domain.ConfigValidator

// EntryOutcome is one record of a run's history.
type EntryOutcome = domain.EntryOutcome

type OutcomePhase = domain.OutcomePhase

const (
	PhaseRunStarted    = domain.PhaseRunStarted
	PhaseEntryStarted  = domain.PhaseEntryStarted
	PhaseEntryFinished = domain.PhaseEntryFinished
	PhaseRunFinished   = domain.PhaseRunFinished
)

type RunSummary = domain.RunSummary

type ExecutionMetrics = domain.ExecutionMetrics

// HistorySink receives every outcome recorded by a run.
type HistorySink = ports.HistorySink

// BlockingTask is the work behind a blocking entry.
type BlockingTask = blocking.Task

// BlockingConfig holds a blocking entry's string options.
type BlockingConfig = blocking.Config

type BlockingUnit = blocking.Unit

type WorkFunc = blocking.WorkFunc

const (
	OptionBlockingExecution = blocking.OptionBlockingExecution
	OptionPollingInterval   = blocking.OptionPollingInterval
	OptionInterruptGrace    = blocking.OptionInterruptGrace
)

type ShellTask = entries.ShellTask

type WaitTask = entries.WaitTask

type EvalVariableEntry = entries.EvalVariableEntry

type Condition = entries.Condition

type SubWorkflowEntry = entries.SubWorkflowEntry

type StartOption = entries.StartOption

// New creates a manager with the default configuration and the given
// logger.
func New(logger *slog.Logger) (*Manager, error) {
	return core.New(logger)
}

// NewWithConfig creates a manager from a full configuration.
//
// Example:
//
//	config := jobgraph.DefaultConfig().
//	    WithLogger(logger).
//	    WithMaxParallelEntries(8).
//	    WithPersistentHistory("./history")
//	manager, err := jobgraph.NewWithConfig(config)
func NewWithConfig(config *Config, opts ...EngineOption) (*Manager, error) {
	return core.NewWithConfig(config, opts...)
}

// NewEngine creates an engine without a manager, for callers that bring
// their own history sink.
func NewEngine(config *Config, opts ...EngineOption) (*Engine, error) {
	return engine.NewEngine(config, opts...)
}

func NewWorkflow(name string) *WorkflowDefinition {
	return domain.NewWorkflowDefinition(name)
}

func NewResult() *Result {
	return domain.NewResult()
}

func NewSuccessResult() *Result {
	return domain.NewSuccessResult()
}

// JobFromScope returns the run executing an entry.
func JobFromScope(scope Scope) (*Job, bool) {
	return engine.JobFromScope(scope)
}

func WithHistorySink(sink HistorySink) EngineOption {
	return engine.WithHistorySink(sink)
}

func WithParentJob(parent *Job) JobOption {
	return engine.WithParentJob(parent)
}

func WithRunID(runID string) JobOption {
	return engine.WithRunID(runID)
}

func WithVariables(values map[string]string) JobOption {
	return engine.WithVariables(values)
}

func WithParameters(values map[string]string) JobOption {
	return engine.WithParameters(values)
}

// Start returns the start node of a workflow.
func Start(name string, opts ...StartOption) EntryNode {
	return entries.Start(name, opts...)
}

func Repeating(interval time.Duration) StartOption {
	return entries.Repeating(interval)
}

func Dummy(name string) EntryNode {
	return entries.Dummy(name)
}

func Success(name string) EntryNode {
	return entries.Success(name)
}

func Abort(name, message string) EntryNode {
	return entries.Abort(name, message)
}

func Func(name string, fn func(ctx context.Context, scope Scope) error) EntryNode {
	return entries.Func(name, fn)
}

func EvalVariable(name string, entry EvalVariableEntry) EntryNode {
	return entries.EvalVariable(name, entry)
}

func Shell(name string, task ShellTask) EntryNode {
	return entries.Shell(name, task)
}

func Wait(name string, delay time.Duration) EntryNode {
	return entries.Wait(name, delay)
}

func SubWorkflow(name string, entry SubWorkflowEntry) EntryNode {
	return entries.SubWorkflow(name, entry)
}

// Blocking returns a node running a task produced by newTask for every
// execution.
func Blocking(name string, newTask func() BlockingTask) EntryNode {
	return EntryNode{
		Name:    name,
		Factory: blocking.Factory(newTask),
	}
}

// ObservabilityServer serves health, prometheus metrics and run history
// over HTTP.
type ObservabilityServer = observability.Server

type ObservabilityConfig = observability.Config

func DefaultObservabilityConfig() ObservabilityConfig {
	return observability.DefaultConfig()
}

// NewObservabilityServer exposes manager over HTTP. Metrics are read from
// gatherer, or from the default prometheus registry when it is nil.
func NewObservabilityServer(config ObservabilityConfig, manager *Manager, gatherer prometheus.Gatherer, logger *slog.Logger) *ObservabilityServer {
	return observability.NewServer(config, manager, gatherer, logger)
}

// FailResult marks result failed from a blocking task's failure callback.
func FailResult(unit *BlockingUnit, err error, result *Result) {
	blocking.FailResult(unit, err, result)
}
