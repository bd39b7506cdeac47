package domain

import (
	"sync/atomic"
	"time"
)

type ExecutionMetrics struct {
	RunsStarted   int64 `json:"runs_started"`
	RunsSucceeded int64 `json:"runs_succeeded"`
	RunsFailed    int64 `json:"runs_failed"`
	RunsStopped   int64 `json:"runs_stopped"`

	EntriesExecuted  int64 `json:"entries_executed"`
	EntriesSucceeded int64 `json:"entries_succeeded"`
	EntriesFailed    int64 `json:"entries_failed"`
	EntriesPanicked  int64 `json:"entries_panicked"`

	BranchesLaunched int64 `json:"branches_launched"`
	BranchesFailed   int64 `json:"branches_failed"`
	Repeats          int64 `json:"repeats"`

	TotalEntryTimeNs int64 `json:"total_entry_time_ns"`
}

func NewExecutionMetrics() *ExecutionMetrics {
	return &ExecutionMetrics{}
}

func (m *ExecutionMetrics) IncrementRunsStarted() {
	atomic.AddInt64(&m.RunsStarted, 1)
}

func (m *ExecutionMetrics) RecordRunFinished(res *Result) {
	switch {
	case res == nil:
		atomic.AddInt64(&m.RunsFailed, 1)
	case res.Stopped:
		atomic.AddInt64(&m.RunsStopped, 1)
	case res.Success:
		atomic.AddInt64(&m.RunsSucceeded, 1)
	default:
		atomic.AddInt64(&m.RunsFailed, 1)
	}
}

func (m *ExecutionMetrics) RecordEntry(duration time.Duration, success bool) {
	atomic.AddInt64(&m.EntriesExecuted, 1)
	atomic.AddInt64(&m.TotalEntryTimeNs, int64(duration))
	if success {
		atomic.AddInt64(&m.EntriesSucceeded, 1)
	} else {
		atomic.AddInt64(&m.EntriesFailed, 1)
	}
}

func (m *ExecutionMetrics) IncrementEntriesPanicked() {
	atomic.AddInt64(&m.EntriesPanicked, 1)
}

func (m *ExecutionMetrics) IncrementBranchesLaunched() {
	atomic.AddInt64(&m.BranchesLaunched, 1)
}

func (m *ExecutionMetrics) IncrementBranchesFailed() {
	atomic.AddInt64(&m.BranchesFailed, 1)
}

func (m *ExecutionMetrics) IncrementRepeats() {
	atomic.AddInt64(&m.Repeats, 1)
}

func (m *ExecutionMetrics) GetSnapshot() ExecutionMetrics {
	return ExecutionMetrics{
		RunsStarted:      atomic.LoadInt64(&m.RunsStarted),
		RunsSucceeded:    atomic.LoadInt64(&m.RunsSucceeded),
		RunsFailed:       atomic.LoadInt64(&m.RunsFailed),
		RunsStopped:      atomic.LoadInt64(&m.RunsStopped),
		EntriesExecuted:  atomic.LoadInt64(&m.EntriesExecuted),
		EntriesSucceeded: atomic.LoadInt64(&m.EntriesSucceeded),
		EntriesFailed:    atomic.LoadInt64(&m.EntriesFailed),
		EntriesPanicked:  atomic.LoadInt64(&m.EntriesPanicked),
		BranchesLaunched: atomic.LoadInt64(&m.BranchesLaunched),
		BranchesFailed:   atomic.LoadInt64(&m.BranchesFailed),
		Repeats:          atomic.LoadInt64(&m.Repeats),
		TotalEntryTimeNs: atomic.LoadInt64(&m.TotalEntryTimeNs),
	}
}

func (m *ExecutionMetrics) GetAverageEntryTime() time.Duration {
	total := atomic.LoadInt64(&m.TotalEntryTimeNs)
	count := atomic.LoadInt64(&m.EntriesExecuted)
	if count == 0 {
		return 0
	}
	return time.Duration(total / count)
}
