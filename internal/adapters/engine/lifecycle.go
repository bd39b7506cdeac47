package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/jobgraph/internal/domain"
)

// RunListener observes a run starting or finishing. A returned error fails
// the run.
type RunListener func(job *Job) error

// EntryListener observes an entry before (result is nil) or after it runs.
type EntryListener func(job *Job, node domain.EntryNode, result *domain.Result)

type HeartbeatListener func(job *Job)

// LifecycleManager holds the listeners of one run. Listeners are fired
// synchronously on the goroutine that reached the event; a panicking
// listener is contained and logged.
type LifecycleManager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	runStarted  []RunListener
	runFinished []RunListener
	beforeEntry []EntryListener
	afterEntry  []EntryListener
	heartbeat   []HeartbeatListener
}

func NewLifecycleManager(logger *slog.Logger) *LifecycleManager {
	return &LifecycleManager{
		logger: logger.With("component", "lifecycle-manager"),
	}
}

func (lm *LifecycleManager) OnRunStarted(l RunListener) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.runStarted = append(lm.runStarted, l)
}

func (lm *LifecycleManager) OnRunFinished(l RunListener) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.runFinished = append(lm.runFinished, l)
}

func (lm *LifecycleManager) OnBeforeEntry(l EntryListener) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.beforeEntry = append(lm.beforeEntry, l)
}

func (lm *LifecycleManager) OnAfterEntry(l EntryListener) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.afterEntry = append(lm.afterEntry, l)
}

func (lm *LifecycleManager) OnHeartbeat(l HeartbeatListener) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.heartbeat = append(lm.heartbeat, l)
}

func (lm *LifecycleManager) TriggerRunStarted(job *Job) error {
	lm.mu.RLock()
	listeners := append([]RunListener(nil), lm.runStarted...)
	lm.mu.RUnlock()
	return lm.triggerRun("run_started", job, listeners)
}

func (lm *LifecycleManager) TriggerRunFinished(job *Job) error {
	lm.mu.RLock()
	listeners := append([]RunListener(nil), lm.runFinished...)
	lm.mu.RUnlock()
	return lm.triggerRun("run_finished", job, listeners)
}

// triggerRun calls every listener even when an earlier one fails and
// returns the first failure.
func (lm *LifecycleManager) triggerRun(event string, job *Job, listeners []RunListener) error {
	var firstErr error
	for i, l := range listeners {
		if err := lm.callRun(event, i, job, l); err != nil {
			lm.logger.Error("run listener failed", append([]any{"event", event, "listener", i}, errorLogAttrs(err)...)...)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (lm *LifecycleManager) callRun(event string, index int, job *Job, l RunListener) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewInternalError(fmt.Sprintf("%s listener %d panicked: %v", event, index, r), nil,
				domain.WithComponent(lifecycleComponent), domain.WithRunID(job.ID()))
		}
	}()
	return l(job)
}

func (lm *LifecycleManager) TriggerBeforeEntry(job *Job, node domain.EntryNode) {
	lm.mu.RLock()
	listeners := append([]EntryListener(nil), lm.beforeEntry...)
	lm.mu.RUnlock()

	for i, l := range listeners {
		lm.callEntry("before_entry", i, job, node, nil, l)
	}
}

func (lm *LifecycleManager) TriggerAfterEntry(job *Job, node domain.EntryNode, result *domain.Result) {
	lm.mu.RLock()
	listeners := append([]EntryListener(nil), lm.afterEntry...)
	lm.mu.RUnlock()

	for i, l := range listeners {
		lm.callEntry("after_entry", i, job, node, result.Clone(), l)
	}
}

func (lm *LifecycleManager) callEntry(event string, index int, job *Job, node domain.EntryNode, result *domain.Result, l EntryListener) {
	defer func() {
		if r := recover(); r != nil {
			lm.logger.Error("entry listener panicked",
				"event", event,
				"listener", index,
				"entry", node.Name,
				"copy_nr", node.CopyNr,
				"panic_value", r)
		}
	}()
	l(job, node, result)
}

func (lm *LifecycleManager) TriggerHeartbeat(job *Job) {
	lm.mu.RLock()
	listeners := append([]HeartbeatListener(nil), lm.heartbeat...)
	lm.mu.RUnlock()

	for i, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					lm.logger.Error("heartbeat listener panicked", "listener", i, "panic_value", r)
				}
			}()
			l(job)
		}()
	}
}
