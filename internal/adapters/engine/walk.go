package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/jobgraph/internal/domain"
)

// execute runs the entry at id and then follows its taken hops, returning
// the result of the deepest branch walked.
func (j *Job) execute(ctx context.Context, depth, nr int, prev *domain.Result, id domain.NodeID, reason string) (*domain.Result, error) {
	if j.IsStopped() {
		return domain.StoppedResult(nr), nil
	}

	node := j.definition.MustNode(id)
	if maxDepth := j.engine.config.Engine.MaxDepth; depth > maxDepth {
		j.addErrors(1)
		return domain.NewResult().Fail(1), newEntryError("maximum walk depth exceeded", domain.ErrMaxDepthExceeded,
			domain.WithRunID(j.id),
			domain.WithEntry(node.Name, node.CopyNr),
			domain.WithDetail("max_depth", maxDepth))
	}

	input := prev.Clone()
	res, err := j.runEntry(ctx, depth, nr, node, input, reason)
	if err != nil || res.Stopped {
		return res, err
	}

	taken := j.takenHops(id, node, res)
	if len(taken) == 0 {
		return settle(res), nil
	}

	if node.LaunchesInParallel {
		out, err := j.fanOut(ctx, depth, nr, node, res, taken)
		if err != nil {
			return out, err
		}
		return settle(out), nil
	}

	current := res
	for _, hop := range taken {
		if j.IsStopped() {
			stopped := current.Clone()
			stopped.Stopped = true
			return stopped, nil
		}

		out, err := j.execute(ctx, depth+1, nr+1, j.forward(current, hop), hop.To, hopReason(node, hop, res))
		if err != nil {
			return out, err
		}
		current = out
		if current.Stopped {
			return current, nil
		}
	}
	return settle(current), nil
}

// settle returns a copy of res that reports failure whenever errors were
// counted. Hops are always evaluated on the entry's own result.
func settle(res *domain.Result) *domain.Result {
	out := res.Clone()
	if out.Errors > 0 {
		out.Success = false
	}
	return out
}

func (j *Job) takenHops(id domain.NodeID, node domain.EntryNode, res *domain.Result) []domain.Hop {
	hops := j.definition.OutgoingHops(id)
	taken := make([]domain.Hop, 0, len(hops))
	for _, hop := range hops {
		if hop.Taken(node, res) {
			taken = append(taken, hop)
		}
	}
	return taken
}

// forward prepares the result handed to the target of hop, clearing the
// error count when the target asks for it.
func (j *Job) forward(res *domain.Result, hop domain.Hop) *domain.Result {
	out := res.Clone()
	if target := j.definition.MustNode(hop.To); target.ResetsErrorsOnEntry {
		out.ResetErrors()
	}
	return out
}

func hopReason(from domain.EntryNode, hop domain.Hop, res *domain.Result) string {
	switch {
	case hop.Unconditional:
		return "followed unconditional hop from " + from.Identity()
	case res.Success:
		return "followed hop after success of " + from.Identity()
	default:
		return "followed hop after failure of " + from.Identity()
	}
}

func (j *Job) runEntry(ctx context.Context, depth, nr int, node domain.EntryNode, input *domain.Result, reason string) (*domain.Result, error) {
	logger := j.logger.With("entry", node.Name, "copy_nr", node.CopyNr, "depth", depth)

	// The slot is taken before the entry is announced so an entry that never
	// starts leaves no listener calls or history behind.
	if j.slots != nil {
		if err := j.slots.Acquire(ctx, 1); err != nil {
			logger.Debug("entry skipped while waiting for a slot", "error", err)
			return domain.StoppedResult(nr), nil
		}
		defer j.slots.Release(1)
	}

	j.lifecycle.TriggerBeforeEntry(j, node)
	started := j.entryOutcome(node, domain.PhaseEntryStarted, nil, "started", reason)
	j.tracker.Append(ctx, started)

	entryCtx, span := j.startEntrySpan(ctx, node, depth)
	begin := time.Now()
	res, err := j.invoke(entryCtx, node, input)
	duration := time.Since(begin)

	if err != nil && domain.IsCancellationError(err) && (j.IsStopped() || ctx.Err() != nil) {
		j.Stop()
		logger.Debug("entry interrupted by stop", "error", err)
		res, err = domain.StoppedResult(nr), nil
	}
	if err == nil && res == nil {
		err = newEntryError("entry returned no result", nil)
	}

	if err != nil {
		j.addErrors(1)
		wrapped := newEntryError(fmt.Sprintf("entry %s failed", node.Identity()), err,
			domain.WithRunID(j.id),
			domain.WithWorkflow(j.definition.Name),
			domain.WithEntry(node.Name, node.CopyNr),
			domain.WithDetail("depth", depth))
		failed := domain.NewResult().Fail(1)
		failed.EntryNr = nr

		endSpan(span, failed, wrapped)
		j.recordEntry(ctx, node, failed, duration, err.Error(), reason)
		logger.Error("entry execution failed", errorLogAttrs(wrapped)...)
		return failed, wrapped
	}

	res.EntryNr = nr
	j.addErrors(res.Errors)
	endSpan(span, res, nil)
	j.recordEntry(ctx, node, res, duration, "finished", reason)

	logger.Debug("entry finished",
		"success", res.Success,
		"errors", res.Errors,
		"duration", duration)
	return res, nil
}

func (j *Job) invoke(ctx context.Context, node domain.EntryNode, input *domain.Result) (res *domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := domain.NewEntryPanicError(j.id, node.Name, node.CopyNr, r)
			j.engine.stats.IncrementEntriesPanicked()
			j.logger.Error("entry panicked",
				"entry", node.Name,
				"copy_nr", node.CopyNr,
				"panic_value", r,
				"stack_trace", panicErr.StackTrace)
			res, err = nil, panicErr
		}
	}()

	entry := node.Factory()
	if entry == nil {
		return nil, newEntryError("entry factory returned nil", domain.ErrMissingFactory)
	}
	return entry.Execute(ctx, j.newScope(node), input)
}

func (j *Job) recordEntry(ctx context.Context, node domain.EntryNode, res *domain.Result, duration time.Duration, comment, reason string) {
	outcome := j.entryOutcome(node, domain.PhaseEntryFinished, res, comment, reason)
	outcome.Duration = duration
	j.tracker.Append(ctx, outcome)

	j.lifecycle.TriggerAfterEntry(j, node, res)

	label := "success"
	if res.Stopped {
		label = "stopped"
	} else if !res.Success {
		label = "failure"
	}
	j.engine.metrics.EntryExecutions.WithLabelValues(j.definition.Name, node.Name, label).Inc()
	j.engine.metrics.EntryDuration.WithLabelValues(j.definition.Name, node.Name).Observe(duration.Seconds())
	j.engine.stats.RecordEntry(duration, res.Success)
}

func (j *Job) entryOutcome(node domain.EntryNode, phase domain.OutcomePhase, res *domain.Result, comment, reason string) domain.EntryOutcome {
	outcome := domain.NewEntryOutcome(j.id, j.definition.Name, node, phase, res)
	outcome.Comment = comment
	outcome.Reason = reason
	return outcome
}
