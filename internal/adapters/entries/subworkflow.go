package entries

import (
	"context"
	"strconv"
	"time"

	"github.com/eleven-am/jobgraph/internal/adapters/engine"
	"github.com/eleven-am/jobgraph/internal/domain"
)

// SubWorkflowEntry runs another definition as a child of the current run.
// The child inherits the parent's variables and stop signal and its result
// is folded into this entry's result.
type SubWorkflowEntry struct {
	Definition *domain.WorkflowDefinition
	// Parameters are substituted in the parent's variable space and passed
	// to the child.
	Parameters map[string]string
	// PassResult hands the incoming result to the child's start entry.
	PassResult bool
}

func (s *SubWorkflowEntry) Validate() error {
	if s.Definition == nil {
		return domain.NewValidationError("sub-workflow definition is required", domain.ErrInvalidConfig)
	}
	return s.Definition.Validate()
}

func (s *SubWorkflowEntry) Execute(ctx context.Context, scope domain.Scope, prev *domain.Result) (*domain.Result, error) {
	parent, ok := engine.JobFromScope(scope)
	if !ok {
		return nil, domain.NewEntryExecutionError("sub-workflow requires an engine scope", domain.ErrInvalidInput,
			domain.WithEntry(scope.EntryName(), scope.CopyNr()))
	}
	logger := scope.Logger().With("component", "sub-workflow", "child_workflow", s.Definition.Name)

	params := make(map[string]string, len(s.Parameters))
	for k, v := range s.Parameters {
		params[k] = scope.Variables().Substitute(v)
	}

	child := parent.Engine().NewJob(s.Definition,
		engine.WithParentJob(parent),
		engine.WithParameters(params))

	var initial *domain.Result
	if s.PassResult {
		initial = prev.Clone()
	}

	logger.Info("starting sub-workflow", "child_run_id", child.ID())
	childRes, err := child.Run(ctx, initial)

	res := prev.Clone()
	res.Success = true
	res.Errors = 0
	if childRes != nil {
		if mergeErr := res.Merge(childRes); mergeErr != nil {
			logger.Warn("failed to merge sub-workflow payload", "error", mergeErr)
		}
	}
	if err != nil {
		logger.Error("sub-workflow failed", "child_run_id", child.ID(), "error", err)
		res.AppendLog(err.Error())
	}
	res.Stopped = res.Stopped || scope.IsStopped()
	if !res.Stopped && (childRes == nil || !childRes.Success) {
		res.Fail(res.Errors + 1)
	}

	logger.Info("sub-workflow finished",
		"child_run_id", child.ID(),
		"success", res.Success,
		"errors", res.Errors)
	return res, nil
}

func SubWorkflow(name string, template SubWorkflowEntry) domain.EntryNode {
	return domain.EntryNode{
		Name: name,
		Factory: func() domain.Entry {
			entry := template
			return &entry
		},
	}
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
