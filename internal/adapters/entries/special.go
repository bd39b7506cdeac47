package entries

import (
	"context"
	"time"

	"github.com/eleven-am/jobgraph/internal/domain"
)

// StartEntry is the special entry every workflow begins with. When Repeat
// is set the engine walks the graph again after every pass.
type StartEntry struct {
	Repeat   bool
	Interval time.Duration
}

func (s *StartEntry) Execute(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
	res := prev.Clone()
	res.Success = true
	return res, nil
}

func (s *StartEntry) Repeats() bool {
	return s.Repeat
}

func (s *StartEntry) RepeatInterval() time.Duration {
	return s.Interval
}

type StartOption func(*StartEntry)

// Repeating makes the workflow start over every interval until it is
// stopped.
func Repeating(interval time.Duration) StartOption {
	return func(s *StartEntry) {
		s.Repeat = true
		s.Interval = interval
	}
}

func Start(name string, opts ...StartOption) domain.EntryNode {
	template := StartEntry{}
	for _, opt := range opts {
		opt(&template)
	}
	return domain.EntryNode{
		Name:        name,
		Description: "start of the workflow",
		IsStart:     true,
		Factory: func() domain.Entry {
			entry := template
			return &entry
		},
	}
}

// DummyEntry passes its input through untouched.
type DummyEntry struct{}

func (DummyEntry) Execute(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
	return prev.Clone(), nil
}

func Dummy(name string) domain.EntryNode {
	return domain.EntryNode{
		Name:    name,
		IsDummy: true,
		Factory: func() domain.Entry { return DummyEntry{} },
	}
}

// SuccessEntry clears the error count and marks the result successful.
type SuccessEntry struct{}

func (SuccessEntry) Execute(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
	res := prev.Clone()
	res.Success = true
	res.Errors = 0
	return res, nil
}

func Success(name string) domain.EntryNode {
	return domain.EntryNode{
		Name:    name,
		Factory: func() domain.Entry { return SuccessEntry{} },
	}
}

// AbortEntry fails the branch with one error and logs Message after
// variable substitution.
type AbortEntry struct {
	Message string
}

func (a *AbortEntry) Execute(_ context.Context, scope domain.Scope, prev *domain.Result) (*domain.Result, error) {
	message := scope.Variables().Substitute(a.Message)
	if message == "" {
		message = "workflow aborted"
	}
	scope.Logger().Error(message, "component", "abort-entry")

	res := prev.Clone().Fail(1)
	res.AppendLog(message)
	return res, nil
}

func Abort(name, message string) domain.EntryNode {
	return domain.EntryNode{
		Name: name,
		Factory: func() domain.Entry {
			return &AbortEntry{Message: message}
		},
	}
}

// FuncEntry adapts a function that only reports failure through its error.
// A returned error fails the result with one error instead of failing the
// run.
type FuncEntry struct {
	Fn func(ctx context.Context, scope domain.Scope) error
}

func (f *FuncEntry) Execute(ctx context.Context, scope domain.Scope, prev *domain.Result) (*domain.Result, error) {
	res := prev.Clone()
	res.Success = true
	res.Errors = 0

	if err := f.Fn(ctx, scope); err != nil {
		scope.Logger().Warn("function entry failed", "error", err)
		res.Fail(1)
		res.AppendLog(err.Error())
	}
	return res, nil
}

func Func(name string, fn func(ctx context.Context, scope domain.Scope) error) domain.EntryNode {
	return domain.EntryNode{
		Name: name,
		Factory: func() domain.Entry {
			return &FuncEntry{Fn: fn}
		},
	}
}
