package domain

import (
	"context"
	"log/slog"
	"time"
)

// Entry is the unit of work behind a graph node. Implementations receive a
// private copy of the predecessor's result and return their own.
type Entry interface {
	Execute(ctx context.Context, scope Scope, prev *Result) (*Result, error)
}

// EntryFactory produces a fresh Entry for each execution of a node, so
// parallel branches never share mutable entry state.
type EntryFactory func() Entry

// EntryFunc adapts a plain function to Entry.
type EntryFunc func(ctx context.Context, scope Scope, prev *Result) (*Result, error)

func (f EntryFunc) Execute(ctx context.Context, scope Scope, prev *Result) (*Result, error) {
	return f(ctx, scope, prev)
}

// Scope is what the engine exposes to an executing entry.
type Scope interface {
	RunID() string
	WorkflowName() string
	EntryName() string
	CopyNr() int
	IsStopped() bool
	Variables() Variables
	Logger() *slog.Logger
}

type Variables interface {
	Get(name string) (string, bool)
	Set(name, value string)
	Substitute(text string) string
	Snapshot() map[string]string
}

// Repeater is implemented by start entries that loop the run.
type Repeater interface {
	Repeats() bool
	RepeatInterval() time.Duration
}

// ConfigValidator is checked for every node before a run executes anything.
type ConfigValidator interface {
	Validate() error
}
