package blocking

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/eleven-am/jobgraph/internal/adapters/variables"
	"github.com/eleven-am/jobgraph/internal/domain"
)

type testScope struct {
	vars    *variables.Space
	stopped atomic.Bool
}

func newTestScope(values map[string]string) *testScope {
	return &testScope{vars: variables.FromMap(values)}
}

func (s *testScope) RunID() string { return "run-test" }
func (s *testScope) WorkflowName() string { return "blocking-test" }
func (s *testScope) EntryName() string { return "task" }
func (s *testScope) CopyNr() int { return 0 }
func (s *testScope) IsStopped() bool { return s.stopped.Load() }
func (s *testScope) Variables() domain.Variables { return s.vars }
func (s *testScope) Logger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type testTask struct {
	options  Config
	valid    func(Config) bool
	work     func(ctx context.Context, config Config, result *domain.Result) error
	failures chan error
}

func (t *testTask) CreateConfig() Config {
	if t.options == nil {
		return Config{}
	}
	return t.options.Clone()
}

func (t *testTask) IsValid(config Config) bool {
	if t.valid == nil {
		return true
	}
	return t.valid(config)
}

func (t *testTask) Work(config Config, result *domain.Result) WorkFunc {
	return func(ctx context.Context) error {
		return t.work(ctx, config, result)
	}
}

func (t *testTask) OnUncaughtFailure(unit *Unit, err error, result *domain.Result) {
	FailResult(unit, err, result)
	if t.failures != nil {
		t.failures <- err
	}
}
