package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eleven-am/jobgraph/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, mutate ...func(*domain.Config)) *Engine {
	t.Helper()
	config := domain.DefaultConfig()
	config.Logger = quietLogger()
	config.Metrics.Enabled = false
	config.Tracing.Enabled = false
	for _, m := range mutate {
		m(config)
	}
	e, err := NewEngine(config)
	require.NoError(t, err)
	return e
}

// recorder keeps the order in which entries executed.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

func (r *recorder) executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func (r *recorder) count(name string) int {
	n := 0
	for _, got := range r.executed() {
		if got == name {
			n++
		}
	}
	return n
}

type graph struct {
	t   *testing.T
	def *domain.WorkflowDefinition
	ids map[string]domain.NodeID
	rec *recorder
}

func newGraph(t *testing.T, name string) *graph {
	return &graph{
		t:   t,
		def: domain.NewWorkflowDefinition(name),
		ids: make(map[string]domain.NodeID),
		rec: &recorder{},
	}
}

type nodeOption func(*domain.EntryNode)

func asStart() nodeOption { return func(n *domain.EntryNode) { n.IsStart = true } }
func evaluating() nodeOption { return func(n *domain.EntryNode) { n.Evaluates = true } }
func parallel() nodeOption { return func(n *domain.EntryNode) { n.LaunchesInParallel = true } }
func resetsErrors() nodeOption { return func(n *domain.EntryNode) { n.ResetsErrorsOnEntry = true } }

// node adds an entry that records its execution and then delegates to fn.
func (g *graph) node(name string, fn domain.EntryFunc, opts ...nodeOption) domain.NodeID {
	g.t.Helper()
	rec := g.rec
	node := domain.EntryNode{
		Name: name,
		Factory: func() domain.Entry {
			return domain.EntryFunc(func(ctx context.Context, scope domain.Scope, prev *domain.Result) (*domain.Result, error) {
				rec.add(name)
				return fn(ctx, scope, prev)
			})
		},
	}
	for _, opt := range opts {
		opt(&node)
	}
	id, err := g.def.AddNode(node)
	require.NoError(g.t, err)
	g.ids[name] = id
	return id
}

func (g *graph) start(name string, opts ...nodeOption) domain.NodeID {
	return g.node(name, succeed(), append(opts, asStart())...)
}

func (g *graph) always(from, to string) {
	g.t.Helper()
	require.NoError(g.t, g.def.Connect(g.ids[from], g.ids[to], true, false))
}

func (g *graph) onSuccess(from, to string) {
	g.t.Helper()
	require.NoError(g.t, g.def.Connect(g.ids[from], g.ids[to], false, true))
}

func (g *graph) onFailure(from, to string) {
	g.t.Helper()
	require.NoError(g.t, g.def.Connect(g.ids[from], g.ids[to], false, false))
}

func succeed() domain.EntryFunc {
	return func(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
		res := prev.Clone()
		res.Success = true
		return res, nil
	}
}

func failWith(n int64) domain.EntryFunc {
	return func(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
		return prev.Clone().Fail(n), nil
	}
}

func raise(err error) domain.EntryFunc {
	return func(context.Context, domain.Scope, *domain.Result) (*domain.Result, error) {
		return nil, err
	}
}

func withPayload(key string, value interface{}) domain.EntryFunc {
	return func(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
		res := prev.Clone()
		res.Success = true
		res.SetPayload(key, value)
		return res, nil
	}
}

func sleepFor(d time.Duration) domain.EntryFunc {
	return func(ctx context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		res := prev.Clone()
		res.Success = true
		return res, nil
	}
}

var errBoom = errors.New("boom")

func historyNames(outcomes []domain.EntryOutcome) []string {
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		names = append(names, o.EntryName)
	}
	return names
}
