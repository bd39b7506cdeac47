package jobgraph_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/jobgraph"
)

func newManager(t *testing.T) *jobgraph.Manager {
	t.Helper()
	config := jobgraph.DefaultConfig().
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithBlockingPolling(5*time.Millisecond, time.Second).
		WithPersistentHistory("")
	config.Tracing.Enabled = false

	m, err := jobgraph.NewWithConfig(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestFailedEntrySkipsSuccessHop(t *testing.T) {
	m := newManager(t)
	reachedB := false

	wf := jobgraph.NewWorkflow("scenario-a")
	start, err := wf.AddNode(jobgraph.Start("start"))
	require.NoError(t, err)
	a, err := wf.AddNode(jobgraph.EvalVariable("a", jobgraph.EvalVariableEntry{Variable: "${STATUS}", Compare: "ok"}))
	require.NoError(t, err)
	b, err := wf.AddNode(jobgraph.Func("b", func(context.Context, jobgraph.Scope) error {
		reachedB = true
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, wf.Connect(start, a, true, false))
	require.NoError(t, wf.Connect(a, b, false, true))

	res, err := m.Run(context.Background(), wf, nil,
		jobgraph.WithRunID("scenario-a"),
		jobgraph.WithVariables(map[string]string{"STATUS": "broken"}))

	require.NoError(t, err)
	assert.False(t, reachedB)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), res.Errors)

	summary, err := m.Summary(context.Background(), "scenario-a")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Entries)
}

func TestParallelBranchesMergeErrors(t *testing.T) {
	m := newManager(t)

	wf := jobgraph.NewWorkflow("scenario-b")
	start := jobgraph.Start("start")
	start.LaunchesInParallel = true
	s, err := wf.AddNode(start)
	require.NoError(t, err)
	a, err := wf.AddNode(jobgraph.Abort("a", "branch a failed"))
	require.NoError(t, err)
	b, err := wf.AddNode(jobgraph.Success("b"))
	require.NoError(t, err)
	require.NoError(t, wf.Connect(s, a, true, false))
	require.NoError(t, wf.Connect(s, b, true, false))

	res, err := m.Run(context.Background(), wf, nil, jobgraph.WithRunID("scenario-b"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), res.Errors)

	history, err := m.History(context.Background(), "scenario-b")
	require.NoError(t, err)
	finished := map[string]bool{}
	for _, outcome := range history {
		if outcome.Phase == jobgraph.PhaseEntryFinished {
			finished[outcome.EntryName] = true
		}
	}
	assert.Equal(t, map[string]bool{"start": true, "a": true, "b": true}, finished)
}

type failingTask struct {
	failed chan struct{}
}

func (f *failingTask) CreateConfig() jobgraph.BlockingConfig {
	return jobgraph.BlockingConfig{jobgraph.OptionBlockingExecution: "false"}
}

func (f *failingTask) IsValid(jobgraph.BlockingConfig) bool { return true }

func (f *failingTask) Work(jobgraph.BlockingConfig, *jobgraph.Result) jobgraph.WorkFunc {
	return func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return errors.New("background failure")
	}
}

func (f *failingTask) OnUncaughtFailure(unit *jobgraph.BlockingUnit, err error, result *jobgraph.Result) {
	jobgraph.FailResult(unit, err, result)
	close(f.failed)
}

func TestNonBlockingEntryIsOptimistic(t *testing.T) {
	m := newManager(t)
	task := &failingTask{failed: make(chan struct{})}

	wf := jobgraph.NewWorkflow("scenario-c")
	start, err := wf.AddNode(jobgraph.Start("start"))
	require.NoError(t, err)
	fire, err := wf.AddNode(jobgraph.Blocking("fire", func() jobgraph.BlockingTask { return task }))
	require.NoError(t, err)
	require.NoError(t, wf.Connect(start, fire, true, false))

	res, err := m.Run(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	select {
	case <-task.failed:
	case <-time.After(2 * time.Second):
		t.Fatal("background unit never failed")
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	_, err := jobgraph.LoadConfig("/definitely/missing/jobgraph.yaml")
	require.Error(t, err)
}

func TestObservabilityServerServesRunHistory(t *testing.T) {
	m := newManager(t)

	wf := jobgraph.NewWorkflow("observed")
	start, err := wf.AddNode(jobgraph.Start("start"))
	require.NoError(t, err)
	done, err := wf.AddNode(jobgraph.Success("done"))
	require.NoError(t, err)
	require.NoError(t, wf.Connect(start, done, true, false))

	_, err = m.Run(context.Background(), wf, nil, jobgraph.WithRunID("observed-1"))
	require.NoError(t, err)

	server := jobgraph.NewObservabilityServer(jobgraph.DefaultObservabilityConfig(), m, prometheus.NewRegistry(), nil)
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs/observed-1/summary")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/runs/unknown/summary")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
