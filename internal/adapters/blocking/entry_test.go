package blocking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/jobgraph/internal/domain"
)

func fastPolling(blocking string) Config {
	return Config{
		OptionBlockingExecution: blocking,
		OptionPollingInterval:   "5",
		OptionInterruptGrace:    "200",
	}
}

func TestEntry_BlockingSuccess(t *testing.T) {
	task := &testTask{
		options: fastPolling("true"),
		work: func(_ context.Context, _ Config, result *domain.Result) error {
			time.Sleep(20 * time.Millisecond)
			result.SetPayload("done", true)
			result.LinesWritten = 3
			return nil
		},
	}

	prev := domain.NewResult().Fail(4)
	res, err := NewEntry(task).Execute(context.Background(), newTestScope(nil), prev)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(0), res.Errors)
	assert.Equal(t, true, res.Payload["done"])
	assert.Equal(t, int64(3), res.LinesWritten)
	assert.Equal(t, int64(4), prev.Errors)
}

func TestEntry_BlockingFailure(t *testing.T) {
	task := &testTask{
		options: fastPolling("Y"),
		work: func(context.Context, Config, *domain.Result) error {
			return errors.New("disk unplugged")
		},
	}

	res, err := NewEntry(task).Execute(context.Background(), newTestScope(nil), nil)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), res.Errors)
	assert.Contains(t, res.LogText, "disk unplugged")
}

func TestEntry_InvalidConfiguration(t *testing.T) {
	task := &testTask{
		options: Config{"target": "${TARGET}"},
		valid:   func(c Config) bool { return c.Get("target") == "/data" },
		work: func(context.Context, Config, *domain.Result) error {
			t.Fatal("work must not run for invalid configuration")
			return nil
		},
	}
	entry := NewEntry(task)

	assert.NoError(t, entry.Validate())
	assert.Error(t, NewEntry(&testTask{options: Config{"target": "/tmp"}, valid: task.valid}).Validate())

	res, err := entry.Execute(context.Background(), newTestScope(map[string]string{"TARGET": "/elsewhere"}), domain.NewSuccessResult())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), res.Errors)
}

func TestEntry_ConfigurationResolvedFromVariables(t *testing.T) {
	task := &testTask{
		options: Config{"target": "${TARGET}", OptionPollingInterval: "5"},
		valid:   func(c Config) bool { return c.Get("target") != "" },
		work: func(_ context.Context, config Config, result *domain.Result) error {
			result.AddFile(config.Get("target"))
			return nil
		},
	}

	res, err := NewEntry(task).Execute(context.Background(), newTestScope(map[string]string{"TARGET": "/data/out.csv"}), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/out.csv"}, res.Files)
}

func TestEntry_NonBlockingReturnsOptimisticSuccess(t *testing.T) {
	failures := make(chan error, 1)
	release := make(chan struct{})
	task := &testTask{
		options:  fastPolling("false"),
		failures: failures,
		work: func(context.Context, Config, *domain.Result) error {
			<-release
			return errors.New("failed after return")
		},
	}

	res, err := NewEntry(task).Execute(context.Background(), newTestScope(nil), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(0), res.Errors)

	close(release)
	select {
	case err := <-failures:
		assert.EqualError(t, err, "failed after return")
	case <-time.After(2 * time.Second):
		t.Fatal("background failure was never reported")
	}
	assert.True(t, res.Success)
}

func TestEntry_NonBlockingSurvivesCancelledContext(t *testing.T) {
	finished := make(chan error, 1)
	task := &testTask{
		options: fastPolling("false"),
		work: func(ctx context.Context, _ Config, _ *domain.Result) error {
			time.Sleep(20 * time.Millisecond)
			finished <- ctx.Err()
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err := NewEntry(task).Execute(ctx, newTestScope(nil), nil)
	require.NoError(t, err)
	cancel()

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("detached unit never finished")
	}
}

func TestEntry_StopInterruptsUnit(t *testing.T) {
	scope := newTestScope(nil)
	task := &testTask{
		options: fastPolling("true"),
		work: func(ctx context.Context, _ Config, _ *domain.Result) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		scope.stopped.Store(true)
	}()

	res, err := NewEntry(task).Execute(context.Background(), scope, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Stopped)
	assert.Equal(t, int64(0), res.Errors)
}

func TestEntry_ContextCancellationInterruptsUnit(t *testing.T) {
	task := &testTask{
		options: fastPolling("true"),
		work: func(ctx context.Context, _ Config, _ *domain.Result) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := NewEntry(task).Execute(ctx, newTestScope(nil), nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Stopped)
}

func TestEntry_UnresponsiveUnitTimesOut(t *testing.T) {
	scope := newTestScope(nil)
	release := make(chan struct{})
	defer close(release)

	task := &testTask{
		options: Config{
			OptionPollingInterval: "5",
			OptionInterruptGrace:  "20",
		},
		work: func(context.Context, Config, *domain.Result) error {
			<-release
			return nil
		},
	}

	scope.stopped.Store(true)
	begin := time.Now()
	res, err := NewEntry(task).Execute(context.Background(), scope, domain.NewSuccessResult())

	require.NoError(t, err)
	assert.Less(t, time.Since(begin), time.Second)
	assert.False(t, res.Success)
	assert.True(t, res.Stopped)
	assert.Equal(t, int64(1), res.Errors)
}

func TestEntry_Factory(t *testing.T) {
	factory := Factory(func() Task { return &testTask{} })

	first, second := factory(), factory()
	assert.NotSame(t, first, second)
	_, ok := first.(domain.ConfigValidator)
	assert.True(t, ok)
}
