package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/jobgraph/internal/domain"
)

func outcome(runID string, seq int64, entry string, success bool) domain.EntryOutcome {
	return domain.EntryOutcome{
		RunID:     runID,
		Sequence:  seq,
		Workflow:  "wf",
		EntryName: entry,
		Phase:     domain.PhaseEntryFinished,
		Result:    domain.Result{Success: success},
		LoggedAt:  time.Now(),
	}
}

func TestHistoryStore_BuffersUntilFlush(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestStorage(t), nil)

	require.NoError(t, store.Append(ctx, outcome("run-1", 2, "b", true)))
	require.NoError(t, store.Append(ctx, outcome("run-1", 1, "a", false)))
	assert.Equal(t, 2, store.Pending("run-1"))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, store.Flush(ctx, "run-1"))
	assert.Zero(t, store.Pending("run-1"))

	loaded, err = store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "a", loaded[0].EntryName)
	assert.False(t, loaded[0].Result.Success)
	assert.Equal(t, "b", loaded[1].EntryName)
}

func TestHistoryStore_RunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestStorage(t), nil)

	require.NoError(t, store.Append(ctx, outcome("run-1", 1, "a", true)))
	require.NoError(t, store.Append(ctx, outcome("run-10", 1, "z", true)))
	require.NoError(t, store.Flush(ctx, "run-1"))
	require.NoError(t, store.Flush(ctx, "run-10"))

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "a", loaded[0].EntryName)
}

func TestHistoryStore_RejectsMissingRunID(t *testing.T) {
	store := NewHistoryStore(newTestStorage(t), nil)
	err := store.Append(context.Background(), domain.EntryOutcome{})
	assert.True(t, domain.IsValidationError(err))
}

func TestHistoryStore_CancelledFlushKeepsOutcomes(t *testing.T) {
	store := NewHistoryStore(newTestStorage(t), nil)
	require.NoError(t, store.Append(context.Background(), outcome("run-1", 1, "a", true)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Flush(ctx, "run-1"))
	assert.Equal(t, 1, store.Pending("run-1"))
}

func TestHistoryStore_EncodingFailureKeepsOutcomes(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestStorage(t), nil)

	broken := outcome("run-4", 2, "b", true)
	broken.Result.Payload = map[string]interface{}{"unencodable": make(chan int)}

	require.NoError(t, store.Append(ctx, outcome("run-4", 1, "a", true)))
	require.NoError(t, store.Append(ctx, broken))

	err := store.Flush(ctx, "run-4")
	require.Error(t, err)
	assert.Equal(t, domain.CategoryStorage, domain.GetErrorCategory(err))
	assert.Equal(t, 2, store.Pending("run-4"))

	loaded, err := store.Load(ctx, "run-4")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestHistoryStore_SummaryAndPurge(t *testing.T) {
	ctx := context.Background()
	store := NewHistoryStore(newTestStorage(t), nil)

	_, err := store.Summary(ctx, "run-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SaveSummary(ctx, domain.RunSummary{RunID: "run-1", Workflow: "wf", Success: true, Entries: 3}))
	require.NoError(t, store.Append(ctx, outcome("run-1", 1, "a", true)))
	require.NoError(t, store.Flush(ctx, "run-1"))

	summary, err := store.Summary(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 3, summary.Entries)

	deleted, err := store.Purge(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, loaded)
	_, err = store.Summary(ctx, "run-1")
	assert.Error(t, err)
}
