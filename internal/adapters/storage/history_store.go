package storage

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

const historyComponent = "storage.HistoryStore"

// HistoryStore buffers run outcomes in memory and writes them to storage in
// a single batch when the run is flushed.
type HistoryStore struct {
	storage ports.StoragePort
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string][]domain.EntryOutcome
}

func NewHistoryStore(storage ports.StoragePort, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{
		storage: storage,
		logger:  logger.With("component", "history-store"),
		pending: make(map[string][]domain.EntryOutcome),
	}
}

func (h *HistoryStore) Append(ctx context.Context, outcome domain.EntryOutcome) error {
	if outcome.RunID == "" {
		return domain.NewValidationError("outcome run id is required", domain.ErrInvalidInput,
			domain.WithComponent(historyComponent))
	}

	h.mu.Lock()
	h.pending[outcome.RunID] = append(h.pending[outcome.RunID], outcome)
	h.mu.Unlock()
	return nil
}

func (h *HistoryStore) Pending(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending[runID])
}

func (h *HistoryStore) Flush(ctx context.Context, runID string) error {
	h.mu.Lock()
	outcomes := h.pending[runID]
	delete(h.pending, runID)
	h.mu.Unlock()

	if len(outcomes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		h.requeue(runID, outcomes)
		return domain.NewStorageError("history flush cancelled", err, domain.WithComponent(historyComponent), domain.WithRunID(runID))
	}

	ops := make([]ports.WriteOp, 0, len(outcomes))
	for _, outcome := range outcomes {
		data, err := json.Marshal(outcome)
		if err != nil {
			h.requeue(runID, outcomes)
			return domain.NewStorageError("failed to encode outcome", err,
				domain.WithComponent(historyComponent), domain.WithRunID(runID))
		}
		ops = append(ops, ports.WriteOp{
			Type:  ports.OpPut,
			Key:   domain.HistoryKey(runID, outcome.Sequence),
			Value: data,
		})
	}

	if err := h.storage.BatchWrite(ops); err != nil {
		h.requeue(runID, outcomes)
		return err
	}

	h.logger.Debug("history flushed", "run_id", runID, "outcomes", len(outcomes))
	return nil
}

func (h *HistoryStore) SaveSummary(ctx context.Context, summary domain.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return domain.NewStorageError("failed to encode run summary", err,
			domain.WithComponent(historyComponent), domain.WithRunID(summary.RunID))
	}
	return h.storage.Put(domain.RunMetaKey(summary.RunID), data)
}

func (h *HistoryStore) Load(ctx context.Context, runID string) ([]domain.EntryOutcome, error) {
	items, err := h.storage.ListByPrefix(domain.HistoryRunPrefix(runID))
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.EntryOutcome, 0, len(items))
	for _, item := range items {
		var outcome domain.EntryOutcome
		if err := json.Unmarshal(item.Value, &outcome); err != nil {
			return nil, domain.NewStorageError("failed to decode outcome", err,
				domain.WithComponent(historyComponent), domain.WithRunID(runID), domain.WithDetail("key", item.Key))
		}
		outcomes = append(outcomes, outcome)
	}

	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Sequence < outcomes[j].Sequence
	})
	return outcomes, nil
}

func (h *HistoryStore) Summary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	data, exists, err := h.storage.Get(domain.RunMetaKey(runID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewStorageError("run summary not found", domain.ErrNotFound,
			domain.WithComponent(historyComponent), domain.WithRunID(runID))
	}

	var summary domain.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, domain.NewStorageError("failed to decode run summary", err,
			domain.WithComponent(historyComponent), domain.WithRunID(runID))
	}
	return &summary, nil
}

func (h *HistoryStore) Purge(ctx context.Context, runID string) (int, error) {
	h.mu.Lock()
	delete(h.pending, runID)
	h.mu.Unlock()

	deleted, err := h.storage.DeleteByPrefix(domain.HistoryRunPrefix(runID))
	if err != nil {
		return deleted, err
	}
	if err := h.storage.Delete(domain.RunMetaKey(runID)); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (h *HistoryStore) requeue(runID string, outcomes []domain.EntryOutcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[runID] = append(outcomes, h.pending[runID]...)
}
