package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eleven-am/jobgraph/internal/domain"
	"github.com/eleven-am/jobgraph/internal/ports"
)

// Tracker is the append-only trail of a single run. Parallel branches append
// concurrently.
type Tracker struct {
	runID      string
	workflow   string
	maxEntries int
	sink       ports.HistorySink
	logger     *slog.Logger

	mu       sync.Mutex
	sequence int64
	records  []domain.EntryOutcome
}

func New(runID, workflow string, maxEntries int, sink ports.HistorySink, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		runID:      runID,
		workflow:   workflow,
		maxEntries: maxEntries,
		sink:       sink,
		logger:     logger.With("component", "tracker", "run_id", runID),
	}
}

// Append stamps outcome with the run identity and the next sequence number
// and returns the stored record.
func (t *Tracker) Append(ctx context.Context, outcome domain.EntryOutcome) domain.EntryOutcome {
	t.mu.Lock()
	t.sequence++
	outcome.Sequence = t.sequence
	outcome.RunID = t.runID
	outcome.Workflow = t.workflow
	t.records = append(t.records, outcome)
	t.trimLocked()
	t.mu.Unlock()

	if t.sink != nil {
		if err := t.sink.Append(ctx, outcome); err != nil {
			t.logger.Warn("history sink rejected outcome",
				"sequence", outcome.Sequence,
				"entry", outcome.EntryName,
				"error", err)
		}
	}
	return outcome
}

// trimLocked drops the oldest entry completions once the cap is exceeded.
// Run markers and in-flight start markers are kept.
func (t *Tracker) trimLocked() {
	if t.maxEntries <= 0 {
		return
	}

	finished := 0
	for _, r := range t.records {
		if r.IsEntryCompletion() {
			finished++
		}
	}
	if finished <= t.maxEntries {
		return
	}

	drop := finished - t.maxEntries
	kept := t.records[:0]
	for _, r := range t.records {
		if drop > 0 && r.IsEntryCompletion() {
			drop--
			continue
		}
		kept = append(kept, r)
	}
	t.records = kept
}

func (t *Tracker) Outcomes() []domain.EntryOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.EntryOutcome(nil), t.records...)
}

// Finished returns only entry completion records.
func (t *Tracker) Finished() []domain.EntryOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.EntryOutcome, 0, len(t.records))
	for _, r := range t.records {
		if r.IsEntryCompletion() {
			out = append(out, r)
		}
	}
	return out
}

func (t *Tracker) Find(name string, copyNr int) []domain.EntryOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.EntryOutcome
	for _, r := range t.records {
		if r.IsEntryCompletion() && r.EntryName == name && r.CopyNr == copyNr {
			out = append(out, r)
		}
	}
	return out
}

func (t *Tracker) Last() (domain.EntryOutcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.records) == 0 {
		return domain.EntryOutcome{}, false
	}
	return t.records[len(t.records)-1], true
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *Tracker) Flush(ctx context.Context) error {
	if t.sink == nil {
		return nil
	}
	return t.sink.Flush(ctx, t.runID)
}
