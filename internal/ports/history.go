package ports

import (
	"context"

	"github.com/eleven-am/jobgraph/internal/domain"
)

// HistorySink receives every outcome a tracker records. Append is called
// concurrently from parallel branches; Flush is called once when a run
// finishes.
type HistorySink interface {
	Append(ctx context.Context, outcome domain.EntryOutcome) error
	Flush(ctx context.Context, runID string) error
}

// RunSummarizer is implemented by sinks that persist a per-run summary.
type RunSummarizer interface {
	SaveSummary(ctx context.Context, summary domain.RunSummary) error
}
