package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/eleven-am/jobgraph/internal/domain"
)

// fanOut walks every taken hop on its own goroutine, waits for all of them
// and merges their results into the source entry's result in hop order.
// The first failure in hop order is returned after every branch finished.
func (j *Job) fanOut(ctx context.Context, depth, nr int, node domain.EntryNode, own *domain.Result, hops []domain.Hop) (*domain.Result, error) {
	results := make([]*domain.Result, len(hops))
	errs := make([]error, len(hops))

	j.logger.Debug("launching parallel branches", "entry", node.Name, "copy_nr", node.CopyNr, "branches", len(hops))

	var wg sync.WaitGroup
	for i, hop := range hops {
		input := j.forward(own, hop)
		reason := hopReason(node, hop, own)

		j.engine.stats.IncrementBranchesLaunched()
		j.engine.metrics.BranchesLaunched.WithLabelValues(j.definition.Name).Inc()

		wg.Add(1)
		go func(i int, hop domain.Hop) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					j.addErrors(1)
					errs[i] = newEntryError(fmt.Sprintf("parallel branch panicked: %v", r), nil,
						domain.WithRunID(j.id), domain.WithEntry(node.Name, node.CopyNr))
				}
			}()
			results[i], errs[i] = j.execute(ctx, depth+1, nr+1, input, hop.To, reason)
		}(i, hop)
	}
	wg.Wait()

	running := own.Clone()
	var firstErr error
	for i := range hops {
		branch := results[i]
		if errs[i] != nil {
			j.engine.stats.IncrementBranchesFailed()
			branch = domain.NewResult().Fail(1)
			if firstErr == nil {
				firstErr = errs[i]
			}
		}
		if branch == nil {
			continue
		}
		if err := running.Merge(branch); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		j.logger.Debug("parallel branches finished with failure", "entry", node.Name, "error", firstErr)
	}
	return running, firstErr
}
