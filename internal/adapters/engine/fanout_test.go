package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/jobgraph/internal/domain"
)

func TestFanOut_BranchesRunConcurrently(t *testing.T) {
	const branches = 4
	var inFlight, peak atomic.Int32
	barrier := make(chan struct{})

	g := newGraph(t, "concurrent")
	g.start("start", parallel())
	for _, name := range []string{"a", "b", "c", "d"} {
		g.node(name, func(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
			now := inFlight.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			if now == branches {
				close(barrier)
			}
			select {
			case <-barrier:
			case <-time.After(2 * time.Second):
			}
			inFlight.Add(-1)
			return prev.Clone(), nil
		})
		g.always("start", name)
	}

	_, err := newTestEngine(t).Run(context.Background(), g.def, domain.NewSuccessResult())
	require.NoError(t, err)
	assert.Equal(t, int32(branches), peak.Load())
}

func TestFanOut_MergesInHopOrder(t *testing.T) {
	g := newGraph(t, "ordered")
	g.start("start", parallel())
	g.node("slow", func(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
		time.Sleep(30 * time.Millisecond)
		res := prev.Clone()
		res.Success = true
		res.AddFile("slow.txt")
		res.SetPayload("winner", "slow")
		res.LinesRead = 10
		return res, nil
	})
	g.node("fast", func(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
		res := prev.Clone()
		res.Success = true
		res.AddFile("fast.txt")
		res.SetPayload("winner", "fast")
		res.LinesRead = 5
		return res, nil
	})
	g.always("start", "slow")
	g.always("start", "fast")

	res, err := newTestEngine(t).Run(context.Background(), g.def, domain.NewSuccessResult())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"slow.txt", "fast.txt"}, res.Files)
	assert.Equal(t, "fast", res.Payload["winner"])
	assert.Equal(t, int64(15), res.LinesRead)
}

func TestFanOut_ErrorsSummedAndFirstErrorReturned(t *testing.T) {
	errFirst := errors.New("first")
	errSecond := errors.New("second")

	g := newGraph(t, "failures")
	g.start("start", parallel())
	g.node("counted", failWith(3))
	g.node("first", func(context.Context, domain.Scope, *domain.Result) (*domain.Result, error) {
		time.Sleep(30 * time.Millisecond)
		return nil, errFirst
	})
	g.node("second", raise(errSecond))
	g.node("fine", succeed())
	g.always("start", "counted")
	g.always("start", "first")
	g.always("start", "second")
	g.always("start", "fine")

	e := newTestEngine(t)
	job := e.NewJob(g.def)
	res, err := job.Run(context.Background(), domain.NewSuccessResult())

	require.Error(t, err)
	assert.ErrorIs(t, err, errFirst)
	assert.NotErrorIs(t, err, errSecond)
	assert.False(t, res.Success)
	assert.Equal(t, int64(5), res.Errors)
	assert.Equal(t, int64(5), job.ErrorCount())
	assert.ElementsMatch(t, []string{"start", "counted", "first", "second", "fine"}, historyNames(job.History()))
	assert.Equal(t, int64(2), e.Stats().BranchesFailed)
}

func TestFanOut_BranchesWalkTheirOwnSuccessors(t *testing.T) {
	g := newGraph(t, "nested")
	g.start("start", parallel())
	g.node("left", succeed())
	g.node("left-tail", withPayload("left", true))
	g.node("right", succeed())
	g.node("right-tail", withPayload("right", true))
	g.always("start", "left")
	g.always("left", "left-tail")
	g.always("start", "right")
	g.always("right", "right-tail")

	res, err := newTestEngine(t).Run(context.Background(), g.def, domain.NewSuccessResult())
	require.NoError(t, err)
	assert.Equal(t, true, res.Payload["left"])
	assert.Equal(t, true, res.Payload["right"])
	assert.Len(t, g.rec.executed(), 5)
}

func TestFanOut_ParallelEntryOwnFailureSeedsMerge(t *testing.T) {
	g := newGraph(t, "seed")
	g.node("start", failWith(1), asStart(), parallel())
	g.node("after", func(context.Context, domain.Scope, *domain.Result) (*domain.Result, error) {
		return domain.NewSuccessResult(), nil
	})
	g.always("start", "after")

	res, err := newTestEngine(t).Run(context.Background(), g.def, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), res.Errors)
}

func TestFanOut_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32

	g := newGraph(t, "bounded")
	g.start("start", parallel())
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		g.node(name, func(_ context.Context, _ domain.Scope, prev *domain.Result) (*domain.Result, error) {
			now := inFlight.Add(1)
			for {
				old := peak.Load()
				if now <= old || peak.CompareAndSwap(old, now) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			inFlight.Add(-1)
			return prev.Clone(), nil
		})
		g.always("start", name)
	}

	e := newTestEngine(t, func(c *domain.Config) { c.Engine.MaxParallelEntries = 2 })
	res, err := e.Run(context.Background(), g.def, domain.NewSuccessResult())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, g.rec.executed(), 7)
}

func TestFanOut_StopSkipsPendingBranches(t *testing.T) {
	g := newGraph(t, "stop-parallel")
	g.start("start", parallel())
	g.node("halt", func(_ context.Context, scope domain.Scope, prev *domain.Result) (*domain.Result, error) {
		job, _ := JobFromScope(scope)
		job.Stop()
		return prev.Clone(), nil
	})
	g.node("tail", succeed())
	g.node("other", sleepFor(20*time.Millisecond))
	g.always("start", "halt")
	g.always("halt", "tail")
	g.always("start", "other")

	job := newTestEngine(t).NewJob(g.def)
	res, err := job.Run(context.Background(), domain.NewSuccessResult())

	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Zero(t, g.rec.count("tail"))
	assert.Equal(t, int64(0), job.ErrorCount())
}

func TestFanOut_BranchWaitingForSlotLeavesNoTrace(t *testing.T) {
	g := newGraph(t, "slot-wait")
	g.start("start", parallel())
	g.node("left", sleepFor(5*time.Second))
	g.node("right", sleepFor(5*time.Second))
	g.always("start", "left")
	g.always("start", "right")

	job := newTestEngine(t, func(c *domain.Config) { c.Engine.MaxParallelEntries = 1 }).NewJob(g.def)

	var before, after atomic.Int32
	job.OnBeforeEntry(func(j *Job, node domain.EntryNode, _ *domain.Result) {
		if before.Add(1) == 2 {
			go func() {
				time.Sleep(20 * time.Millisecond)
				j.Stop()
			}()
		}
	})
	job.OnAfterEntry(func(*Job, domain.EntryNode, *domain.Result) {
		after.Add(1)
	})

	res, err := job.Run(context.Background(), domain.NewSuccessResult())

	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, int32(2), before.Load())
	assert.Equal(t, before.Load(), after.Load())
	assert.Len(t, g.rec.executed(), 2)

	started := 0
	for _, outcome := range job.Trail() {
		if outcome.Phase == domain.PhaseEntryStarted {
			started++
		}
	}
	assert.Equal(t, 2, started)
	assert.Len(t, job.History(), 2)
}
