package blocking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/jobgraph/internal/domain"
)

type State int32

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateInterrupted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type WorkFunc func(ctx context.Context) error

// FailureHandler is called on the unit's goroutine when its work returns an
// error or panics.
type FailureHandler func(unit *Unit, err error)

// Unit is a supervised unit of work running on its own goroutine.
type Unit struct {
	name      string
	work      WorkFunc
	onFailure FailureHandler
	logger    *slog.Logger

	state       atomic.Int32
	interrupted atomic.Bool
	done        chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	err    error
}

func NewUnit(name string, work WorkFunc, onFailure FailureHandler, logger *slog.Logger) *Unit {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unit{
		name:      name,
		work:      work,
		onFailure: onFailure,
		logger:    logger.With("component", "blocking-unit", "unit", name),
		done:      make(chan struct{}),
	}
}

func (u *Unit) Start(ctx context.Context) error {
	if !u.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return domain.NewSupervisedUnitError("unit already started", domain.ErrAlreadyStarted,
			domain.WithDetail("unit", u.name))
	}

	ctx, cancel := context.WithCancel(ctx)
	u.mu.Lock()
	u.cancel = cancel
	u.mu.Unlock()

	go u.run(ctx, cancel)
	return nil
}

func (u *Unit) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(u.done)
	defer cancel()

	err := u.safeWork(ctx)
	if ctx.Err() != nil {
		u.interrupted.Store(true)
	}
	switch {
	case u.interrupted.Load():
		u.state.Store(int32(StateInterrupted))
	case err != nil:
		u.state.Store(int32(StateFailed))
	default:
		u.state.Store(int32(StateCompleted))
		return
	}

	if err == nil {
		return
	}

	u.mu.Lock()
	u.err = err
	u.mu.Unlock()

	if u.onFailure != nil {
		u.notify(err)
	}
}

func (u *Unit) safeWork(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewSupervisedUnitError(fmt.Sprintf("unit panicked: %v", r), nil,
				domain.WithDetail("unit", u.name))
		}
	}()
	if u.work == nil {
		return domain.NewSupervisedUnitError("unit has no work", domain.ErrInvalidInput, domain.WithDetail("unit", u.name))
	}
	return u.work(ctx)
}

func (u *Unit) notify(err error) {
	defer func() {
		if r := recover(); r != nil {
			u.logger.Error("unit failure handler panicked", "panic_value", r, "error", err)
		}
	}()
	u.onFailure(u, err)
}

// Interrupt cancels the unit's context. It has no effect once the unit
// finished. A unit whose parent context ends is interrupted as well.
func (u *Unit) Interrupt() {
	if State(u.state.Load()) != StateRunning {
		return
	}
	u.interrupted.Store(true)

	u.mu.Lock()
	cancel := u.cancel
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (u *Unit) Alive() bool {
	select {
	case <-u.done:
		return false
	default:
		return State(u.state.Load()) == StateRunning
	}
}

// Wait blocks until the unit terminates or timeout elapses and reports
// whether it terminated.
func (u *Unit) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-u.done:
		return true
	case <-timer.C:
		return false
	}
}

func (u *Unit) Done() <-chan struct{} {
	return u.done
}

func (u *Unit) State() State {
	return State(u.state.Load())
}

func (u *Unit) Interrupted() bool {
	return u.interrupted.Load()
}

func (u *Unit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

func (u *Unit) Name() string {
	return u.name
}
