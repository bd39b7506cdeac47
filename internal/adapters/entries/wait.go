package entries

import (
	"context"
	"time"

	"github.com/eleven-am/jobgraph/internal/adapters/blocking"
	"github.com/eleven-am/jobgraph/internal/domain"
)

const optionDelay = "delayMs"

// WaitTask sleeps for a substituted number of milliseconds. An interruption
// ends the wait early.
type WaitTask struct {
	Delay   string
	Options blocking.Config
}

func (w *WaitTask) CreateConfig() blocking.Config {
	config := blocking.Config{optionDelay: w.Delay}
	for k, v := range w.Options {
		config.Set(k, v)
	}
	return config
}

func (w *WaitTask) IsValid(config blocking.Config) bool {
	return config.Int(optionDelay, -1) >= 0
}

func (w *WaitTask) Work(config blocking.Config, result *domain.Result) blocking.WorkFunc {
	delay := time.Duration(config.Int(optionDelay, 0)) * time.Millisecond
	return func(ctx context.Context) error {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *WaitTask) OnUncaughtFailure(unit *blocking.Unit, err error, result *domain.Result) {
	blocking.FailResult(unit, err, result)
}

func Wait(name string, delay time.Duration) domain.EntryNode {
	return WaitFor(name, WaitTask{Delay: formatMillis(delay)})
}

func WaitFor(name string, task WaitTask) domain.EntryNode {
	return domain.EntryNode{
		Name: name,
		Factory: blocking.Factory(func() blocking.Task {
			t := task
			return &t
		}),
	}
}
