package engine

import (
	"sync"
	"time"
)

// startHeartbeat fires heartbeat listeners at the configured interval until
// the returned stop function is called.
func (j *Job) startHeartbeat() func() {
	interval := j.engine.config.Engine.HeartbeatInterval
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.lifecycle.TriggerHeartbeat(j)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
