package jobs

import (
	"sync"
	"time"
)

// Scheduler abstracts the recurring timer so tests can drive poll cycles
// deterministically instead of waiting on the wall clock.
//
// Schedule runs fn once immediately, then once per interval, until the
// returned stop function is called. Stop is idempotent and effective even
// if fn is currently executing: cycles scheduled after stop never run.
type Scheduler interface {
	Schedule(interval time.Duration, fn func()) (stop func())
}

// TickerScheduler runs scheduled work on goroutines with a time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Schedule(interval time.Duration, fn func()) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		fn()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
