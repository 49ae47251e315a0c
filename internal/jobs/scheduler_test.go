package jobs

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerScheduler_RunsImmediatelyThenOnInterval(t *testing.T) {
	var runs atomic.Int64
	sched := TickerScheduler{}

	stop := sched.Schedule(5*time.Millisecond, func() { runs.Add(1) })
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := runs.Load(); got < 3 {
		t.Fatalf("runs = %d, want at least 3 (immediate + ticks)", got)
	}
}

func TestTickerScheduler_StopPreventsFurtherRuns(t *testing.T) {
	var runs atomic.Int64
	sched := TickerScheduler{}

	stop := sched.Schedule(5*time.Millisecond, func() { runs.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	stop()
	stop() // idempotent

	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if got := runs.Load(); got > settled+1 {
		t.Errorf("runs kept accumulating after stop: %d -> %d", settled, got)
	}
}
