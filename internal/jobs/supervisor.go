package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/confab-dev/confab-go/internal/metrics"
	"github.com/confab-dev/confab-go/internal/models"
)

// DefaultPollInterval is the stock delay between status queries for a job.
const DefaultPollInterval = 2 * time.Second

// StatusQuerier fetches the current remote status of a job. Implemented by
// the HTTP API client; tests inject fakes.
type StatusQuerier interface {
	JobStatus(ctx context.Context, jobID string) (*models.JobSnapshot, error)
}

// QueryError wraps a failed status query. It is captured in the job record
// rather than returned to the caller of Track.
type QueryError struct {
	JobID string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("status query for job %s failed: %v", e.JobID, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// task is the per-job poll state. At most one exists per job id.
type task struct {
	inFlight bool
	stopped  bool
	stop     func()
}

// Supervisor converges each tracked job's local record with its remote
// status via periodic queries. It owns all record mutation; callers read
// through the Store.
type Supervisor struct {
	store     *Store
	querier   StatusQuerier
	sched     Scheduler
	interval  time.Duration
	logger    *slog.Logger
	collector *metrics.Collector

	mu    sync.Mutex
	tasks map[string]*task
}

// NewSupervisor creates a supervisor polling at the given interval
// (DefaultPollInterval if zero). The collector may be nil.
func NewSupervisor(store *Store, querier StatusQuerier, sched Scheduler, interval time.Duration, logger *slog.Logger, collector *metrics.Collector) *Supervisor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if sched == nil {
		sched = TickerScheduler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		store:     store,
		querier:   querier,
		sched:     sched,
		interval:  interval,
		logger:    logger,
		collector: collector,
		tasks:     make(map[string]*task),
	}
}

// Store returns the record store the supervisor writes into.
func (s *Supervisor) Store() *Store { return s.store }

// Track starts polling jobID until it reaches a terminal status. If a poll
// task already exists for the id this is a no-op, as is re-tracking a job
// whose record is already terminal. The first query is issued immediately.
func (s *Supervisor) Track(jobID string) {
	s.mu.Lock()
	if _, ok := s.tasks[jobID]; ok {
		s.mu.Unlock()
		return
	}
	if rec := s.store.get(jobID); rec != nil && rec.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.store.get(jobID) == nil {
		s.store.put(&Record{
			ID:        jobID,
			Status:    models.JobStatusPending,
			StartTime: time.Now().UTC(),
		})
	}
	t := &task{}
	s.tasks[jobID] = t
	s.mu.Unlock()

	s.logger.Debug("tracking job", "job_id", jobID, "interval", s.interval)
	stop := s.sched.Schedule(s.interval, func() { s.poll(jobID, t) })

	// The first poll can finish (or Untrack can run) before Schedule
	// returns; honor a stop that was requested in the meantime.
	s.mu.Lock()
	t.stop = stop
	stopNow := t.stopped
	s.mu.Unlock()
	if stopNow {
		stop()
	}
}

// Untrack cancels any active poll task for jobID and deletes its record.
// Safe to call when nothing is tracked. A query already in flight has its
// response discarded.
func (s *Supervisor) Untrack(jobID string) {
	s.mu.Lock()
	t := s.tasks[jobID]
	var stop func()
	if t != nil {
		t.stopped = true
		stop = t.stop
		delete(s.tasks, jobID)
	}
	s.store.remove(jobID)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Active reports whether a poll task currently exists for jobID.
func (s *Supervisor) Active(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[jobID]
	return ok
}

// ActiveCount returns the number of live poll tasks.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Shutdown cancels every poll task. Records are left in place.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	stops := make([]func(), 0, len(s.tasks))
	for id, t := range s.tasks {
		t.stopped = true
		if t.stop != nil {
			stops = append(stops, t.stop)
		}
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

// poll runs one query cycle for jobID. Overlapping cycles for the same job
// are skipped via the in-flight flag; a response arriving after the task
// was cancelled or replaced is discarded.
func (s *Supervisor) poll(jobID string, t *task) {
	s.mu.Lock()
	if s.tasks[jobID] != t || t.stopped || t.inFlight {
		s.mu.Unlock()
		return
	}
	t.inFlight = true
	s.mu.Unlock()

	start := time.Now()
	snap, err := s.querier.JobStatus(context.Background(), jobID)
	s.collector.Record(metrics.OpQuery, time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()
	t.inFlight = false
	if s.tasks[jobID] != t || t.stopped {
		return // untracked while in flight
	}

	if err != nil {
		s.failLocked(jobID, t, &QueryError{JobID: jobID, Err: err})
		return
	}
	s.applyLocked(jobID, t, snap)
}

// failLocked marks the job failed and retires its task. A failing poll is
// not retried: left alone it would tick forever.
func (s *Supervisor) failLocked(jobID string, t *task, qerr *QueryError) {
	s.logger.Warn("job status query failed", "job_id", jobID, "error", qerr.Err)
	s.store.update(jobID, func(rec *Record) {
		if rec.Terminal() {
			return
		}
		rec.Status = models.JobStatusFailed
		rec.Error = qerr.Error()
		now := time.Now().UTC()
		rec.EndTime = &now
	})
	s.retireLocked(jobID, t)
}

// applyLocked writes a query response into the record and retires the task
// if the reported status is terminal.
func (s *Supervisor) applyLocked(jobID string, t *task, snap *models.JobSnapshot) {
	terminal := false
	s.store.update(jobID, func(rec *Record) {
		if rec.Terminal() {
			return // never regress a terminal record
		}
		rec.Status = snap.Status
		rec.Progress = snap.Progress
		rec.FilesProcessed = snap.FilesProcessed
		rec.TotalFiles = snap.TotalFiles
		rec.ExtractedItems = snap.ExtractedItems
		if snap.Results != nil {
			rec.Results = snap.Results
		}
		if snap.Error != nil {
			rec.Error = *snap.Error
		}
		if rec.Terminal() {
			now := time.Now().UTC()
			rec.EndTime = &now
			terminal = true
		}
	})

	if terminal {
		s.logger.Info("job reached terminal status",
			"job_id", jobID, "status", snap.Status)
		s.retireLocked(jobID, t)
	}
}

func (s *Supervisor) retireLocked(jobID string, t *task) {
	t.stopped = true
	delete(s.tasks, jobID)
	if t.stop != nil {
		t.stop()
	}
}
