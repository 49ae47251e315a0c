// Package jobs tracks the lifecycle of long-running server-side jobs by
// polling their status until a terminal state is observed. Records live
// in memory only; history does not survive the process.
package jobs

import (
	"slices"
	"sync"
	"time"

	"github.com/confab-dev/confab-go/internal/models"
)

// Record is the locally-held snapshot of one tracked job. EndTime is set
// exactly when the status is terminal.
type Record struct {
	ID             string
	Status         models.JobStatus
	Progress       int
	FilesProcessed int
	TotalFiles     int
	ExtractedItems int
	Results        map[string]any
	Error          string
	StartTime      time.Time
	EndTime        *time.Time
}

// Terminal reports whether the record has reached a final status.
func (r *Record) Terminal() bool {
	return r.Status.Terminal()
}

// Store holds job records keyed by id. All mutation goes through the
// Supervisor; readers get copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Get returns a copy of the record for id, or nil if not tracked.
func (s *Store) Get(id string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// List returns copies of all records, most recently started first.
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Record) int {
		return b.StartTime.Compare(a.StartTime)
	})
	return out
}

func (s *Store) get(id string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

// update applies fn to the live record under the store lock. Returns false
// if the record does not exist.
func (s *Store) update(id string, fn func(*Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	fn(rec)
	return true
}

func (s *Store) put(rec *Record) {
	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
}
