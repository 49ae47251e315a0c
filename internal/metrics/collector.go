// Package metrics provides in-memory runtime statistics for the sync core.
package metrics

import (
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Operation names for the collector.
const (
	OpConnect   = "connect"
	OpReconnect = "reconnect"
	OpDispatch  = "dispatch"
	OpQuery     = "job_query"
	OpSubmit    = "job_submit"
)

// Snapshot represents the full client statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Connect       *OperationSnapshot
	Reconnect     *OperationSnapshot
	Dispatch      *OperationSnapshot
	JobQuery      *OperationSnapshot
	JobSubmit     *OperationSnapshot
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil Collector is a no-op.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// Record adds one observation for an operation.
func (c *Collector) Record(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: d, MaxTime: d}
		c.ops[op] = m
	}
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// Count returns the number of observations for an operation.
func (c *Collector) Count(op string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.ops[op]; ok {
		return m.Count
	}
	return 0
}

// Snapshot returns computed statistics for all operations.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Connect:       c.snapshotOp(OpConnect),
		Reconnect:     c.snapshotOp(OpReconnect),
		Dispatch:      c.snapshotOp(OpDispatch),
		JobQuery:      c.snapshotOp(OpQuery),
		JobSubmit:     c.snapshotOp(OpSubmit),
	}
}

func (c *Collector) snapshotOp(op string) *OperationSnapshot {
	m, ok := c.ops[op]
	if !ok || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}
