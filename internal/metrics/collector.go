// Package metrics provides in-memory timing statistics for remote API
// operations.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated raw metrics for one operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics, populated for generate calls only.
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count          int64    `json:"count"`
	TotalTimeMs    int64    `json:"total_time_ms"`
	AvgTimeMs      float64  `json:"avg_time_ms"`
	MinTimeMs      int64    `json:"min_time_ms"`
	MaxTimeMs      int64    `json:"max_time_ms"`
	InputTokens    *int64   `json:"input_tokens,omitempty"`
	OutputTokens   *int64   `json:"output_tokens,omitempty"`
	AvgInputTokens *float64 `json:"avg_input_tokens,omitempty"`
}

// Snapshot is a point-in-time view of all collected metrics.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Generate      *OperationSnapshot `json:"generate,omitempty"`
	Embed         *OperationSnapshot `json:"embed,omitempty"`
	UploadFile    *OperationSnapshot `json:"upload_file,omitempty"`
	DownloadFile  *OperationSnapshot `json:"download_file,omitempty"`
	BatchPoll     *OperationSnapshot `json:"batch_poll,omitempty"`
}

// Operation names for the collector.
const (
	OpGenerate     = "generate"
	OpEmbed        = "embed"
	OpUploadFile   = "upload_file"
	OpDownloadFile = "download_file"
	OpBatchPoll    = "batch_poll"
)

// Collector aggregates in-memory runtime statistics.
// All methods are safe for concurrent use.
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

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold the write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordUsage records timing plus token usage for a generate call.
func (c *Collector) RecordUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
	if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
		in := m.TotalInputTokens
		out := m.TotalOutputTokens
		avgIn := float64(in) / float64(m.Count)
		snap.InputTokens = &in
		snap.OutputTokens = &out
		snap.AvgInputTokens = &avgIn
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Generate:      snapshotOp(c.ops[OpGenerate]),
		Embed:         snapshotOp(c.ops[OpEmbed]),
		UploadFile:    snapshotOp(c.ops[OpUploadFile]),
		DownloadFile:  snapshotOp(c.ops[OpDownloadFile]),
		BatchPoll:     snapshotOp(c.ops[OpBatchPoll]),
	}
}
