// Package telemetry keeps lightweight in-process query metrics for the
// status command. Nothing leaves the process.
package telemetry

import (
	"sync"
	"time"
)

const defaultRingSize = 256

// QueryRecord captures one search call.
type QueryRecord struct {
	Query     string
	Mode      string
	Results   int
	Duration  time.Duration
	Timestamp time.Time
}

// QueryMetrics is a fixed-size ring of recent queries plus running totals.
type QueryMetrics struct {
	mu      sync.Mutex
	ring    []QueryRecord
	next    int
	filled  bool
	total   int64
	sumTime time.Duration
}

// NewQueryMetrics creates a ring of the given size; size <= 0 uses the
// default.
func NewQueryMetrics(size int) *QueryMetrics {
	if size <= 0 {
		size = defaultRingSize
	}
	return &QueryMetrics{ring: make([]QueryRecord, size)}
}

// Record stores one query outcome.
func (m *QueryMetrics) Record(rec QueryRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ring[m.next] = rec
	m.next++
	if m.next == len(m.ring) {
		m.next = 0
		m.filled = true
	}
	m.total++
	m.sumTime += rec.Duration
}

// Recent returns up to n most recent records, newest first.
func (m *QueryMetrics) Recent(n int) []QueryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := m.next
	if m.filled {
		size = len(m.ring)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]QueryRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := m.next - 1 - i
		if idx < 0 {
			idx += len(m.ring)
		}
		out = append(out, m.ring[idx])
	}
	return out
}

// Totals returns the query count and mean latency since process start.
func (m *QueryMetrics) Totals() (count int64, meanLatency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.total == 0 {
		return 0, 0
	}
	return m.total, m.sumTime / time.Duration(m.total)
}
