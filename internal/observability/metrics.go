package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	cycles       CycleTotals
}

// CycleTotals accumulates escalation scheduler statistics.
type CycleTotals struct {
	Cycles        int64         `json:"cycles"`
	Skipped       int64         `json:"skipped"`
	Escalated     int64         `json:"escalated"`
	Reminded      int64         `json:"reminded"`
	Failed        int64         `json:"failed"`
	LastDuration  time.Duration `json:"lastDurationNs"`
	LastCompleted time.Time     `json:"lastCompleted"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Cycles   CycleTotals      `json:"scheduler"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordCycle adds the outcome of one scheduler cycle.
func (m *Metrics) RecordCycle(escalated, reminded, failed int, duration time.Duration, completed time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles.Cycles++
	m.cycles.Escalated += int64(escalated)
	m.cycles.Reminded += int64(reminded)
	m.cycles.Failed += int64(failed)
	m.cycles.LastDuration = duration
	m.cycles.LastCompleted = completed
}

// RecordSkippedCycle counts a cycle that did not run because another held the lock.
func (m *Metrics) RecordSkippedCycle() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles.Skipped++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests: make(map[string]int64, len(m.requestCount)),
		Errors:   make(map[string]int64, len(m.errorCount)),
		Cycles:   m.cycles,
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
