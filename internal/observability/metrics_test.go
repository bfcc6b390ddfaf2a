package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/complaints/:id", "GET", 200, time.Millisecond)
	m.RecordRequest("/complaints/:id", "GET", 200, time.Millisecond)
	m.RecordError("/complaints/:id", "POST", "CONFLICT")
	now := time.Now()
	m.RecordCycle(2, 3, 1, time.Second, now)
	m.RecordCycle(1, 0, 0, 2*time.Second, now)
	m.RecordSkippedCycle()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/complaints/:id|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/complaints/:id|POST|CONFLICT"])
	assert.Equal(t, int64(2), snap.Cycles.Cycles)
	assert.Equal(t, int64(3), snap.Cycles.Escalated)
	assert.Equal(t, int64(3), snap.Cycles.Reminded)
	assert.Equal(t, int64(1), snap.Cycles.Failed)
	assert.Equal(t, int64(1), snap.Cycles.Skipped)
	assert.Equal(t, 2*time.Second, snap.Cycles.LastDuration)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordCycle(1, 1, 1, 0, time.Now())
	assert.Empty(t, m.Snapshot().Requests)
}
