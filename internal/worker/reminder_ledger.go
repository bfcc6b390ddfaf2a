package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderLedger remembers which complaints were reminded recently.
type ReminderLedger interface {
	// MarkReminded records a reminder for complaintID at the given instant and
	// reports false when one was already recorded within window.
	MarkReminded(ctx context.Context, complaintID string, at time.Time, window time.Duration) (bool, error)
}

// MemoryReminderLedger keeps last-reminded timestamps in process.
type MemoryReminderLedger struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewMemoryReminderLedger creates an empty ledger.
func NewMemoryReminderLedger() *MemoryReminderLedger {
	return &MemoryReminderLedger{last: make(map[string]time.Time)}
}

func (l *MemoryReminderLedger) MarkReminded(_ context.Context, complaintID string, at time.Time, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.last[complaintID]; ok && at.Sub(prev) < window {
		return false, nil
	}
	for id, ts := range l.last {
		if at.Sub(ts) >= window {
			delete(l.last, id)
		}
	}
	l.last[complaintID] = at
	return true, nil
}

// RedisReminderLedger shares reminder state between instances with an
// expiring key per complaint.
type RedisReminderLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisReminderLedger builds a ledger storing keys under prefix.
func NewRedisReminderLedger(client *redis.Client, prefix string) *RedisReminderLedger {
	return &RedisReminderLedger{client: client, prefix: prefix}
}

func (l *RedisReminderLedger) MarkReminded(ctx context.Context, complaintID string, at time.Time, window time.Duration) (bool, error) {
	return l.client.SetNX(ctx, l.prefix+complaintID, at.UTC().Format(time.RFC3339), window).Result()
}

var (
	_ ReminderLedger = (*MemoryReminderLedger)(nil)
	_ ReminderLedger = (*RedisReminderLedger)(nil)
)
