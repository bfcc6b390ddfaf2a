package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CycleLocker keeps scheduler cycles single-flight across instances.
type CycleLocker interface {
	TryAcquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalCycleLocker always grants the lock; the scheduler's own running flag
// already covers a single process.
type LocalCycleLocker struct{}

func (LocalCycleLocker) TryAcquire(context.Context, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCycleLocker is a SET NX PX lock with token-checked release.
type RedisCycleLocker struct {
	client *redis.Client
	key    string
}

// NewRedisCycleLocker builds a locker on key.
func NewRedisCycleLocker(client *redis.Client, key string) *RedisCycleLocker {
	return &RedisCycleLocker{client: client, key: key}
}

func (l *RedisCycleLocker) TryAcquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func() {
		// The cycle context may already be done; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
	}, true, nil
}

var (
	_ CycleLocker = LocalCycleLocker{}
	_ CycleLocker = (*RedisCycleLocker)(nil)
)
