package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired indicates another holder currently owns the lock.
var ErrNotAcquired = errors.New("lock: not acquired")

// releaseScript deletes the key only when it still holds our token, so an
// expired lock re-acquired by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements a best-effort distributed lock over Redis SET NX.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
}

// Lease represents a held lock.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire attempts to take the named lock. It does not block; callers that
// lose the race should skip the protected work rather than wait.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lease, error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	key := "lock:" + name
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lease{client: l.Client, key: key, token: token}, nil
}

// Release gives the lock back if it is still ours.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %q: %w", le.key, err)
	}
	return nil
}
