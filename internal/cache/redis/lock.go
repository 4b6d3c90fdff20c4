package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// unlockLua deletes the lock key only when the caller still holds it, so a
// lock that expired and was re-acquired by someone else is never released
// by the original holder.
const unlockLua = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with plain SET NX locks. Each
// acquisition stores a random token so release is safe after expiry.
type LockManager struct {
	rdb    *redis.Client
	script *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:    c.Underlying(),
		script: redis.NewScript(unlockLua),
	}
}

// Acquire takes the named lock for at most ttl. It returns
// domain.ErrLockHeld without blocking when the lock is already taken.
// The returned function releases the lock; calling it after the TTL has
// expired is a no-op.
func (m *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lockKey := "lock:" + key

	ok, err := m.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	release := func() {
		// Detached context: release must work even when the caller's
		// context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.script.Run(ctx, m.rdb, []string{lockKey}, token).Err()
	}
	return release, nil
}

var _ domain.LockManager = (*LockManager)(nil)
