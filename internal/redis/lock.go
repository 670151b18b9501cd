package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fieldline/engineer-scheduling/internal/schedule"
)

var (
	ErrLockNotAcquired = errors.New("engineer calendar lock not acquired")
)

// Locker is used by the appointment service to serialise writes that could
// double book one engineer on one day.
type Locker interface {
	WithEngineerLock(ctx context.Context, engineerID uuid.UUID, dates []schedule.CalendarDate, fn func(ctx context.Context) error) error
}

type redisEngineerLocker struct {
	client *redis.Client
	tenant string
	ttl    time.Duration
}

// NewRedisEngineerLocker creates a locker that uses one Redis key per engineer per day.
func NewRedisEngineerLocker(client *redis.Client, tenantID string, ttl time.Duration) Locker {
	return &redisEngineerLocker{
		client: client,
		tenant: tenantID,
		ttl:    ttl,
	}
}

func LockKey(tenantID string, engineerID uuid.UUID, date schedule.CalendarDate) string {
	return fmt.Sprintf("lock:%s:engineer:%s:%s", tenantID, engineerID.String(), date.String())
}

// WithEngineerLock takes every day's key in date order, so two writers that
// share days always contend on the same first key.
func (l *redisEngineerLocker) WithEngineerLock(ctx context.Context, engineerID uuid.UUID, dates []schedule.CalendarDate, fn func(ctx context.Context) error) error {
	keys := lockKeys(l.tenant, engineerID, dates)
	token := uuid.NewString()

	held := make([]string, 0, len(keys))
	defer func() {
		for _, key := range held {
			_ = l.release(context.WithoutCancel(ctx), key, token)
		}
	}()

	for _, key := range keys {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire engineer lock: %w", err)
		}
		if !ok {
			return ErrLockNotAcquired
		}
		held = append(held, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func lockKeys(tenantID string, engineerID uuid.UUID, dates []schedule.CalendarDate) []string {
	seen := make(map[string]struct{}, len(dates))
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		key := LockKey(tenantID, engineerID, d)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisEngineerLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release engineer lock: %w", err)
	}
	return nil
}
