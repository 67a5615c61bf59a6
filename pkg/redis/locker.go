package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the key only while it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a distributed per-key mutex on a single Redis node.
// Each acquisition stores a random token with SET NX PX; release deletes
// the key only if the token still matches.
type Locker struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

// NewLocker creates a Locker. Zero config values fall back to defaults.
func NewLocker(client redis.UniversalClient, cfg Config) *Locker {
	l := &Locker{
		client:       client,
		prefix:       cfg.LockPrefix,
		ttl:          cfg.LockTTL,
		pollInterval: cfg.LockPollInterval,
	}
	if l.ttl <= 0 {
		l.ttl = 30 * time.Second
	}
	if l.pollInterval <= 0 {
		l.pollInterval = 25 * time.Millisecond
	}
	return l
}

// Lock blocks until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var (
		once sync.Once
		rerr error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			n, err := unlockScript.Run(ctx, l.client, []string{fullKey}, token).Int()
			switch {
			case err != nil:
				rerr = err
			case n == 0:
				rerr = ErrLockNotHeld
			}
		})
		return rerr
	}, nil
}

// Held reports whether anybody currently holds key.
func (l *Locker) Held(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return n > 0, nil
}
