// Package redis provides helpers for connecting to a Redis server and a
// distributed Locker that serializes moderation transitions across processes.
//
// The package wraps the go-redis client and adds:
//
//   - Robust Connect which retries the connection using the supplied
//     configuration.
//   - Locker, a per-key mutex built on SET NX PX with a token-checked release.
//   - Healthcheck helpers for liveness and readiness probes.
//
// Configuration is described by the Config struct whose fields can be
// populated from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	engine, err := moderation.NewEngine(store, providers,
//	    moderation.WithLocker(redis.NewLocker(client, cfg)),
//	)
//
// Locks expire after LockTTL so a crashed holder cannot wedge an item forever.
// A release that finds the lock expired or re-acquired by someone else
// returns ErrLockNotHeld.
//
// # Environment Variables
//
//	REDIS_URL                 Connection URL (required)
//	REDIS_RETRY_ATTEMPTS      Connection attempts (default 3)
//	REDIS_RETRY_INTERVAL      Wait between attempts (default 5s)
//	REDIS_CONNECT_TIMEOUT     Overall connect timeout (default 30s)
//	REDIS_LOCK_PREFIX         Lock key prefix (default "reviewkit:lock:")
//	REDIS_LOCK_TTL            Lock expiry (default 30s)
//	REDIS_LOCK_POLL_INTERVAL  Wait between acquisition attempts (default 25ms)
package redis
