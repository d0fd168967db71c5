package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"outletdedup/pkg/platform/sentinel"
)

const (
	DefaultKey = "outletdedup:run-lock"
	DefaultTTL = 30 * time.Minute
)

// ErrLost is returned by release when the key expired or changed owner while
// the run still held it.
var ErrLost = errors.New("run lock lost")

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a run lock shared through a Redis key with a TTL. While a run holds
// it, the TTL is extended every refresh interval, so the TTL only bounds how
// long a crashed holder keeps others out.
type Redis struct {
	client     redis.UniversalClient
	key        string
	ttl        time.Duration
	refresh    time.Duration
	refreshSet bool
}

type RedisOption func(*Redis)

func WithKey(key string) RedisOption {
	return func(l *Redis) {
		if key != "" {
			l.key = key
		}
	}
}

// WithTTL sets the key expiry. Runs longer than the TTL stay protected as long
// as refreshes reach Redis; without refresh (WithRefresh(0)) a run that
// outlives the TTL loses the lock.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *Redis) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRefresh sets how often a held lock's TTL is extended. The default is a
// third of the TTL. A non-positive interval disables refreshing.
func WithRefresh(interval time.Duration) RedisOption {
	return func(l *Redis) {
		l.refresh = interval
		l.refreshSet = true
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	l := &Redis{
		client: client,
		key:    DefaultKey,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	if !l.refreshSet {
		l.refresh = l.ttl / 3
	}
	return l
}

// Acquire sets the lock key with NX. It returns sentinel.ErrConflict when the
// key is already held and wraps sentinel.ErrUnavailable on Redis failures.
// The returned release stops the refresh loop and deletes the key; it returns
// ErrLost if ownership was lost in between.
func (l *Redis) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, errors.Join(sentinel.ErrUnavailable, fmt.Errorf("set run lock: %w", err))
	}
	if !ok {
		return nil, sentinel.ErrConflict
	}

	keepCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	lost := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(keepCtx, token, lost, done)

	var (
		once       sync.Once
		releaseErr error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			stop()
			<-done
			select {
			case <-lost:
				releaseErr = ErrLost
				return
			default:
			}
			if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("release run lock: %w", err)
			}
		})
		return releaseErr
	}, nil
}

// keepAlive extends the key until ctx ends. A failed extension is retried on
// the next tick; the TTL still covers the gap. It closes lost and stops once
// the key no longer holds token.
func (l *Redis) keepAlive(ctx context.Context, token string, lost, done chan struct{}) {
	defer close(done)
	if l.refresh <= 0 {
		return
	}
	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				continue
			}
			if n == 0 {
				close(lost)
				return
			}
		}
	}
}
