// internal/services/user_lock.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/furnigo/furnigo-api/internal/apperrors"
)

// UserLocker allows one post creation per user at a time.
type UserLocker interface {
	Acquire(ctx context.Context, userUUID string) (release func(), err error)
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisUserLocker holds a TTL'd key per user and extends it every third of
// the TTL until the run releases it. A crashed holder frees the user after
// one TTL.
type RedisUserLocker struct {
	client     *redis.Client
	ttl        time.Duration
	renewEvery time.Duration
}

func NewRedisUserLocker(client *redis.Client, ttl time.Duration) *RedisUserLocker {
	renewEvery := ttl / 3
	if renewEvery <= 0 {
		renewEvery = ttl
	}
	return &RedisUserLocker{client: client, ttl: ttl, renewEvery: renewEvery}
}

func lockKey(userUUID string) string {
	return fmt.Sprintf("furnigo:post-create:%s", userUUID)
}

func (l *RedisUserLocker) Acquire(ctx context.Context, userUUID string) (func(), error) {
	key := lockKey(userUUID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, apperrors.FromContext("acquire lock", err)
	}
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userUUID, apperrors.ErrConflict)
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(key, token, stop, stopped)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-stopped

			// The invocation context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				logrus.WithError(err).WithField("key", key).Warn("Failed to release user lock")
			}
		})
	}
	return release, nil
}

func (l *RedisUserLocker) keepAlive(key, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(l.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.renewEvery)
			held, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				logrus.WithError(err).WithField("key", key).Warn("Failed to extend user lock")
				continue
			}
			if held == 0 {
				logrus.WithField("key", key).Warn("User lock expired before the run finished")
				return
			}
		}
	}
}

// LocalUserLocker is the in-process locker used when Redis is not configured.
type LocalUserLocker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewLocalUserLocker() *LocalUserLocker {
	return &LocalUserLocker{active: make(map[string]struct{})}
}

func (l *LocalUserLocker) Acquire(ctx context.Context, userUUID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.FromContext("acquire lock", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.active[userUUID]; busy {
		return nil, fmt.Errorf("user %s: %w", userUUID, apperrors.ErrConflict)
	}
	l.active[userUUID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.active, userUUID)
			l.mu.Unlock()
		})
	}, nil
}
