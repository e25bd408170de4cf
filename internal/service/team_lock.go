package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockWait = 5 * time.Second
)

// releaseScript deletes the lock only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TeamLocker serialises battle launches per team.
type TeamLocker interface {
	// Acquire blocks until the team's lock is held or the wait limit elapses. The
	// returned release func must be called exactly once.
	Acquire(ctx context.Context, teamID uint) (func(), error)
}

// LockConfig bounds lock lifetime and waiting.
type LockConfig struct {
	TTL  time.Duration
	Wait time.Duration
	// Prefix namespaces lock keys in Redis.
	Prefix string
}

func (c LockConfig) withDefaults() LockConfig {
	if c.TTL <= 0 {
		c.TTL = defaultLockTTL
	}
	if c.Wait <= 0 {
		c.Wait = defaultLockWait
	}
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = "fortress"
	}
	return c
}

type redisTeamLocker struct {
	client *redis.Client
	config LockConfig
	logger zerolog.Logger
}

// NewRedisTeamLocker builds a lock shared by every node using the same Redis.
func NewRedisTeamLocker(client *redis.Client, config LockConfig, logger zerolog.Logger) TeamLocker {
	return &redisTeamLocker{
		client: client,
		config: config.withDefaults(),
		logger: logger.With().Str("component", "team_lock").Logger(),
	}
}

func (l *redisTeamLocker) Acquire(ctx context.Context, teamID uint) (func(), error) {
	key := fmt.Sprintf("%s:battle-lock:%d", l.config.Prefix, teamID)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.config.Wait)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(waitCtx, func() (bool, error) {
		ok, err := l.client.SetNX(waitCtx, key, token, l.config.TTL).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return false, err
			}
			return false, backoff.Permanent(err)
		}
		if !ok {
			return false, errLockHeld
		}
		return true, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxElapsedTime(l.config.Wait))
	if err != nil {
		if errors.Is(err, errLockHeld) || errors.Is(err, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: team %d", ErrLaunchInProgress, teamID)
		}
		return nil, fmt.Errorf("acquire team lock: %w", err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Uint("team_id", teamID).Msg("failed to release team lock")
		}
	}
	return release, nil
}

var errLockHeld = errors.New("team lock held")

type localTeamLocker struct {
	mu    sync.Mutex
	slots map[uint]chan struct{}
	wait  time.Duration
}

// NewLocalTeamLocker serialises launches within this process only.
func NewLocalTeamLocker(config LockConfig) TeamLocker {
	return &localTeamLocker{
		slots: make(map[uint]chan struct{}),
		wait:  config.withDefaults().Wait,
	}
}

func (l *localTeamLocker) slot(teamID uint) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[teamID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[teamID] = ch
	}
	return ch
}

func (l *localTeamLocker) Acquire(ctx context.Context, teamID uint) (func(), error) {
	ch := l.slot(teamID)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: team %d", ErrLaunchInProgress, teamID)
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
