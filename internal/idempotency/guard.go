// Package idempotency de-duplicates checkout requests that carry an
// Idempotency-Key header.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	Header       = "Idempotency-Key"
	ReplayHeader = "Idempotent-Replay"
	MaxKeyLength = 128

	pendingValue = "pending"
	keyPrefix    = "lpg:idem:checkout"

	DefaultTTL        = 24 * time.Hour
	DefaultPendingTTL = 30 * time.Second
)

type State int

const (
	// Acquired means the caller owns the key and must Complete or Abandon it.
	Acquired State = iota
	// InProgress means another request holds the key.
	InProgress
	// Completed means a request with this key already produced OrderID.
	Completed
)

type Claim struct {
	State   State
	OrderID string
}

type Guard interface {
	Begin(ctx context.Context, scope, key string) (Claim, error)
	Complete(ctx context.Context, scope, key, orderID string) error
	Abandon(ctx context.Context, scope, key string) error
}

// RedisGuard keeps a claim as "pending" for pendingTTL and a finished
// claim, holding the order id, for ttl. A crashed request therefore blocks
// its key only until the pending claim expires.
type RedisGuard struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

type Option func(*RedisGuard)

// WithPendingTTL bounds how long an unfinished claim blocks retries. It
// should exceed the longest a checkout request may run.
func WithPendingTTL(d time.Duration) Option {
	return func(g *RedisGuard) {
		if d > 0 {
			g.pendingTTL = d
		}
	}
}

func NewRedisGuard(client *redis.Client, ttl time.Duration, opts ...Option) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &RedisGuard{client: client, ttl: ttl, pendingTTL: DefaultPendingTTL}
	for _, opt := range opts {
		opt(g)
	}
	if g.pendingTTL > g.ttl {
		g.pendingTTL = g.ttl
	}
	return g
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func redisKey(scope, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, scope, key)
}

func (g *RedisGuard) Begin(ctx context.Context, scope, key string) (Claim, error) {
	k := redisKey(scope, key)

	ok, err := g.client.SetNX(ctx, k, pendingValue, g.pendingTTL).Result()
	if err != nil {
		return Claim{}, err
	}
	if ok {
		return Claim{State: Acquired}, nil
	}

	value, err := g.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired or abandoned between SETNX and GET; try once more.
		ok, err = g.client.SetNX(ctx, k, pendingValue, g.pendingTTL).Result()
		if err != nil {
			return Claim{}, err
		}
		if ok {
			return Claim{State: Acquired}, nil
		}
		return Claim{State: InProgress}, nil
	}
	if err != nil {
		return Claim{}, err
	}
	if value == pendingValue {
		return Claim{State: InProgress}, nil
	}
	return Claim{State: Completed, OrderID: value}, nil
}

func (g *RedisGuard) Complete(ctx context.Context, scope, key, orderID string) error {
	return g.client.Set(ctx, redisKey(scope, key), orderID, g.ttl).Err()
}

func (g *RedisGuard) Abandon(ctx context.Context, scope, key string) error {
	return g.client.Del(ctx, redisKey(scope, key)).Err()
}

// Noop always grants the claim. Used when Redis is not configured.
type Noop struct{}

func (Noop) Begin(context.Context, string, string) (Claim, error) {
	return Claim{State: Acquired}, nil
}

func (Noop) Complete(context.Context, string, string, string) error { return nil }

func (Noop) Abandon(context.Context, string, string) error { return nil }
