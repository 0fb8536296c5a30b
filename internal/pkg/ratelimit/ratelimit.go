package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter caps how often an operation may run for a given key.
type Limiter interface {
	// Allow reports whether the operation may proceed. When it may not, the
	// returned duration tells the caller how long to back off.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// FixedWindow is a redis-backed fixed-window counter limiter.
//
// A key's counter is incremented on every call and expires with the window;
// once it exceeds the limit, calls are rejected until the window rolls over.
type FixedWindow struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewFixedWindow constructs a FixedWindow limiter. prefix namespaces keys so
// independent limiters can share one redis instance.
func NewFixedWindow(client *redis.Client, prefix string, limit int64, window time.Duration) *FixedWindow {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &FixedWindow{
		client: client,
		prefix: prefix + ":",
		limit:  limit,
		window: window,
	}
}

// Allow increments the counter for key and checks it against the limit.
func (l *FixedWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	fk := l.prefix + key

	count, err := l.client.Incr(ctx, fk).Result()
	if err != nil {
		return false, 0, err
	}

	// First hit in the window owns setting the expiry.
	if count == 1 {
		if err := l.client.Expire(ctx, fk, l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, fk).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}

	return false, ttl, nil
}
