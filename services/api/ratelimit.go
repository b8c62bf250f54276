package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned when a client exhausts an ask quota.
var ErrRateLimited = errors.New("too many questions, slow down")

var rateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Name: "goongoom_rate_limited_total",
	Help: "Ask requests rejected by the fixed-window rate limiter.",
})

// CounterStore increments a fixed-window counter, setting the window expiry
// when the counter is created.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements CounterStore on a Redis INCR/EXPIRE pair.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter wraps a Redis client as a CounterStore.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

// Limiter enforces fixed-window ask quotas per client key.
type Limiter struct {
	store     CounterStore
	perMinute int
	perHour   int
}

// NewLimiter constructs a Limiter. Non-positive quotas disable the
// corresponding window.
func NewLimiter(store CounterStore, perMinute, perHour int) *Limiter {
	return &Limiter{store: store, perMinute: perMinute, perHour: perHour}
}

// AllowAsk consumes one ask from each active window for the given client
// key, returning ErrRateLimited once a window is exhausted. A nil limiter
// allows everything.
func (l *Limiter) AllowAsk(ctx context.Context, key string) error {
	if l == nil || l.store == nil {
		return nil
	}

	windows := []struct {
		name   string
		window time.Duration
		max    int
	}{
		{"minute", time.Minute, l.perMinute},
		{"hour", time.Hour, l.perHour},
	}
	for _, w := range windows {
		if w.max <= 0 {
			continue
		}
		count, err := l.store.Incr(ctx, fmt.Sprintf("rate:ask:%s:%s", key, w.name), w.window)
		if err != nil {
			return err
		}
		if count > int64(w.max) {
			rateLimited.Inc()
			return fmt.Errorf("%w: %s limit reached", ErrRateLimited, w.name)
		}
	}
	return nil
}
