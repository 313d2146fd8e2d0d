package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	indicatorKeyPrefix = "synthcore:indicator:"
	indicatorSetKey    = "synthcore:indicators"
)

// Redis is a Registry backed by a redis instance. Reads and writes run
// through a circuit breaker so a degraded redis fails fast instead of
// stalling the pipeline.
type Redis struct {
	client  redis.Cmdable
	breaker *gobreaker.CircuitBreaker
}

// NewRedis wraps an existing redis client.
func NewRedis(client redis.Cmdable) *Redis {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "registry-redis",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("registry breaker state change")
		},
	})
	return &Redis{client: client, breaker: cb}
}

// Connect dials redis and returns a registry over the connection.
func Connect(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("registry: redis ping %s: %w", addr, err)
	}
	return NewRedis(client), nil
}

func (r *Redis) execute(op func() (interface{}, error)) (interface{}, error) {
	out, err := r.breaker.Execute(op)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("registry: redis unavailable: %w", err)
	}
	return out, err
}

// Put registers or replaces an indicator's series.
func (r *Redis) Put(ctx context.Context, id string, series []float64) error {
	if id == "" {
		return fmt.Errorf("registry: empty indicator id")
	}
	raw, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("registry: encode %s: %w", id, err)
	}
	_, err = r.execute(func() (interface{}, error) {
		if err := r.client.Set(ctx, indicatorKeyPrefix+id, raw, 0).Err(); err != nil {
			return nil, err
		}
		return nil, r.client.SAdd(ctx, indicatorSetKey, id).Err()
	})
	if err != nil {
		return fmt.Errorf("registry: put %s: %w", id, err)
	}
	return nil
}

// Get returns one indicator's series.
func (r *Redis) Get(ctx context.Context, id string) ([]float64, error) {
	out, err := r.execute(func() (interface{}, error) {
		raw, err := r.client.Get(ctx, indicatorKeyPrefix+id).Result()
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return raw, err
	})
	if err != nil {
		return nil, err
	}

	var series []float64
	if err := json.Unmarshal([]byte(out.(string)), &series); err != nil {
		return nil, fmt.Errorf("registry: decode %s: %w", id, err)
	}
	return series, nil
}

// All loads every registered indicator. Ids whose series key has expired
// or been removed out-of-band are skipped with a warning.
func (r *Redis) All(ctx context.Context) (map[string][]float64, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.client.SMembers(ctx, indicatorSetKey).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("registry: list indicators: %w", err)
	}

	ids := out.([]string)
	series := make(map[string][]float64, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			log.Warn().Str("indicator", id).Err(err).Msg("skipping unreadable indicator series")
			continue
		}
		series[id] = s
	}
	return series, nil
}

// Remove retires an indicator.
func (r *Redis) Remove(ctx context.Context, id string) error {
	_, err := r.execute(func() (interface{}, error) {
		if err := r.client.SRem(ctx, indicatorSetKey, id).Err(); err != nil {
			return nil, err
		}
		return nil, r.client.Del(ctx, indicatorKeyPrefix+id).Err()
	})
	if err != nil {
		return fmt.Errorf("registry: remove %s: %w", id, err)
	}
	return nil
}

// Count returns the number of active indicators.
func (r *Redis) Count(ctx context.Context) (int, error) {
	out, err := r.execute(func() (interface{}, error) {
		return r.client.SCard(ctx, indicatorSetKey).Result()
	})
	if err != nil {
		return 0, fmt.Errorf("registry: count: %w", err)
	}
	return int(out.(int64)), nil
}
