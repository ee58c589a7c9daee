package ratelimit

import (
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const storePrefix = "ratelimit"

// New builds a limiter for a formatted rate such as "300-M". Counters live in Redis when a
// client is given so every replica shares them; otherwise they are kept in process.
func New(rate string, client *redis.Client) (*limiter.Limiter, error) {
	parsed, err := limiter.NewRateFromFormatted(strings.TrimSpace(rate))
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	store, err := newStore(client)
	if err != nil {
		return nil, err
	}
	return limiter.New(store, parsed), nil
}

func newStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          storePrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: storePrefix})
	if err != nil {
		return nil, fmt.Errorf("redis limiter store: %w", err)
	}
	return store, nil
}
