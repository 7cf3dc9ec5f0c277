package infra

import "github.com/redis/go-redis/v9"

// NewRedis creates a Redis client used for courier presence GEO queries and
// the last-known location mirror.
func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}
