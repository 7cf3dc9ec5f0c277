package courier

import (
	"context"

	"github.com/redis/go-redis/v9"

	"courierd/internal/types"
)

const courierGeoKey = "couriers:geo"

// RedisPresence keeps the courier GEO set current so dashboards and other
// processes can run radius queries without touching the in-memory registry.
type RedisPresence struct {
	redis *redis.Client
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{redis: client}
}

func (p *RedisPresence) Add(ctx context.Context, actorID types.ID, pt types.Point) error {
	return p.redis.GeoAdd(ctx, courierGeoKey, &redis.GeoLocation{
		Name:      string(actorID),
		Longitude: pt.Lng,
		Latitude:  pt.Lat,
	}).Err()
}

func (p *RedisPresence) Remove(ctx context.Context, actorID types.ID) error {
	return p.redis.ZRem(ctx, courierGeoKey, string(actorID)).Err()
}

// UpdatePosition satisfies location.PresenceUpdater so each applied sample
// refreshes the GEO entry.
func (p *RedisPresence) UpdatePosition(ctx context.Context, actorID types.ID, pt types.Point) error {
	return p.Add(ctx, actorID, pt)
}

// Nearby returns courier IDs within radiusMiles of a point, nearest first.
func (p *RedisPresence) Nearby(ctx context.Context, pt types.Point, radiusMiles float64) ([]types.ID, error) {
	results, err := p.redis.GeoSearch(ctx, courierGeoKey, &redis.GeoSearchQuery{
		Longitude:  pt.Lng,
		Latitude:   pt.Lat,
		Radius:     radiusMiles,
		RadiusUnit: "mi",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
