package location

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"courierd/internal/types"
)

const (
	latestKeyPrefix = "location:latest:%s"
	// latestTTL expires mirrored fixes for actors that silently vanish.
	latestTTL = 10 * time.Minute
)

// RedisMirror mirrors last-known samples into Redis hashes for map renderers
// running in other processes.
type RedisMirror struct {
	redis *redis.Client
}

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{redis: client}
}

func (m *RedisMirror) SetLatest(ctx context.Context, actorID types.ID, s Sample) error {
	key := fmt.Sprintf(latestKeyPrefix, string(actorID))
	fields := map[string]interface{}{
		"lat":         s.Position.Lat,
		"lng":         s.Position.Lng,
		"recorded_at": s.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	if s.HeadingDegrees != nil {
		fields["heading"] = *s.HeadingDegrees
	}
	if s.SpeedMps != nil {
		fields["speed_mps"] = *s.SpeedMps
	}
	pipe := m.redis.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, latestTTL)
	_, err := pipe.Exec(ctx)
	return err
}
