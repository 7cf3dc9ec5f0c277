package location

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSnapshots persists the sampled location trail.
type PostgresSnapshots struct {
	db *pgxpool.Pool
}

func NewPostgresSnapshots(db *pgxpool.Pool) *PostgresSnapshots {
	return &PostgresSnapshots{db: db}
}

func (s *PostgresSnapshots) Append(ctx context.Context, snap Snapshot) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO location_snapshots (actor_id, lat, lng, recorded_at)
        VALUES ($1, $2, $3, $4)`,
		string(snap.ActorID),
		snap.Position.Lat,
		snap.Position.Lng,
		snap.RecordedAt,
	)
	return err
}
