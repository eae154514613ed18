// README: Tracking stores: Redis GEO index for nearby lookups, Postgres for
// the snapshot trail.
package tracking

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sharetray/internal/types"
)

const volunteerGeoKey = "sharetray:volunteers:geo"

type RedisIndex struct {
	redis *redis.Client
}

func NewRedisIndex(rdb *redis.Client) *RedisIndex {
	return &RedisIndex{redis: rdb}
}

func (s *RedisIndex) Add(ctx context.Context, userID types.ID, pos types.Point) error {
	return s.redis.GeoAdd(ctx, volunteerGeoKey, &redis.GeoLocation{
		Name:      string(userID),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (s *RedisIndex) Nearby(ctx context.Context, pos types.Point, radiusKm float64, limit int) ([]Neighbor, error) {
	results, err := s.redis.GeoSearchLocation(ctx, volunteerGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  pos.Lng,
			Latitude:   pos.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	neighbors := make([]Neighbor, len(results))
	for i, r := range results {
		neighbors[i] = Neighbor{UserID: types.ID(r.Name), DistanceKm: r.Dist}
	}
	return neighbors, nil
}

func (s *RedisIndex) Remove(ctx context.Context, userID types.ID) error {
	return s.redis.ZRem(ctx, volunteerGeoKey, string(userID)).Err()
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, snap *Snapshot) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO location_snapshots (user_id, lng, lat, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		string(snap.UserID), snap.Location.Lng, snap.Location.Lat, snap.RecordedAt,
	)
	return err
}
