package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"
)

// CentroidStore resolves a five digit ZIP to its approximate centroid.
type CentroidStore interface {
	Lookup(ctx context.Context, zip string) (Point, bool, error)
}

// StaticCentroids is an in-memory centroid table, used in tests and as a seed.
type StaticCentroids map[string]Point

// Lookup implements CentroidStore.
func (s StaticCentroids) Lookup(_ context.Context, zip string) (Point, bool, error) {
	p, ok := s[NormalizeZIP(zip)]
	return p, ok, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCentroidStore reads the zip_centroids table.
type PostgresCentroidStore struct {
	db rowQuerier
}

func NewPostgresCentroidStore(pool *pgxpool.Pool) *PostgresCentroidStore {
	if pool == nil {
		panic("geo: pgx pool required")
	}
	return &PostgresCentroidStore{db: pool}
}

func newPostgresCentroidStoreWithQuerier(db rowQuerier) *PostgresCentroidStore {
	return &PostgresCentroidStore{db: db}
}

// Lookup implements CentroidStore.
func (s *PostgresCentroidStore) Lookup(ctx context.Context, zip string) (Point, bool, error) {
	var p Point
	err := s.db.QueryRow(ctx, `SELECT latitude, longitude FROM zip_centroids WHERE zip = $1`, NormalizeZIP(zip)).Scan(&p.Lat, &p.Lng)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Point{}, false, nil
		}
		return Point{}, false, fmt.Errorf("geo: query centroid: %w", err)
	}
	return p, true, nil
}

type cachedCentroid struct {
	point Point
	found bool
}

// CachedCentroidStore is a read-through cache in front of another store.
// Misses are cached too so unknown ZIPs do not hit the database repeatedly.
type CachedCentroidStore struct {
	next  CentroidStore
	cache *cache.Cache
}

func NewCachedCentroidStore(next CentroidStore, ttl time.Duration) *CachedCentroidStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedCentroidStore{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Lookup implements CentroidStore.
func (s *CachedCentroidStore) Lookup(ctx context.Context, zip string) (Point, bool, error) {
	key := NormalizeZIP(zip)
	if v, ok := s.cache.Get(key); ok {
		entry := v.(cachedCentroid)
		return entry.point, entry.found, nil
	}
	p, found, err := s.next.Lookup(ctx, key)
	if err != nil {
		return Point{}, false, err
	}
	s.cache.Set(key, cachedCentroid{point: p, found: found}, cache.DefaultExpiration)
	return p, found, nil
}
