package geo

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCentroids = StaticCentroids{
	"48126": {Lat: 42.3347, Lng: -83.1801},
	"48201": {Lat: 42.3470, Lng: -83.0600},
	"48104": {Lat: 42.2620, Lng: -83.7160},
	"90210": {Lat: 34.0901, Lng: -118.4065},
}

func TestNormalizeState(t *testing.T) {
	cases := []struct{ in, want string }{
		{"MI", "MI"},
		{" mi ", "MI"},
		{"Michigan", "MI"},
		{"new   york", "NY"},
		{"District of Columbia", "DC"},
	}
	for _, c := range cases {
		got, ok := NormalizeState(c.in)
		assert.True(t, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
	_, ok := NormalizeState("Atlantis")
	assert.False(t, ok)
	_, ok = NormalizeState("")
	assert.False(t, ok)
}

func TestSameState(t *testing.T) {
	assert.True(t, SameState("MI", "Michigan"))
	assert.False(t, SameState("MI", "OH"))
	assert.False(t, SameState("", ""))
}

func TestNormalizeZIP(t *testing.T) {
	assert.Equal(t, "48126", NormalizeZIP("48126-1234"))
	assert.Equal(t, "48126", NormalizeZIP(" 48 126 "))
	assert.Equal(t, "481", NormalizeZIP("481"))
}

func TestDistance(t *testing.T) {
	d := Distance(testCentroids["48126"], testCentroids["48201"])
	assert.InDelta(t, 6.2, d, 0.5)
	assert.Zero(t, Distance(testCentroids["48126"], testCentroids["48126"]))
	far := Distance(testCentroids["48126"], testCentroids["90210"])
	assert.True(t, far > 1900 && far < 2000, "unexpected cross-country distance %v", far)
}

func TestZIPListCovers(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		list        string
		zip         string
		radius      float64
		covered     bool
		distanceSet bool
	}{
		{"exact", "48201, 48126", "48126", 0, true, true},
		{"zip plus four lead", "48126", "48126-0001", 0, true, true},
		{"wildcard", "902*", "90210", 0, true, false},
		{"range", "90200-90220", "90210", 0, true, false},
		{"range miss", "90200-90209", "90210", 0, false, false},
		{"radius hit", "48201", "48126", 10, true, true},
		{"radius miss", "48104", "48126", 10, false, true},
		{"unknown centroid", "99999", "48126", 500, false, false},
		{"empty list", "", "48126", 25, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ZIPListCovers(ctx, tt.list, tt.zip, tt.radius, testCentroids)
			require.NoError(t, err)
			assert.Equal(t, tt.covered, m.Covered)
			assert.Equal(t, tt.distanceSet, m.DistanceKnown)
		})
	}
}

func TestZIPListCoversReportsShortestDistance(t *testing.T) {
	m, err := ZIPListCovers(context.Background(), "48104,48201", "48126", 25, testCentroids)
	require.NoError(t, err)
	assert.True(t, m.Covered)
	assert.InDelta(t, 6.2, m.DistanceMiles, 0.5)
}

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (Point, bool, error) {
	return Point{}, false, errors.New("boom")
}

func TestZIPListCoversPropagatesLookupErrors(t *testing.T) {
	_, err := ZIPListCovers(context.Background(), "48201", "48126", 10, failingStore{})
	require.Error(t, err)
}

type countingStore struct {
	calls int
	inner CentroidStore
}

func (c *countingStore) Lookup(ctx context.Context, zip string) (Point, bool, error) {
	c.calls++
	return c.inner.Lookup(ctx, zip)
}

func TestCachedCentroidStore(t *testing.T) {
	inner := &countingStore{inner: testCentroids}
	store := NewCachedCentroidStore(inner, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, ok, err := store.Lookup(ctx, "48126")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, testCentroids["48126"], p)
	}
	for i := 0; i < 2; i++ {
		_, ok, err := store.Lookup(ctx, "00000")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestPostgresCentroidStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresCentroidStoreWithQuerier(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT latitude, longitude FROM zip_centroids").
		WithArgs("48126").
		WillReturnRows(pgxmock.NewRows([]string{"latitude", "longitude"}).AddRow(42.3347, -83.1801))
	p, ok, err := store.Lookup(ctx, "48126-4444")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, math.Abs(p.Lat-42.3347) < 1e-9)

	mock.ExpectQuery("SELECT latitude, longitude FROM zip_centroids").
		WithArgs("00000").
		WillReturnError(pgx.ErrNoRows)
	_, ok, err = store.Lookup(ctx, "00000")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}
