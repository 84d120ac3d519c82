package nearby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/ctan"
	"github.com/ctanbus/ctanbus_core/internal/geolocation"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransit struct {
	mu       sync.Mutex
	stops    []models.BusStop
	near     []models.Coordinate
	lines    map[string][]models.BusLine
	details  map[string]*models.LineDetail
	err      error
	gates    map[string]chan struct{}
	requests []string
}

func (f *fakeTransit) FindStopsNear(_ context.Context, coord models.Coordinate, _ int) ([]models.BusStop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.near = append(f.near, coord)
	return f.stops, f.err
}

func (f *fakeTransit) FindLinesForStop(ctx context.Context, stopID string) ([]models.BusLine, error) {
	f.wait(ctx, stopID)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, stopID)
	return f.lines[stopID], f.err
}

func (f *fakeTransit) FindStopsForLine(_ context.Context, lineID string) ([]models.BusStop, error) {
	return f.details[lineID].Stops, f.err
}

func (f *fakeTransit) LineDetail(ctx context.Context, lineID string) (*models.LineDetail, error) {
	f.wait(ctx, lineID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details[lineID], f.err
}

func (f *fakeTransit) wait(ctx context.Context, id string) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()
	if gate == nil {
		return
	}
	select {
	case <-gate:
	case <-ctx.Done():
	}
}

type fakeGeocoder struct{ address string }

func (g fakeGeocoder) Address(context.Context, models.Coordinate) string { return g.address }

func stop(id, name, municipality string) models.BusStop {
	return models.BusStop{ID: id, Name: name, Municipality: municipality, Lines: []models.BusLine{}}
}

func newService(transit Transit) *Service {
	resolver := geolocation.NewResolver(geolocation.DefaultCoordinate,
		geolocation.Options{Timeout: 100 * time.Millisecond}, logging.Discard())
	return NewService(transit, fakeGeocoder{address: "Plaza Nueva, Sevilla"}, resolver, 500, logging.Discard())
}

func TestLocate(t *testing.T) {
	device := models.Coordinate{Latitude: 37.3891, Longitude: -5.9845}

	t.Run("Device fix", func(t *testing.T) {
		transit := &fakeTransit{stops: []models.BusStop{stop("1", "Prado", "Sevilla")}}
		overview, err := newService(transit).Locate(context.Background(), geolocation.StaticLocator{Coordinate: device})

		require.NoError(t, err)
		assert.False(t, overview.Location.Fallback)
		assert.Equal(t, "Plaza Nueva, Sevilla", overview.Address)
		assert.Len(t, overview.Stops, 1)
		assert.Equal(t, []models.Coordinate{device}, transit.near)
	})

	t.Run("Fallback coordinate is queried", func(t *testing.T) {
		transit := &fakeTransit{}
		overview, err := newService(transit).Locate(context.Background(),
			geolocation.StaticLocator{Perm: geolocation.PermissionDenied})

		require.NoError(t, err)
		assert.True(t, overview.Location.Fallback)
		assert.Equal(t, geolocation.FailurePermissionDenied, overview.Location.Failure)
		assert.Equal(t, []models.Coordinate{geolocation.DefaultCoordinate}, transit.near)
	})

	t.Run("Upstream failure propagates", func(t *testing.T) {
		transit := &fakeTransit{err: &ctan.UpstreamError{Op: "stops near", Kind: ctan.ErrUpstreamUnavailable}}
		_, err := newService(transit).Locate(context.Background(), geolocation.StaticLocator{Coordinate: device})

		assert.ErrorIs(t, err, ctan.ErrUpstreamUnavailable)
	})

	t.Run("Listing is capped", func(t *testing.T) {
		transit := &fakeTransit{stops: make([]models.BusStop, 80)}
		overview, err := newService(transit).Locate(context.Background(), geolocation.StaticLocator{Coordinate: device})

		require.NoError(t, err)
		assert.Len(t, overview.Stops, MaxStops)
	})
}

func TestStopsNear(t *testing.T) {
	transit := &fakeTransit{stops: []models.BusStop{
		stop("1", "Prado de San Sebastián", "Sevilla"),
		stop("2", "Estación", "Dos Hermanas"),
		stop("3", "Avenida de la Constitución", "Sevilla"),
	}}

	stops, err := newService(transit).StopsNear(context.Background(), geolocation.DefaultCoordinate, 0, "sevilla", 1)
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Equal(t, "1", stops[0].ID)
}

func TestFilterStops(t *testing.T) {
	stops := []models.BusStop{
		stop("1", "Prado de San Sebastián", "Sevilla"),
		stop("2", "Estación", "Dos Hermanas"),
		stop("3", "Hospital", "Sevilla"),
	}
	original := append([]models.BusStop(nil), stops...)

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"Empty query keeps all", "", []string{"1", "2", "3"}},
		{"Blank query keeps all", "   ", []string{"1", "2", "3"}},
		{"Matches name", "prado", []string{"1"}},
		{"Matches municipality", "HERMANAS", []string{"2"}},
		{"Matches either", "sevilla", []string{"1", "3"}},
		{"No match", "cádiz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := []string{}
			for _, s := range FilterStops(stops, tt.query) {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.expected, ids)
			assert.Equal(t, original, stops)
		})
	}
}

func TestLimit(t *testing.T) {
	stops := make([]models.BusStop, 60)

	assert.Len(t, Limit(stops, 10), 10)
	assert.Len(t, Limit(stops, 0), MaxStops)
	assert.Len(t, Limit(stops, 500), MaxStops)
	assert.Len(t, Limit(stops[:3], 10), 3)
	assert.Empty(t, Limit(nil, 10))
}

func TestServiceWithoutGeocoder(t *testing.T) {
	s := NewService(&fakeTransit{}, nil, geolocation.NewResolver(geolocation.DefaultCoordinate, geolocation.DefaultOptions, nil), 500, nil)
	assert.Equal(t, "", s.Address(context.Background(), geolocation.DefaultCoordinate))
	assert.NotNil(t, s.Transit())
}

var errBoom = errors.New("boom")
