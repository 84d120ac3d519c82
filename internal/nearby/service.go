// Package nearby composes location resolution, reverse geocoding and the
// transit client into the lookups the map UI performs.
package nearby

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/geolocation"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/ctanbus/ctanbus_core/internal/models"
	"golang.org/x/sync/errgroup"
)

// MaxStops caps how many stops a listing returns
const MaxStops = 50

// Transit is the upstream transit data source
type Transit interface {
	FindStopsNear(ctx context.Context, coord models.Coordinate, radius int) ([]models.BusStop, error)
	FindLinesForStop(ctx context.Context, stopID string) ([]models.BusLine, error)
	FindStopsForLine(ctx context.Context, lineID string) ([]models.BusStop, error)
	LineDetail(ctx context.Context, lineID string) (*models.LineDetail, error)
}

// Geocoder turns a coordinate into a display address. An empty string means
// no address is known.
type Geocoder interface {
	Address(ctx context.Context, c models.Coordinate) string
}

// Overview is everything shown once the caller position is known
type Overview struct {
	Location geolocation.Result `json:"location"`
	Address  string             `json:"address"`
	Stops    []models.BusStop   `json:"stops"`
}

// Service answers stop lookups around a position
type Service struct {
	transit  Transit
	geocoder Geocoder
	resolver *geolocation.Resolver
	radius   int
	logger   *slog.Logger
}

// NewService creates a lookup service. geocoder may be nil.
func NewService(transit Transit, geocoder Geocoder, resolver *geolocation.Resolver, radius int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		transit:  transit,
		geocoder: geocoder,
		resolver: resolver,
		radius:   radius,
		logger:   logger,
	}
}

// Transit returns the underlying transit source
func (s *Service) Transit() Transit {
	return s.transit
}

// Resolve runs the location resolver against loc
func (s *Service) Resolve(ctx context.Context, loc geolocation.Locator) geolocation.Result {
	return s.resolver.Resolve(ctx, loc)
}

// Address reverse geocodes c, returning "" when no geocoder is configured
func (s *Service) Address(ctx context.Context, c models.Coordinate) string {
	if s.geocoder == nil {
		return ""
	}
	return s.geocoder.Address(ctx, c)
}

// Locate resolves the caller position and then fetches its address and the
// stops around it concurrently. The fallback coordinate is used exactly like
// a device fix.
func (s *Service) Locate(ctx context.Context, loc geolocation.Locator) (*Overview, error) {
	start := time.Now()
	result := s.resolver.Resolve(ctx, loc)

	overview := &Overview{Location: result}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		overview.Address = s.Address(gctx, result.Coordinate)
		return nil
	})
	g.Go(func() error {
		stops, err := s.transit.FindStopsNear(gctx, result.Coordinate, s.radius)
		if err != nil {
			return err
		}
		overview.Stops = Limit(stops, MaxStops)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.LogOperation(s.logger, "locate",
		slog.Bool("fallback", result.Fallback),
		slog.Int("stops", len(overview.Stops)),
		slog.Duration("duration", time.Since(start)))

	return overview, nil
}

// StopsNear lists the stops around coord matching query, nearest first
func (s *Service) StopsNear(ctx context.Context, coord models.Coordinate, radius int, query string, limit int) ([]models.BusStop, error) {
	if radius <= 0 {
		radius = s.radius
	}
	stops, err := s.transit.FindStopsNear(ctx, coord, radius)
	if err != nil {
		return nil, err
	}
	return Limit(FilterStops(stops, query), limit), nil
}

// FilterStops keeps the stops whose name or municipality contains query,
// ignoring case. The input slice is never modified.
func FilterStops(stops []models.BusStop, query string) []models.BusStop {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return stops
	}

	filtered := make([]models.BusStop, 0, len(stops))
	for _, stop := range stops {
		if strings.Contains(strings.ToLower(stop.Name), q) ||
			strings.Contains(strings.ToLower(stop.Municipality), q) {
			filtered = append(filtered, stop)
		}
	}
	return filtered
}

// Limit returns at most n stops. n <= 0 applies MaxStops.
func Limit(stops []models.BusStop, n int) []models.BusStop {
	if n <= 0 || n > MaxStops {
		n = MaxStops
	}
	if len(stops) <= n {
		return stops
	}
	return stops[:n:n]
}
