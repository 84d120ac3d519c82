package cache

import (
	"fmt"

	"github.com/ctanbus/ctanbus_core/internal/geo"
	"github.com/ctanbus/ctanbus_core/internal/models"
)

// StopsNearKey generates a cache key for a proximity query. The coordinate
// is quantized so that near-duplicate positions hit the same entry.
func StopsNearKey(c models.Coordinate, radius int) string {
	q := geo.QuantizeCoordinate(c)
	return fmt.Sprintf("stops_near:%.4f,%.4f:%d", q.Latitude, q.Longitude, radius)
}

// LinesForStopKey generates a cache key for the lines serving a stop
func LinesForStopKey(stopID string) string {
	return "stop_lines:" + stopID
}

// StopsForLineKey generates a cache key for a line's stop sequence
func StopsForLineKey(lineID string) string {
	return "line_stops:" + lineID
}

// LineRouteKey generates a cache key for a line's route geometry
func LineRouteKey(lineID string) string {
	return "line_route:" + lineID
}

// AddressKey generates a cache key for a reverse-geocoded address
func AddressKey(c models.Coordinate) string {
	q := geo.QuantizeCoordinate(c)
	return fmt.Sprintf("address:%.4f,%.4f", q.Latitude, q.Longitude)
}
