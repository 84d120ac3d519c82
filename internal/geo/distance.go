package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctanbus/ctanbus_core/internal/models"
)

const earthRadius = 6371000 // meters

// KeyPrecision is the number of decimals kept when a coordinate is used as
// part of a cache key (~11m).
const KeyPrecision = 4

// MaxRadius is the largest search radius accepted for proximity queries
const MaxRadius = 5000

// Haversine calculates the great-circle distance between two points in meters
func Haversine(a, b models.Coordinate) float64 {
	// Convert to radians
	lat1Rad := a.Latitude * math.Pi / 180
	lat2Rad := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// FormatDistance renders a distance in meters for display:
// under 100m to the meter, under 1km to the nearest 10m, otherwise in km.
func FormatDistance(meters float64) string {
	switch {
	case meters < 100:
		return fmt.Sprintf("%dm", int(math.Round(meters)))
	case meters < 1000:
		return fmt.Sprintf("%dm", int(math.Round(meters/10))*10)
	default:
		return fmt.Sprintf("%.1fkm", meters/1000)
	}
}

// quantizeEpsilon absorbs binary representation error, e.g. 37.3886*1e4
// evaluating to 373885.99999999994.
const quantizeEpsilon = 1e-6

// Quantize truncates v toward zero to the given number of decimal places.
func Quantize(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	scaled := v * p
	var q float64
	if scaled < 0 {
		q = -math.Floor(-scaled+quantizeEpsilon) / p
	} else {
		q = math.Floor(scaled+quantizeEpsilon) / p
	}
	// Small negatives truncate to -0, which formats as "-0.0000"
	if q == 0 {
		return 0
	}
	return q
}

// QuantizeCoordinate buckets a coordinate to KeyPrecision decimals so that
// nearby positions share a cache key
func QuantizeCoordinate(c models.Coordinate) models.Coordinate {
	return models.Coordinate{
		Latitude:  Quantize(c.Latitude, KeyPrecision),
		Longitude: Quantize(c.Longitude, KeyPrecision),
	}
}

// ValidateLatitude validates latitude values
func ValidateLatitude(lat float64) error {
	if math.IsNaN(lat) || lat < -90.0 || lat > 90.0 {
		return errors.New("latitude must be between -90 and 90")
	}
	return nil
}

// ValidateLongitude validates longitude values
func ValidateLongitude(lon float64) error {
	if math.IsNaN(lon) || lon < -180.0 || lon > 180.0 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateRadius validates radius values for proximity searches
func ValidateRadius(radius int) error {
	if radius <= 0 {
		return errors.New("radius must be positive")
	}
	if radius > MaxRadius {
		return fmt.Errorf("radius too large (max %d meters)", MaxRadius)
	}
	return nil
}
