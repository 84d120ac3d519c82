// Package route converts the provider's polyline encoding into coordinates.
//
// CTAN encodes a line's geometry as a list of points where each point is an
// array whose first element is a "lat,lng" or "lat,lng,flag" string.
package route

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ctanbus/ctanbus_core/internal/models"
)

// Parse decodes a raw polyline value. Anything that is not a JSON array
// yields an empty route.
func Parse(raw json.RawMessage) models.Route {
	var points []json.RawMessage
	if err := json.Unmarshal(raw, &points); err != nil {
		return models.Route{}
	}

	out := make(models.Route, 0, len(points))
	for _, p := range points {
		var fields []json.RawMessage
		if err := json.Unmarshal(p, &fields); err != nil || len(fields) == 0 {
			continue
		}
		var encoded string
		if err := json.Unmarshal(fields[0], &encoded); err != nil {
			continue
		}
		if c, ok := ParsePoint(encoded); ok {
			out = append(out, c)
		}
	}

	return out
}

// ParsePoints is Parse for already-decoded points
func ParsePoints(points [][]string) models.Route {
	out := make(models.Route, 0, len(points))
	for _, p := range points {
		if len(p) == 0 {
			continue
		}
		if c, ok := ParsePoint(p[0]); ok {
			out = append(out, c)
		}
	}
	return out
}

// ParsePoint parses a single "lat,lng[,flag]" string. The flag is ignored.
func ParsePoint(encoded string) (models.Coordinate, bool) {
	parts := strings.Split(encoded, ",")
	if len(parts) < 2 {
		return models.Coordinate{}, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || !finite(lat) {
		return models.Coordinate{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || !finite(lng) {
		return models.Coordinate{}, false
	}

	c := models.Coordinate{Latitude: lat, Longitude: lng}
	if !c.Valid() {
		return models.Coordinate{}, false
	}
	return c, true
}

// Select picks the outbound polyline when the provider sent one, falling
// back to the generic polyline field.
func Select(outbound, generic json.RawMessage) json.RawMessage {
	if len(outbound) > 0 && !bytes.Equal(bytes.TrimSpace(outbound), []byte("null")) {
		return outbound
	}
	return generic
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
