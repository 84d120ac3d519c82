package models

import "fmt"

// TransitMode represents the type of transit service
type TransitMode string

const (
	ModeBus   TransitMode = "BUS"
	ModeMetro TransitMode = "METRO"
	ModeTram  TransitMode = "TRAM"
	ModeTrain TransitMode = "TRAIN"
	ModeFerry TransitMode = "FERRY"
)

// Coordinate is a WGS84 position
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies inside the WGS84 ranges
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// BusStop represents a physical transit stop returned by the provider.
// Distance is only set by proximity queries and Order only when the stop
// is part of a line's stop sequence.
type BusStop struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Municipality   string    `json:"municipality"`
	MunicipalityID string    `json:"municipalityId,omitempty"`
	Nucleus        string    `json:"nucleus"`
	NucleusID      string    `json:"nucleusId,omitempty"`
	ZoneID         string    `json:"zoneId,omitempty"`
	TransportModes string    `json:"transportModes"`
	Distance       *float64  `json:"distance,omitempty"` // meters
	Order          *int      `json:"order,omitempty"`
	Lines          []BusLine `json:"lines"`
}

// Coordinate returns the stop position
func (s BusStop) Coordinate() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// BusLine represents a transit line (route) serving one or more stops
type BusLine struct {
	ID          string      `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Priority    int         `json:"priority"` // number of services
	Mode        TransitMode `json:"mode"`
}

// Route is the ordered polyline a line physically follows
type Route []Coordinate

// LineDetail groups a line's ordered stops and its route geometry
type LineDetail struct {
	LineID         string    `json:"lineId"`
	Stops          []BusStop `json:"stops"`
	Route          Route     `json:"route"`
	RouteAvailable bool      `json:"routeAvailable"`
}
