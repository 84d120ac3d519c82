package api

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/geo"
	"github.com/ctanbus/ctanbus_core/internal/geolocation"
	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/ctanbus/ctanbus_core/internal/nearby"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// Handlers serves the transit lookup API
type Handlers struct {
	service     *nearby.Service
	checker     cache.Checker
	ipLookupURL string
	logger      *slog.Logger
}

// NewHandlers creates the API handlers. An empty ipLookupURL disables IP
// based location, so /api/location always answers with the default.
func NewHandlers(service *nearby.Service, checker cache.Checker, ipLookupURL string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:     service,
		checker:     checker,
		ipLookupURL: ipLookupURL,
		logger:      logger,
	}
}

// Register mounts every route on app
func (h *Handlers) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	api := app.Group("/api")
	api.Get("/bus-stops", h.BusStops)
	api.Get("/bus-stops/lines", h.StopLines)
	api.Get("/bus-lines", h.BusLines)
	api.Get("/bus-lines/stops", h.LineStops)
	api.Get("/location", h.Location)
	api.Get("/address", h.Address)
}

// Health handles the /health endpoint
func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()

	cacheStatus := "ok"
	httpStatus := fiber.StatusOK
	status := "healthy"
	if err := h.checker.HealthCheck(ctx); err != nil {
		cacheStatus = err.Error()
		httpStatus = fiber.StatusServiceUnavailable
		status = "unhealthy"
	}

	stats, err := h.checker.Stats(ctx)
	if err != nil {
		stats = map[string]interface{}{"error": err.Error()}
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"cache": cacheStatus,
		},
		"cache": stats,
	})
}

// BusStops handles the /api/bus-stops endpoint
func (h *Handlers) BusStops(c *fiber.Ctx) error {
	coord, err := parseCoordinate(c)
	if err != nil {
		return err
	}

	radius := 0
	if s := c.Query("radius"); s != "" {
		radius, err = strconv.Atoi(s)
		if err != nil {
			return invalid("radius", "invalid radius")
		}
		if err := geo.ValidateRadius(radius); err != nil {
			return invalid("radius", err.Error())
		}
	}

	limit := nearby.MaxStops
	if s := c.Query("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit <= 0 {
			return invalid("limit", "invalid limit (must be a positive integer)")
		}
	}

	stops, err := h.service.StopsNear(c.UserContext(), coord, radius, c.Query("q"), limit)
	if err != nil {
		return failedTo("Failed to fetch bus stops", err)
	}
	return c.JSON(stops)
}

// StopLines handles the /api/bus-stops/lines endpoint
func (h *Handlers) StopLines(c *fiber.Ctx) error {
	stopID := utils.CopyString(strings.TrimSpace(c.Query("stopId")))
	if stopID == "" {
		return invalid("stopId", "Stop ID is required")
	}
	return h.linesForStop(c, stopID)
}

// LineDetailResponse is a line's stops and route, with a notice for the UI
// when the route geometry is unavailable
type LineDetailResponse struct {
	*models.LineDetail
	Notice string `json:"notice,omitempty"`
}

// BusLines handles the /api/bus-lines endpoint. stopId lists the lines
// serving a stop, lineId returns the line's stops and route.
func (h *Handlers) BusLines(c *fiber.Ctx) error {
	if stopID := strings.TrimSpace(c.Query("stopId")); stopID != "" {
		return h.linesForStop(c, utils.CopyString(stopID))
	}

	lineID := utils.CopyString(strings.TrimSpace(c.Query("lineId")))
	if lineID == "" {
		return invalid("stopId|lineId", "Stop ID or line ID is required")
	}

	detail, err := h.service.Transit().LineDetail(c.UserContext(), lineID)
	if err != nil {
		return failedTo("Failed to fetch bus lines", err)
	}

	resp := LineDetailResponse{LineDetail: detail}
	if !detail.RouteAvailable {
		resp.Notice = "Route data is not available for this line"
	}
	return c.JSON(resp)
}

// LineStops handles the /api/bus-lines/stops endpoint
func (h *Handlers) LineStops(c *fiber.Ctx) error {
	lineID := utils.CopyString(strings.TrimSpace(c.Query("lineId")))
	if lineID == "" {
		return invalid("lineId", "Line ID is required")
	}

	stops, err := h.service.Transit().FindStopsForLine(c.UserContext(), lineID)
	if err != nil {
		return failedTo("Failed to fetch line stops", err)
	}
	return c.JSON(stops)
}

func (h *Handlers) linesForStop(c *fiber.Ctx, stopID string) error {
	lines, err := h.service.Transit().FindLinesForStop(c.UserContext(), stopID)
	if err != nil {
		return failedTo("Failed to fetch bus lines", err)
	}
	return c.JSON(lines)
}

// LocationResponse is the resolved caller position
type LocationResponse struct {
	Latitude  float64             `json:"latitude"`
	Longitude float64             `json:"longitude"`
	Fallback  bool                `json:"fallback"`
	Failure   geolocation.Failure `json:"failure,omitempty"`
	Message   string              `json:"message,omitempty"`
	Retryable bool                `json:"retryable"`
	Address   string              `json:"address"`
}

// Location handles the /api/location endpoint. A device fix sent as
// lat/long is used when present, otherwise the caller IP is looked up.
// The response always carries a usable coordinate.
func (h *Handlers) Location(c *fiber.Ctx) error {
	perm := geolocation.ParsePermission(c.Query("permission"))

	var loc geolocation.Locator
	switch {
	case c.Query("lat") != "" || c.Query("long") != "":
		coord, err := parseCoordinate(c)
		if err != nil {
			return err
		}
		loc = geolocation.StaticLocator{Coordinate: coord, Perm: perm}
	case h.ipLookupURL != "":
		loc = geolocation.NewIPLocator(h.ipLookupURL, utils.CopyString(c.IP()), perm)
	}

	ctx := c.UserContext()
	result := h.service.Resolve(ctx, loc)

	return c.JSON(LocationResponse{
		Latitude:  result.Coordinate.Latitude,
		Longitude: result.Coordinate.Longitude,
		Fallback:  result.Fallback,
		Failure:   result.Failure,
		Message:   result.Failure.Message(),
		Retryable: result.Failure.Retryable(),
		Address:   h.service.Address(ctx, result.Coordinate),
	})
}

// Address handles the /api/address endpoint
func (h *Handlers) Address(c *fiber.Ctx) error {
	coord, err := parseCoordinate(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"address": h.service.Address(c.UserContext(), coord),
	})
}

// parseCoordinate reads the lat and long query parameters
func parseCoordinate(c *fiber.Ctx) (models.Coordinate, error) {
	latStr := strings.TrimSpace(c.Query("lat"))
	lonStr := strings.TrimSpace(c.Query("long"))

	if latStr == "" || lonStr == "" {
		return models.Coordinate{}, invalid("lat", "missing required parameters: lat and long")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return models.Coordinate{}, invalid("lat", "invalid latitude")
	}
	if err := geo.ValidateLatitude(lat); err != nil {
		return models.Coordinate{}, invalid("lat", err.Error())
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return models.Coordinate{}, invalid("long", "invalid longitude")
	}
	if err := geo.ValidateLongitude(lon); err != nil {
		return models.Coordinate{}, invalid("long", err.Error())
	}

	return models.Coordinate{Latitude: lat, Longitude: lon}, nil
}
