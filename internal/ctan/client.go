package ctan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/geo"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/ctanbus/ctanbus_core/internal/route"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBaseURL is the public CTAN API endpoint
	DefaultBaseURL = "https://api.ctan.es/v1"

	// DefaultRadius is the proximity search radius in meters
	DefaultRadius = 500

	// maxErrorBody bounds how much of a failed response is logged
	maxErrorBody = 4 << 10
)

// Config holds upstream connection settings
type Config struct {
	BaseURL    string
	Consortium string
	Lang       string
	Timeout    time.Duration
}

// Client queries the CTAN API and normalizes its payloads. Every query is
// answered from the response cache when possible.
type Client struct {
	cfg        Config
	httpClient *http.Client
	store      cache.Store
	logger     *slog.Logger
	flights    singleflight.Group
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for upstream diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client backed by store
func NewClient(cfg Config, store cache.Store, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Consortium == "" {
		cfg.Consortium = "1"
	}
	if cfg.Lang == "" {
		cfg.Lang = "ES"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindStopsNear returns the stops within radius meters of coord, nearest first
func (c *Client) FindStopsNear(ctx context.Context, coord models.Coordinate, radius int) ([]models.BusStop, error) {
	if radius <= 0 {
		radius = DefaultRadius
	}

	return cached(ctx, c, cache.StopsNearKey(coord, radius), func(ctx context.Context) ([]models.BusStop, error) {
		q := url.Values{}
		q.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
		q.Set("long", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
		q.Set("maxdist", strconv.Itoa(radius))

		u := c.endpoint(q, "paradas")
		body, err := c.get(ctx, "stops near", u)
		if err != nil {
			return nil, err
		}

		raw, err := decodeParadas(body)
		if err != nil {
			return nil, c.formatError("stops near", u, err)
		}
		stops, err := normalizeStops(raw)
		if err != nil {
			return nil, c.formatError("stops near", u, err)
		}

		for i := range stops {
			if stops[i].Distance == nil {
				d := geo.Haversine(coord, stops[i].Coordinate())
				stops[i].Distance = &d
			}
		}
		sort.SliceStable(stops, func(i, j int) bool {
			return *stops[i].Distance < *stops[j].Distance
		})

		return stops, nil
	})
}

// FindLinesForStop returns the lines serving a stop, in provider order
func (c *Client) FindLinesForStop(ctx context.Context, stopID string) ([]models.BusLine, error) {
	return cached(ctx, c, cache.LinesForStopKey(stopID), func(ctx context.Context) ([]models.BusLine, error) {
		u := c.endpoint(nil, "paradas", "lineasPorParadas", stopID)
		body, err := c.get(ctx, "lines for stop", u)
		if err != nil {
			return nil, err
		}

		raw, err := decodeLineas(body)
		if err != nil {
			return nil, c.formatError("lines for stop", u, err)
		}
		lines, err := normalizeLines(raw)
		if err != nil {
			return nil, c.formatError("lines for stop", u, err)
		}
		return lines, nil
	})
}

// FindStopsForLine returns a line's stop sequence ordered by position
func (c *Client) FindStopsForLine(ctx context.Context, lineID string) ([]models.BusStop, error) {
	return cached(ctx, c, cache.StopsForLineKey(lineID), func(ctx context.Context) ([]models.BusStop, error) {
		u := c.endpoint(nil, "lineas", lineID, "paradas")
		body, err := c.get(ctx, "stops for line", u)
		if err != nil {
			return nil, err
		}

		raw, err := decodeParadas(body)
		if err != nil {
			return nil, c.formatError("stops for line", u, err)
		}
		stops, err := normalizeStops(raw)
		if err != nil {
			return nil, c.formatError("stops for line", u, err)
		}

		// The provider does not guarantee sequence order. Stops without an
		// order keep their relative position at the end.
		sort.SliceStable(stops, func(i, j int) bool {
			oi, oj := stops[i].Order, stops[j].Order
			switch {
			case oi == nil:
				return false
			case oj == nil:
				return true
			default:
				return *oi < *oj
			}
		})

		return stops, nil
	})
}

// LineRoute returns a line's route geometry. An empty route means the
// provider sent no usable polyline.
func (c *Client) LineRoute(ctx context.Context, lineID string) (models.Route, error) {
	return cached(ctx, c, cache.LineRouteKey(lineID), func(ctx context.Context) (models.Route, error) {
		u := c.endpoint(nil, "lineas", lineID)
		body, err := c.get(ctx, "line route", u)
		if err != nil {
			return nil, err
		}

		var detail lineaDetalle
		if err := jsonUnmarshal(body, &detail); err != nil {
			return nil, c.formatError("line route", u, err)
		}

		return route.Parse(route.Select(detail.PolilineaIda, detail.Polilinea)), nil
	})
}

// LineDetail returns a line's ordered stops together with its route
func (c *Client) LineDetail(ctx context.Context, lineID string) (*models.LineDetail, error) {
	stops, err := c.FindStopsForLine(ctx, lineID)
	if err != nil {
		return nil, err
	}

	r, err := c.LineRoute(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = models.Route{}
	}

	return &models.LineDetail{
		LineID:         lineID,
		Stops:          stops,
		Route:          r,
		RouteAvailable: len(r) > 0,
	}, nil
}

// endpoint builds {base}/Consorcios/{consortium}/{segments...}?{q}&lang=
func (c *Client) endpoint(q url.Values, segments ...string) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("lang", c.cfg.Lang)

	path := c.cfg.BaseURL + "/Consorcios/" + url.PathEscape(c.cfg.Consortium)
	for _, s := range segments {
		path += "/" + url.PathEscape(s)
	}
	return path + "?" + q.Encode()
}

// get performs a GET and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, op, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, unavailable(op, u, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.cfg.Lang)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogError(c.logger, "ctan request failed", err,
			slog.String("op", op),
			slog.String("url", u),
			slog.Duration("duration", time.Since(start)))
		return nil, unavailable(op, u, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logging.LogError(c.logger, "ctan returned non-success status", nil,
			slog.String("op", op),
			slog.String("url", u),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)))
		return nil, unavailable(op, u, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(op, u, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	c.logger.Debug("ctan request",
		slog.String("op", op),
		slog.String("url", u),
		slog.Duration("duration", time.Since(start)))
	return body, nil
}

func (c *Client) formatError(op, u string, err error) error {
	logging.LogError(c.logger, "ctan response has unexpected format", err,
		slog.String("op", op),
		slog.String("url", u))
	return malformed(op, u, err)
}

// cached answers from the store when possible. Concurrent misses for one key
// share a single upstream fetch; the store write is idempotent.
func cached[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	value, ok, err := cache.GetJSON[T](ctx, c.store, key)
	if err != nil {
		// Degrade to an upstream fetch
		logging.LogError(c.logger, "cache read failed", err, slog.String("key", key))
	} else if ok {
		cache.RecordLookup(ctx, true)
		return value, nil
	}
	cache.RecordLookup(ctx, false)

	v, err, _ := c.flights.Do(key, func() (interface{}, error) {
		// The shared fetch must not die with whichever caller started it.
		fctx := context.WithoutCancel(ctx)
		result, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(fctx, c.store, key, result); err != nil {
			logging.LogError(c.logger, "cache write failed", err, slog.String("key", key))
		}
		return result, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return v.(T), nil
}
