package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/ctanbus/ctanbus_core/internal/models"
)

// DefaultURL is the public Nominatim reverse geocoding endpoint
const DefaultURL = "https://nominatim.openstreetmap.org/reverse"

// Nominatim resolves coordinates to a display address
type Nominatim struct {
	url        string
	userAgent  string
	httpClient *http.Client
	store      cache.Store
	logger     *slog.Logger
}

// NewNominatim creates a reverse geocoder. store may be nil to disable caching.
func NewNominatim(endpoint, userAgent string, store cache.Store, logger *slog.Logger) *Nominatim {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Nominatim{
		url:        endpoint,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		store:      store,
		logger:     logger,
	}
}

// Address returns the display address for c. Lookup failures are logged and
// produce an empty address.
func (n *Nominatim) Address(ctx context.Context, c models.Coordinate) string {
	key := cache.AddressKey(c)
	if n.store != nil {
		if addr, ok, err := cache.GetJSON[string](ctx, n.store, key); err == nil && ok {
			return addr
		}
	}

	addr, err := n.lookup(ctx, c)
	if err != nil {
		logging.LogError(n.logger, "reverse geocoding failed", err,
			slog.String("coordinate", c.String()))
		return ""
	}

	if n.store != nil && addr != "" {
		if err := cache.SetJSON(ctx, n.store, key, addr); err != nil {
			logging.LogError(n.logger, "cache write failed", err, slog.String("key", key))
		}
	}
	return addr
}

func (n *Nominatim) lookup(ctx context.Context, c models.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.url+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		// Nominatim's usage policy requires an identifying agent
		req.Header.Set("User-Agent", n.userAgent)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var obj struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return "", fmt.Errorf("decode nominatim response: %w", err)
	}

	return obj.DisplayName, nil
}
