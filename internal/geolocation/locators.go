package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/models"
)

// StaticLocator reports a fixed position, or a fixed error
type StaticLocator struct {
	Coordinate  models.Coordinate
	Perm        Permission
	Err         error
	Unsupported bool
}

func (s StaticLocator) Available() bool {
	return !s.Unsupported
}

func (s StaticLocator) Permission(context.Context) (Permission, error) {
	if s.Perm == "" {
		return PermissionGranted, nil
	}
	return s.Perm, nil
}

func (s StaticLocator) CurrentPosition(context.Context, Options) (models.Coordinate, error) {
	if s.Err != nil {
		return models.Coordinate{}, s.Err
	}
	return s.Coordinate, nil
}

// DefaultIPLookupURL is the ip-api.com JSON endpoint
const DefaultIPLookupURL = "http://ip-api.com/json/"

// IPLocator approximates a caller position from its IP address. The
// permission state is the one forwarded by the browser, so a user who denied
// location access is not located by IP either.
type IPLocator struct {
	Endpoint   string
	IP         string
	Perm       Permission
	HTTPClient *http.Client
}

// NewIPLocator creates an IP based locator for ip
func NewIPLocator(endpoint, ip string, perm Permission) *IPLocator {
	if endpoint == "" {
		endpoint = DefaultIPLookupURL
	}
	return &IPLocator{
		Endpoint:   endpoint,
		IP:         ip,
		Perm:       perm,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (l *IPLocator) Available() bool {
	return l.Endpoint != ""
}

func (l *IPLocator) Permission(context.Context) (Permission, error) {
	if l.Perm == "" {
		return PermissionPrompt, nil
	}
	return l.Perm, nil
}

func (l *IPLocator) CurrentPosition(ctx context.Context, _ Options) (models.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint+l.IP+"?fields=status,message,lat,lon", nil)
	if err != nil {
		return models.Coordinate{}, err
	}

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return models.Coordinate{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, &PositionError{Code: CodePositionUnavailable, Message: fmt.Sprintf("ip lookup status %d", resp.StatusCode)}
	}

	var obj struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return models.Coordinate{}, &PositionError{Code: CodePositionUnavailable, Message: err.Error()}
	}
	if obj.Status != "success" {
		return models.Coordinate{}, &PositionError{Code: CodePositionUnavailable, Message: obj.Message}
	}

	return models.Coordinate{Latitude: obj.Lat, Longitude: obj.Lon}, nil
}
