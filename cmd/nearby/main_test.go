package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/ctan"
	"github.com/ctanbus/ctanbus_core/internal/geolocation"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/ctanbus/ctanbus_core/internal/models"
	"github.com/ctanbus/ctanbus_core/internal/nearby"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *nearby.Service {
	t.Helper()
	routes := map[string]string{
		"/Consorcios/1/paradas": `{"paradas": [
			{"idParada": "101", "nombre": "Prado de San Sebastián", "latitud": 37.38, "longitud": -5.987, "municipio": "Sevilla", "distancia": 420},
			{"idParada": "102", "nombre": "Puerta Jerez", "latitud": 37.382, "longitud": -5.993, "municipio": "Sevilla", "distancia": 80}
		]}`,
		"/Consorcios/1/paradas/lineasPorParadas/101": `[{"idLinea": "15", "codigo": "M-111", "nombre": "Sevilla - Mairena"}]`,
		"/Consorcios/1/lineas/15/paradas":            `{"paradas": [{"idParada": "101", "nombre": "Prado de San Sebastián", "latitud": 37.38, "longitud": -5.987, "orden": 1}]}`,
		"/Consorcios/1/lineas/15":                    `{"polilinea": [["37.38,-5.987"], ["37.37,-5.98"]]}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	logger := logging.Discard()
	client := ctan.NewClient(ctan.Config{BaseURL: server.URL, Timeout: time.Second}, cache.NewMemory(time.Hour), ctan.WithLogger(logger))
	resolver := geolocation.NewResolver(geolocation.DefaultCoordinate, geolocation.Options{Timeout: time.Second}, logger)
	return nearby.NewService(client, nil, resolver, 500, logger)
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	locator := geolocation.StaticLocator{Coordinate: models.Coordinate{Latitude: 37.3886, Longitude: -5.9953}}

	err := run(context.Background(), &out, newTestService(t), locator, "", 10, "101", "15")
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Location: 37.388600,-5.995300\n")
	assert.Contains(t, text, "80m")
	assert.Contains(t, text, "420m")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("Puerta Jerez")), bytes.Index(out.Bytes(), []byte("Prado")))
	assert.Contains(t, text, "Lines serving stop 101 Prado de San Sebastián")
	assert.Contains(t, text, "M-111")
	assert.Contains(t, text, "#1")
	assert.Contains(t, text, "Route: 2 points")
}

func TestRunFallback(t *testing.T) {
	var out bytes.Buffer

	err := run(context.Background(), &out, newTestService(t), nil, "jerez", 10, "", "")
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "(default: ")
	assert.Contains(t, text, "Puerta Jerez")
	assert.NotContains(t, text, "Prado")
}

func TestRunLineFailure(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), &out, newTestService(t), nil, "", 10, "", "404")
	assert.ErrorIs(t, err, ctan.ErrUpstreamUnavailable)
}
