package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(buf *bytes.Buffer) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(RequestLogger(logging.New(buf, logging.ParseLevel("debug"), "json")))

	store := cache.NewMemory(cache.DefaultTTL)
	_ = store.Set(context.Background(), "warm", []byte(`1`))

	lookup := func(key string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			_, ok, err := store.Get(c.UserContext(), key)
			if err != nil {
				return err
			}
			cache.RecordLookup(c.UserContext(), ok)
			return c.SendString("ok")
		}
	}
	app.Get("/warm", lookup("warm"))
	app.Get("/cold", lookup("cold"))
	app.Get("/plain", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("upstream down") })
	return app
}

func lastLog(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry["request"].(map[string]interface{})
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		status   int
		cacheHit string
	}{
		{"Cache hit", "/warm", 200, "true"},
		{"Cache miss", "/cold", 200, "false"},
		{"No lookup", "/plain", 200, "false"},
		{"Handler error", "/fail", 502, "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			app := newApp(&buf)

			resp, err := app.Test(httptest.NewRequest("GET", tt.path+"?lat=37.1", nil))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.cacheHit, resp.Header.Get("X-Cache-Hit"))
			assert.NotEmpty(t, resp.Header.Get("X-Response-Time"))

			entry := lastLog(t, &buf)
			assert.Equal(t, tt.path, entry["endpoint"])
			assert.Equal(t, "GET", entry["method"])
			assert.Equal(t, "lat=37.1", entry["query"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}
