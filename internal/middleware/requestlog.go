package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/cache"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/gofiber/fiber/v2"
)

// RequestLog holds information about an API request for logging
type RequestLog struct {
	Endpoint       string
	Method         string
	Query          string
	ResponseTimeMs int64
	ResponseStatus int
	CacheHit       bool
	IPAddress      string
	UserAgent      string
}

// LogValue renders the entry as a structured log group
func (r RequestLog) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", r.Endpoint),
		slog.String("method", r.Method),
		slog.String("query", r.Query),
		slog.Int64("response_time_ms", r.ResponseTimeMs),
		slog.Int("status", r.ResponseStatus),
		slog.Bool("cache_hit", r.CacheHit),
		slog.String("ip", r.IPAddress),
		slog.String("user_agent", r.UserAgent),
	)
}

// RequestLogger logs every API request and tags the response with its
// latency and whether it was served entirely from the response cache.
// Handlers must pass c.UserContext() to cached lookups for hits to count.
func RequestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		ctx, rec := cache.WithHitRecorder(c.UserContext())
		c.SetUserContext(logging.WithLogger(ctx, logger))

		err := c.Next()
		if err != nil {
			// Run the error handler now so the logged status is the one sent
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			err = nil
		}

		responseTime := time.Since(start)
		cacheHit := rec.Hit()
		c.Locals("cache_hit", cacheHit)

		entry := RequestLog{
			Endpoint:       c.Path(),
			Method:         c.Method(),
			Query:          string(c.Request().URI().QueryString()),
			ResponseTimeMs: responseTime.Milliseconds(),
			ResponseStatus: c.Response().StatusCode(),
			CacheHit:       cacheHit,
			IPAddress:      c.IP(),
			UserAgent:      c.Get(fiber.HeaderUserAgent),
		}

		level := slog.LevelInfo
		if entry.ResponseStatus >= fiber.StatusInternalServerError {
			level = slog.LevelError
		} else if entry.ResponseStatus >= fiber.StatusBadRequest {
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.UserContext(), level, "request", slog.Any("request", entry))

		// Custom response headers for debugging
		c.Set("X-Response-Time", responseTime.String())
		c.Set("X-Cache-Hit", strconv.FormatBool(cacheHit))

		return err
	}
}
