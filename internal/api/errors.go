package api

import (
	"errors"
	"log/slog"

	"github.com/ctanbus/ctanbus_core/internal/ctan"
	"github.com/ctanbus/ctanbus_core/internal/logging"
	"github.com/gofiber/fiber/v2"
)

// ValidationError is a missing or malformed request parameter
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(param, message string) error {
	return &ValidationError{Param: param, Message: message}
}

// upstreamFailure tags an upstream error with the user facing message of
// the resource that could not be fetched
type upstreamFailure struct {
	message string
	err     error
}

func (e *upstreamFailure) Error() string { return e.message + ": " + e.err.Error() }
func (e *upstreamFailure) Unwrap() error { return e.err }

func failedTo(message string, err error) error {
	return &upstreamFailure{message: message, err: err}
}

// ErrorHandler maps handler errors onto JSON responses. Validation errors
// become 400s, upstream failures 500s with a generic message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var (
			verr *ValidationError
			ferr *fiber.Error
			uerr *upstreamFailure
			cerr *ctan.UpstreamError
		)
		errors.As(err, &cerr)

		switch {
		case errors.As(err, &verr):
			code = fiber.StatusBadRequest
			message = verr.Message
			logger.Debug("rejected request", slog.String("param", verr.Param), slog.String("error", verr.Message))
		case errors.As(err, &ferr):
			code = ferr.Code
			message = ferr.Message
		case errors.Is(err, ctan.ErrUpstreamFormat):
			if errors.As(err, &uerr) {
				message = uerr.message
			}
			logging.LogError(logger, "unexpected data format from CTAN API", err, upstreamAttrs(cerr)...)
		case errors.Is(err, ctan.ErrUpstreamUnavailable):
			if errors.As(err, &uerr) {
				message = uerr.message
			}
			logging.LogError(logger, "CTAN API request failed", err, upstreamAttrs(cerr)...)
		default:
			logging.LogError(logger, "unhandled error", err, slog.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}

func upstreamAttrs(err *ctan.UpstreamError) []slog.Attr {
	if err == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("op", err.Op),
		slog.String("url", err.URL),
		slog.Int("status", err.Status),
	}
}
