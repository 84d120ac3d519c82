package geolocation

import (
	"context"
	"errors"
	"fmt"
)

// Failure classifies why the device location could not be used
type Failure int

const (
	FailureNone Failure = iota
	FailureUnsupported
	FailurePermissionDenied
	FailurePositionUnavailable
	FailureTimeout
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return ""
	case FailureUnsupported:
		return "Unsupported"
	case FailurePermissionDenied:
		return "PermissionDenied"
	case FailurePositionUnavailable:
		return "PositionUnavailable"
	case FailureTimeout:
		return "Timeout"
	}
	return fmt.Sprintf("Failure(%d)", int(f))
}

// MarshalText encodes the failure by name
func (f Failure) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Message is the notification shown to the user for this failure
func (f Failure) Message() string {
	switch f {
	case FailureNone:
		return ""
	case FailurePermissionDenied:
		return "Necesitamos acceso a tu ubicación para mostrar las paradas más cercanas."
	case FailurePositionUnavailable:
		return "No se pudo determinar tu ubicación. Verifica tu conexión GPS."
	case FailureTimeout:
		return "Se agotó el tiempo para obtener tu ubicación."
	default:
		return "No se pudo obtener tu ubicación. Usando ubicación predeterminada."
	}
}

// Retryable reports whether the user can be offered a re-prompt action
func (f Failure) Retryable() bool {
	return f == FailurePermissionDenied
}

// W3C GeolocationPositionError codes
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// ErrUnsupported is returned by locators with no location capability
var ErrUnsupported = errors.New("geolocation is not supported")

// PositionError is a failed location fix
type PositionError struct {
	Code    int
	Message string
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("geolocation error %d: %s", e.Code, e.Message)
}

// Classify maps a locator error onto a Failure
func Classify(err error) Failure {
	var pe *PositionError
	switch {
	case err == nil:
		return FailureNone
	case errors.As(err, &pe):
		switch pe.Code {
		case CodePermissionDenied:
			return FailurePermissionDenied
		case CodeTimeout:
			return FailureTimeout
		default:
			return FailurePositionUnavailable
		}
	case errors.Is(err, ErrUnsupported):
		return FailureUnsupported
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailurePositionUnavailable
	}
}
