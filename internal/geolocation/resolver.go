// Package geolocation resolves the caller position with a guaranteed
// fallback. Resolve always produces a usable coordinate: the device fix when
// one is obtained in time, the configured default otherwise.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ctanbus/ctanbus_core/internal/models"
)

// DefaultCoordinate is Seville city centre
var DefaultCoordinate = models.Coordinate{Latitude: 37.3886303, Longitude: -5.9953403}

// Permission mirrors the browser Permissions API states
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionPrompt  Permission = "prompt"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a forwarded permission state, defaulting to prompt
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	default:
		return PermissionPrompt
	}
}

// Options controls a single location fix
type Options struct {
	Timeout      time.Duration
	MaximumAge   time.Duration
	HighAccuracy bool
}

// DefaultOptions requests a fresh, high accuracy fix within five seconds
var DefaultOptions = Options{Timeout: 5 * time.Second, MaximumAge: 0, HighAccuracy: true}

// Locator is the device location capability
type Locator interface {
	Available() bool
	Permission(ctx context.Context) (Permission, error)
	CurrentPosition(ctx context.Context, opts Options) (models.Coordinate, error)
}

// State is a step of the resolution state machine
type State int

const (
	StateIdle State = iota
	StateCheckingPermission
	StateLocating
	StateResolved
	StateFallbackResolved
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateCheckingPermission:
		return "CheckingPermission"
	case StateLocating:
		return "Locating"
	case StateResolved:
		return "Resolved"
	case StateFallbackResolved:
		return "FallbackResolved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result is the outcome of a resolution. Failure is FailureNone when the
// device fix was used.
type Result struct {
	Coordinate models.Coordinate
	Fallback   bool
	Failure    Failure
}

// Resolver turns a Locator into a coordinate that is always usable
type Resolver struct {
	Default models.Coordinate
	Options Options
	Logger  *slog.Logger

	// OnTransition, when set, observes every state change
	OnTransition func(from, to State)
}

// NewResolver creates a resolver falling back to def
func NewResolver(def models.Coordinate, opts Options, logger *slog.Logger) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Default: def, Options: opts, Logger: logger}
}

// Resolve obtains a location from loc, falling back to the default
// coordinate on any failure. It never returns an error.
func (r *Resolver) Resolve(ctx context.Context, loc Locator) (res Result) {
	state := StateIdle
	hook := r.OnTransition
	move := func(to State) {
		if hook != nil {
			hook(state, to)
		}
		state = to
	}
	fallback := func(f Failure) Result {
		move(StateFallbackResolved)
		r.logger().Info("using default location",
			slog.String("failure", f.String()),
			slog.String("coordinate", r.Default.String()))
		return Result{Coordinate: r.Default, Fallback: true, Failure: f}
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger().Error("location resolution panicked", slog.Any("panic", p))
			// The hook may be what panicked
			hook = nil
			res = fallback(FailurePositionUnavailable)
		}
	}()

	if loc == nil || !loc.Available() {
		return fallback(FailureUnsupported)
	}

	move(StateCheckingPermission)
	perm, err := loc.Permission(ctx)
	if err != nil {
		r.logger().Warn("permission query failed", slog.String("error", err.Error()))
		return fallback(FailurePermissionDenied)
	}
	if perm == PermissionDenied {
		return fallback(FailurePermissionDenied)
	}

	move(StateLocating)
	c, err := r.locate(ctx, loc)
	if err != nil {
		return fallback(Classify(err))
	}
	if !c.Valid() {
		return fallback(FailurePositionUnavailable)
	}

	move(StateResolved)
	return Result{Coordinate: c}
}

// locate requests a single fix and enforces the timeout even when the
// locator ignores its context.
func (r *Resolver) locate(ctx context.Context, loc Locator) (models.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Options.Timeout)
	defer cancel()

	type fix struct {
		c   models.Coordinate
		err error
	}
	done := make(chan fix, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fix{err: &PositionError{Code: CodePositionUnavailable, Message: fmt.Sprint(p)}}
			}
		}()
		c, err := loc.CurrentPosition(ctx, r.Options)
		done <- fix{c, err}
	}()

	select {
	case f := <-done:
		if f.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Coordinate{}, &PositionError{Code: CodeTimeout, Message: f.err.Error()}
		}
		return f.c, f.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Coordinate{}, &PositionError{Code: CodeTimeout, Message: "location request timed out"}
		}
		return models.Coordinate{}, &PositionError{Code: CodePositionUnavailable, Message: ctx.Err().Error()}
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
