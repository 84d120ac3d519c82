package ctan

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable covers transport failures and non-2xx responses
	ErrUpstreamUnavailable = errors.New("transit provider unavailable")

	// ErrUpstreamFormat means the provider answered but the payload did not
	// have the expected shape
	ErrUpstreamFormat = errors.New("unexpected transit provider response")
)

// UpstreamError describes a failed provider call. It matches either
// ErrUpstreamUnavailable or ErrUpstreamFormat with errors.Is.
type UpstreamError struct {
	Op     string
	URL    string
	Status int
	Kind   error
	Err    error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("ctan: %s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unavailable(op, url string, status int, err error) error {
	return &UpstreamError{Op: op, URL: url, Status: status, Kind: ErrUpstreamUnavailable, Err: err}
}

func malformed(op, url string, err error) error {
	return &UpstreamError{Op: op, URL: url, Kind: ErrUpstreamFormat, Err: err}
}
