package fetch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/contracts"
)

var (
	// ErrUnavailable means every provider in the chain failed
	ErrUnavailable = errors.New("all providers unavailable")

	// ErrNoData means the provider answered successfully with nothing in it.
	// It falls through to the next provider but is not counted as a failure.
	ErrNoData = errors.New("provider returned no data")

	// ErrMalformed means the provider answered with a payload that could not be normalized
	ErrMalformed = errors.New("malformed provider payload")
)

// Attempt records one provider call inside a chain
type Attempt struct {
	Provider string            `json:"provider"`
	Tag      contracts.DataTag `json:"tag"`
	Err      string            `json:"error,omitempty"`
	Empty    bool              `json:"empty,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// UnavailableError carries the full provider trail of a failed fetch
type UnavailableError struct {
	Fetcher  string
	Key      string
	Attempts []Attempt
	Cause    error // set when the caller's context ended the chain
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Provider, a.Err))
	}
	msg := fmt.Sprintf("%s[%s]: %s", e.Fetcher, e.Key, ErrUnavailable)
	if len(parts) > 0 {
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches ErrUnavailable
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// Unwrap exposes the context error, if any
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// AllEmpty reports whether every provider answered with no data
func (e *UnavailableError) AllEmpty() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !a.Empty {
			return false
		}
	}
	return true
}
