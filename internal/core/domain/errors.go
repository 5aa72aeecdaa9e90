package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailure marks any transport, status or payload error of a POI query.
	ErrFetchFailure = errors.New("poi fetch failed")
	// ErrInvalidGeometry marks a POI without usable coordinates.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrLocationFailure marks a denied, timed out or unavailable position request.
	ErrLocationFailure = errors.New("location unavailable")
	// ErrStaleResult marks a fetch result superseded by a newer request.
	ErrStaleResult = errors.New("stale result")
)

// FetchError carries the details of a failed POI query.
type FetchError struct {
	Op     string // "request", "status", "decode", "payload", "query"
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %v", ErrFetchFailure, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrFetchFailure, e.Op, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailure}
	}
	return []error{ErrFetchFailure, e.Err}
}

// LocationError carries the reason a position request failed.
type LocationError struct {
	Reason string // "denied", "timeout", "unavailable"
	Err    error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrLocationFailure, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrLocationFailure, e.Reason)
}

func (e *LocationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLocationFailure}
	}
	return []error{ErrLocationFailure, e.Err}
}
