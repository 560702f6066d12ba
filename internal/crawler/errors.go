package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData signals the upstream's explicit "no more records" marker.
	ErrNoData = errors.New("no data")
	// ErrMalformedPayload signals a payload that does not match the expected structure.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidObservation rejects observations without a usable key.
	ErrInvalidObservation = errors.New("invalid observation")
	// ErrTransientAbort is returned by Engine.Run when the abort policy is
	// active and a page exhausted its retries.
	ErrTransientAbort = errors.New("transient fetch failure")
	// ErrEmptyCatalog is returned when the engine has no entities to crawl.
	ErrEmptyCatalog = errors.New("entity catalog is empty")
)

// StatusError reports a non-success HTTP status from the upstream.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}
