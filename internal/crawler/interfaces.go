package crawler

import (
	"context"
	"time"
)

// Fetcher performs one network attempt for an upstream page. Non-success
// statuses are reported as *StatusError.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Parser turns a raw payload into observations. It returns ErrNoData for the
// upstream's explicit empty marker and an error wrapping ErrMalformedPayload
// when the payload does not match the expected structure.
type Parser interface {
	Parse(payload []byte) (ParsedPage, error)
}

// PageFetcher fetches, retries and classifies a single page.
type PageFetcher interface {
	FetchPage(ctx context.Context, entityID string, page int) PageResult
}

// RetryPolicy decides whether and when a failed attempt is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ObservationStore persists observations keyed by (entity, date).
type ObservationStore interface {
	// UpsertEntities inserts or replaces catalog rows.
	UpsertEntities(ctx context.Context, entities []Entity) error
	// Upsert writes each observation independently; a returned error means
	// the store itself is unavailable.
	Upsert(ctx context.Context, entityID string, observations []Observation) (UpsertResult, error)
	Exists(ctx context.Context, entityID, date string) (bool, error)
	// Count returns the number of rows for entityID, or for all entities when
	// entityID is empty.
	Count(ctx context.Context, entityID string) (int64, error)
	// LatestDate returns the most recent stored date for entityID.
	LatestDate(ctx context.Context, entityID string) (string, bool, error)
}

// ProgressTracker persists the single authoritative crawl cursor.
type ProgressTracker interface {
	ReadCursor(ctx context.Context) (Cursor, bool, error)
	WriteCursor(ctx context.Context, cursor Cursor) error
	Reset(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper pauses between requests. Sleep returns early with ctx.Err() when
// the context finishes.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
