package crawler

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar layout for observation dates.
const DateLayout = "2006-01-02"

// Entity is a tracked fund taken from the catalog. It is reference data and is
// never mutated by a crawl.
type Entity struct {
	ID       string `json:"id" yaml:"code" db:"entity_id"`
	Name     string `json:"name" yaml:"name" db:"name"`
	Issuer   string `json:"issuer,omitempty" yaml:"issuer" db:"issuer"`
	Manager  string `json:"manager,omitempty" yaml:"manager" db:"manager"`
	Category string `json:"category,omitempty" yaml:"category" db:"category"`
	Theme    string `json:"theme,omitempty" yaml:"theme" db:"theme"`
}

// Observation is one dated NAV record for an entity. The numeric fields are
// independently nullable because upstream omits them on some dates.
type Observation struct {
	EntityID   string   `json:"entity_id" db:"entity_id"`
	Date       string   `json:"date" db:"obs_date"`
	Value      *float64 `json:"value" db:"value"`
	Cumulative *float64 `json:"cumulative" db:"cumulative"`
	Change     *float64 `json:"change" db:"change_pct"`
}

// Validate reports whether the observation has a usable (entity, date) key.
func (o Observation) Validate() error {
	if o.EntityID == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidObservation)
	}
	if _, err := time.Parse(DateLayout, o.Date); err != nil {
		return fmt.Errorf("%w: date %q is not %s", ErrInvalidObservation, o.Date, DateLayout)
	}
	return nil
}

// RunStatus is the lifecycle state recorded on the progress cursor.
type RunStatus string

// Cursor statuses persisted in progress.status.
const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
)

// Cursor is the durable pointer to the next unit of work.
type Cursor struct {
	// EntityID and EntityName identify the entity being crawled; both are
	// empty on a completed cursor.
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	// Page is 1-based.
	Page int `json:"page"`
	// EntityIndex is 0-based into the ordered catalog.
	EntityIndex   int       `json:"entity_index"`
	TotalEntities int       `json:"total_entities"`
	Status        RunStatus `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PageKind classifies the outcome of fetching one page.
type PageKind int

// Page outcomes produced by a PageFetcher.
const (
	PageRecords PageKind = iota + 1
	PageEndOfData
	PageMalformed
	PageTransientFailure
)

func (k PageKind) String() string {
	switch k {
	case PageRecords:
		return "records"
	case PageEndOfData:
		return "end_of_data"
	case PageMalformed:
		return "malformed"
	case PageTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// PageResult is the typed outcome of PageFetcher.FetchPage.
type PageResult struct {
	Kind         PageKind
	Observations []Observation
	// Skipped counts rows the parser saw but could not key (bad date).
	Skipped int
	// TotalRecords and TotalPages are the upstream-reported totals, or -1
	// when unknown.
	TotalRecords int
	TotalPages   int
	// Attempts counts network attempts, including retries.
	Attempts int
	// Err carries the last error for malformed and transient outcomes.
	Err error
}

// Rows is the number of rows upstream returned on the page, used for the
// full-page check.
func (r PageResult) Rows() int {
	return len(r.Observations) + r.Skipped
}

// ParsedPage is what a Parser extracts from one payload.
type ParsedPage struct {
	Observations []Observation
	Skipped      int
	TotalRecords int
	TotalPages   int
}

// FetchRequest identifies one upstream page.
type FetchRequest struct {
	EntityID string
	Page     int
	PageSize int
}

// FetchResponse is the raw payload returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// UpsertResult reports the outcome of an ObservationStore.Upsert batch.
type UpsertResult struct {
	Written int
	Failed  int
}

// RunSummary is the operator-facing tally of one Engine.Run.
type RunSummary struct {
	RunID               string `json:"run_id"`
	EntitiesVisited     int    `json:"entities_visited"`
	PagesFetched        int    `json:"pages_fetched"`
	ObservationsWritten int    `json:"observations_written"`
	WriteFailures       int    `json:"write_failures"`
	RowsSkipped         int    `json:"rows_skipped"`
	MalformedPages      int    `json:"malformed_pages"`
	TransientFailures   int    `json:"transient_failures"`
	Completed           bool   `json:"completed"`
}
