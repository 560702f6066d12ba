package crawler

import (
	"context"
	"fmt"
)

// EntityReport summarizes stored data for one catalog entity.
type EntityReport struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Observations int64  `json:"observations"`
	LatestDate   string `json:"latest_date,omitempty"`
}

// Report is the operator view of crawl progress and stored data.
type Report struct {
	// Cursor is nil when no crawl has started since the last reset.
	Cursor            *Cursor        `json:"cursor"`
	Entities          []EntityReport `json:"entities"`
	TotalObservations int64          `json:"total_observations"`
}

// BuildReport reads the cursor and per-entity row counts in catalog order.
func BuildReport(
	ctx context.Context,
	tracker ProgressTracker,
	store ObservationStore,
	entities []Entity,
) (Report, error) {
	var report Report
	cur, ok, err := tracker.ReadCursor(ctx)
	if err != nil {
		return report, fmt.Errorf("read cursor: %w", err)
	}
	if ok {
		report.Cursor = &cur
	}
	report.Entities = make([]EntityReport, 0, len(entities))
	for _, ent := range entities {
		n, err := store.Count(ctx, ent.ID)
		if err != nil {
			return report, fmt.Errorf("count %s: %w", ent.ID, err)
		}
		latest, _, err := store.LatestDate(ctx, ent.ID)
		if err != nil {
			return report, fmt.Errorf("latest date %s: %w", ent.ID, err)
		}
		report.Entities = append(report.Entities, EntityReport{
			ID:           ent.ID,
			Name:         ent.Name,
			Observations: n,
			LatestDate:   latest,
		})
	}
	total, err := store.Count(ctx, "")
	if err != nil {
		return report, fmt.Errorf("count observations: %w", err)
	}
	report.TotalObservations = total
	return report, nil
}
