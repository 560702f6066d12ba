package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/metrics"
)

// TransientPolicy selects what the Engine does when a page exhausts its retries.
type TransientPolicy string

// Supported transient failure policies.
const (
	// TransientSkipEntity treats the entity as done and moves on.
	TransientSkipEntity TransientPolicy = "skip_entity"
	// TransientAbort stops the run, leaving the cursor on the failing page.
	TransientAbort TransientPolicy = "abort"
)

// EngineConfig holds pacing and pagination settings for a crawl.
type EngineConfig struct {
	PageSize        int
	PageDelay       time.Duration
	EntityDelay     time.Duration
	TransientPolicy TransientPolicy
}

// Engine drives the resumable crawl: one entity at a time, one page at a
// time, writing the cursor before every fetch.
type Engine struct {
	cfg      EngineConfig
	entities []Entity
	pages    PageFetcher
	store    ObservationStore
	tracker  ProgressTracker
	sleeper  Sleeper
	logger   *zap.Logger
}

// NewEngine wires the collaborators of a crawl.
func NewEngine(
	cfg EngineConfig,
	entities []Entity,
	pages PageFetcher,
	store ObservationStore,
	tracker ProgressTracker,
	sleeper Sleeper,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.TransientPolicy == "" {
		cfg.TransientPolicy = TransientSkipEntity
	}
	return &Engine{
		cfg:      cfg,
		entities: append([]Entity(nil), entities...),
		pages:    pages,
		store:    store,
		tracker:  tracker,
		sleeper:  sleeper,
		logger:   logger,
	}
}

// resumePoint is where a run picks up.
type resumePoint struct {
	index int
	page  int
}

// Run crawls every entity from the cursor position to the end of the catalog.
// Only persistence failures, context cancellation and the abort policy stop
// it early; network and parse problems are logged and skipped.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.NewString()}
	logger := e.logger.With(zap.String("run_id", summary.RunID))

	if len(e.entities) == 0 {
		return summary, ErrEmptyCatalog
	}
	if err := e.store.UpsertEntities(ctx, e.entities); err != nil {
		return summary, fmt.Errorf("store entities: %w", err)
	}

	start, err := e.resume(ctx, logger)
	if err != nil {
		return summary, err
	}
	logger.Info("crawl starting",
		zap.Int("entity_index", start.index),
		zap.Int("page", start.page),
		zap.Int("total_entities", len(e.entities)),
	)

	total := len(e.entities)
	for i := start.index; i < total; i++ {
		page := 1
		if i == start.index {
			page = start.page
		}
		if err := e.crawlEntity(ctx, logger, i, page, &summary); err != nil {
			metrics.ObserveRun("failed")
			return summary, err
		}
		summary.EntitiesVisited++
		if i < total-1 {
			if err := e.pause(ctx, e.cfg.EntityDelay); err != nil {
				metrics.ObserveRun("canceled")
				return summary, err
			}
		}
	}

	done := Cursor{Page: 1, EntityIndex: total, TotalEntities: total, Status: StatusCompleted}
	if err := e.tracker.WriteCursor(ctx, done); err != nil {
		return summary, fmt.Errorf("write completed cursor: %w", err)
	}
	metrics.SetCursor(total, 1)
	metrics.ObserveRun("completed")
	summary.Completed = true
	logger.Info("crawl completed",
		zap.Int("entities_visited", summary.EntitiesVisited),
		zap.Int("pages_fetched", summary.PagesFetched),
		zap.Int("observations_written", summary.ObservationsWritten),
		zap.Int("write_failures", summary.WriteFailures),
		zap.Int("rows_skipped", summary.RowsSkipped),
		zap.Int("malformed_pages", summary.MalformedPages),
		zap.Int("transient_failures", summary.TransientFailures),
	)
	return summary, nil
}

// resume reads the cursor and decides where this run starts. A missing cursor
// is initialized; a completed one restarts from the first entity.
func (e *Engine) resume(ctx context.Context, logger *zap.Logger) (resumePoint, error) {
	total := len(e.entities)
	cur, ok, err := e.tracker.ReadCursor(ctx)
	if err != nil {
		return resumePoint{}, fmt.Errorf("read cursor: %w", err)
	}
	if !ok {
		first := e.entities[0]
		initial := Cursor{
			EntityID:      first.ID,
			EntityName:    first.Name,
			Page:          1,
			EntityIndex:   0,
			TotalEntities: total,
			Status:        StatusRunning,
		}
		if err := e.tracker.WriteCursor(ctx, initial); err != nil {
			return resumePoint{}, fmt.Errorf("initialize cursor: %w", err)
		}
		logger.Info("no cursor found; starting from the first entity")
		return resumePoint{index: 0, page: 1}, nil
	}
	if cur.Status == StatusCompleted {
		logger.Info("previous crawl completed; restarting from the first entity",
			zap.Time("completed_at", cur.UpdatedAt))
		return resumePoint{index: 0, page: 1}, nil
	}

	point := resumePoint{index: cur.EntityIndex, page: cur.Page}
	if point.index < 0 {
		point.index = 0
	}
	if point.page < 1 {
		point.page = 1
	}
	if cur.EntityID != "" && (point.index >= total || e.entities[point.index].ID != cur.EntityID) {
		if idx, found := e.indexOf(cur.EntityID); found {
			logger.Warn("catalog changed; relocating cursor",
				zap.String("entity_id", cur.EntityID),
				zap.Int("from_index", point.index),
				zap.Int("to_index", idx),
			)
			point.index = idx
		} else if point.index < total {
			logger.Warn("cursor entity no longer in catalog; restarting entity at page 1",
				zap.String("entity_id", cur.EntityID),
				zap.Int("entity_index", point.index),
			)
			point.page = 1
		}
	}
	if point.index > total {
		point.index = total
	}
	logger.Info("resuming from cursor",
		zap.String("entity_id", cur.EntityID),
		zap.Int("entity_index", point.index),
		zap.Int("page", point.page),
		zap.Time("cursor_updated_at", cur.UpdatedAt),
	)
	return point, nil
}

func (e *Engine) indexOf(entityID string) (int, bool) {
	for i, ent := range e.entities {
		if ent.ID == entityID {
			return i, true
		}
	}
	return 0, false
}

// crawlEntity pages through one entity until end of data, a short page, a
// malformed page or a transient failure.
func (e *Engine) crawlEntity(
	ctx context.Context,
	logger *zap.Logger,
	index int,
	page int,
	summary *RunSummary,
) error {
	ent := e.entities[index]
	total := len(e.entities)
	logger = logger.With(zap.String("entity_id", ent.ID), zap.String("entity_name", ent.Name))
	logger.Info(fmt.Sprintf("[%d/%d] crawling entity", index+1, total), zap.Int("start_page", page))

	written := 0
	for {
		cursor := Cursor{
			EntityID:      ent.ID,
			EntityName:    ent.Name,
			Page:          page,
			EntityIndex:   index,
			TotalEntities: total,
			Status:        StatusRunning,
		}
		if err := e.tracker.WriteCursor(ctx, cursor); err != nil {
			return fmt.Errorf("write cursor for %s page %d: %w", ent.ID, page, err)
		}
		metrics.SetCursor(index, page)

		result := e.pages.FetchPage(ctx, ent.ID, page)
		if result.Kind == PageTransientFailure {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		summary.PagesFetched++
		metrics.ObservePage(result.Kind.String())

		switch result.Kind {
		case PageEndOfData:
			logger.Info("no more data; entity done", zap.Int("page", page), zap.Int("written", written))
			return nil
		case PageMalformed:
			summary.MalformedPages++
			logger.Warn("malformed page; entity done",
				zap.Int("page", page),
				zap.Int("written", written),
				zap.Error(result.Err),
			)
			return nil
		case PageTransientFailure:
			summary.TransientFailures++
			if e.cfg.TransientPolicy == TransientAbort {
				return fmt.Errorf("%w: entity %s page %d after %d attempts: %w",
					ErrTransientAbort, ent.ID, page, result.Attempts, result.Err)
			}
			logger.Warn("page fetch exhausted retries; entity done",
				zap.Int("page", page),
				zap.Int("attempts", result.Attempts),
				zap.Int("written", written),
				zap.Error(result.Err),
			)
			return nil
		case PageRecords:
		default:
			return fmt.Errorf("unexpected page result %v for %s page %d", result.Kind, ent.ID, page)
		}

		upsert, err := e.store.Upsert(ctx, ent.ID, result.Observations)
		if err != nil {
			return fmt.Errorf("store %s page %d: %w", ent.ID, page, err)
		}
		written += upsert.Written
		summary.ObservationsWritten += upsert.Written
		summary.WriteFailures += upsert.Failed
		summary.RowsSkipped += result.Skipped
		metrics.ObserveObservations(upsert.Written, upsert.Failed)
		logger.Info("page stored",
			zap.Int("page", page),
			zap.Int("rows", result.Rows()),
			zap.Int("written", upsert.Written),
			zap.Int("failed", upsert.Failed),
			zap.Int("skipped", result.Skipped),
			zap.Int("total_records", result.TotalRecords),
			zap.Int("total_pages", result.TotalPages),
		)

		if result.Rows() < e.cfg.PageSize {
			logger.Info("short page; entity done", zap.Int("page", page), zap.Int("written", written))
			return nil
		}
		page++
		if err := e.pause(ctx, e.cfg.PageDelay); err != nil {
			return err
		}
	}
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	if e.sleeper == nil || d <= 0 {
		return ctx.Err()
	}
	if err := e.sleeper.Sleep(ctx, d); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	return nil
}
