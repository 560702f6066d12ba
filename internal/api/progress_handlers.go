package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

const progressTimeout = 3 * time.Second

// ProgressHandler exposes read-only crawl progress endpoints.
type ProgressHandler struct {
	tracker  crawler.ProgressTracker
	store    crawler.ObservationStore
	entities []crawler.Entity
	timeout  time.Duration
	logger   *zap.Logger
}

// NewProgressHandler wires the tracker, store and catalog.
func NewProgressHandler(
	tracker crawler.ProgressTracker,
	store crawler.ObservationStore,
	entities []crawler.Entity,
	logger *zap.Logger,
) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		tracker:  tracker,
		store:    store,
		entities: entities,
		timeout:  progressTimeout,
		logger:   logger,
	}
}

type progressDTO struct {
	Started bool            `json:"started"`
	Cursor  *crawler.Cursor `json:"cursor,omitempty"`
	// Percent is the share of the catalog already finished.
	Percent float64 `json:"percent"`
}

// GetProgress handles GET /v1/progress. It returns the persisted cursor, 503
// when no tracker is configured, or 500 when the read fails.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracker unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cur, ok, err := h.tracker.ReadCursor(ctx)
	if err != nil {
		h.logger.Error("read cursor failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read progress")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, progressDTO{})
		return
	}
	writeJSON(w, http.StatusOK, progressDTO{Started: true, Cursor: &cur, Percent: percentDone(cur)})
}

// ListEntities handles GET /v1/entities with stored row counts per entity.
func (h *ProgressHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	if h.tracker == nil || h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report, err := crawler.BuildReport(ctx, h.tracker, h.store, h.entities)
	if err != nil {
		h.logger.Error("build report failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetEntity handles GET /v1/entities/{entity_id}; unknown ids return 404.
func (h *ProgressHandler) GetEntity(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	entityID := chi.URLParam(r, "entity_id")
	var ent *crawler.Entity
	for i := range h.entities {
		if h.entities[i].ID == entityID {
			ent = &h.entities[i]
			break
		}
	}
	if ent == nil {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	n, err := h.store.Count(ctx, ent.ID)
	if err != nil {
		h.logger.Error("count observations failed", zap.String("entity_id", ent.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read entity")
		return
	}
	latest, _, err := h.store.LatestDate(ctx, ent.ID)
	if err != nil {
		h.logger.Error("latest date failed", zap.String("entity_id", ent.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read entity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity": ent,
		"report": crawler.EntityReport{ID: ent.ID, Name: ent.Name, Observations: n, LatestDate: latest},
	})
}

func percentDone(cur crawler.Cursor) float64 {
	if cur.Status == crawler.StatusCompleted {
		return 100
	}
	if cur.TotalEntities <= 0 {
		return 0
	}
	return float64(cur.EntityIndex) / float64(cur.TotalEntities) * 100
}
