package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

type fakeTracker struct {
	cursor crawler.Cursor
	ok     bool
	err    error
}

func (f *fakeTracker) ReadCursor(context.Context) (crawler.Cursor, bool, error) {
	return f.cursor, f.ok, f.err
}

func (f *fakeTracker) WriteCursor(_ context.Context, c crawler.Cursor) error {
	f.cursor, f.ok = c, true
	return nil
}

func (f *fakeTracker) Reset(context.Context) error {
	f.cursor, f.ok = crawler.Cursor{}, false
	return nil
}

type fakeStore struct {
	counts map[string]int64
	latest map[string]string
	err    error
}

func (f *fakeStore) UpsertEntities(context.Context, []crawler.Entity) error { return nil }

func (f *fakeStore) Upsert(context.Context, string, []crawler.Observation) (crawler.UpsertResult, error) {
	return crawler.UpsertResult{}, nil
}

func (f *fakeStore) Exists(context.Context, string, string) (bool, error) { return false, nil }

func (f *fakeStore) Count(_ context.Context, entityID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if entityID == "" {
		var n int64
		for _, c := range f.counts {
			n += c
		}
		return n, nil
	}
	return f.counts[entityID], nil
}

func (f *fakeStore) LatestDate(_ context.Context, entityID string) (string, bool, error) {
	d, ok := f.latest[entityID]
	return d, ok, nil
}

var testEntities = []crawler.Entity{
	{ID: "562500", Name: "华夏中证机器人ETF"},
	{ID: "159530", Name: "易方达国证机器人产业ETF"},
}

func TestGetProgressNotStarted(t *testing.T) {
	t.Parallel()

	h := NewProgressHandler(&fakeTracker{}, &fakeStore{}, testEntities, zap.NewNop())
	rec := httptest.NewRecorder()
	h.GetProgress(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body progressDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Started)
	require.Nil(t, body.Cursor)
}

func TestGetProgressRunning(t *testing.T) {
	t.Parallel()

	tracker := &fakeTracker{ok: true, cursor: crawler.Cursor{
		EntityID: "159530", Page: 3, EntityIndex: 1, TotalEntities: 2, Status: crawler.StatusRunning,
	}}
	h := NewProgressHandler(tracker, &fakeStore{}, testEntities, nil)
	rec := httptest.NewRecorder()
	h.GetProgress(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body progressDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Started)
	require.Equal(t, 3, body.Cursor.Page)
	require.InDelta(t, 50.0, body.Percent, 1e-9)
}

func TestGetProgressErrors(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewProgressHandler(&fakeTracker{err: errors.New("locked")}, nil, nil, nil).
		GetProgress(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	NewProgressHandler(nil, nil, nil, nil).GetProgress(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListEntities(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		counts: map[string]int64{"562500": 120},
		latest: map[string]string{"562500": "2025-06-30"},
	}
	h := NewProgressHandler(&fakeTracker{}, store, testEntities, nil)
	rec := httptest.NewRecorder()
	h.ListEntities(rec, httptest.NewRequest(http.MethodGet, "/v1/entities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var report crawler.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Entities, 2)
	require.EqualValues(t, 120, report.Entities[0].Observations)
	require.Equal(t, "2025-06-30", report.Entities[0].LatestDate)
	require.EqualValues(t, 120, report.TotalObservations)

	rec = httptest.NewRecorder()
	NewProgressHandler(&fakeTracker{}, &fakeStore{err: errors.New("gone")}, testEntities, nil).
		ListEntities(rec, httptest.NewRequest(http.MethodGet, "/v1/entities", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetEntity(t *testing.T) {
	t.Parallel()

	store := &fakeStore{counts: map[string]int64{"159530": 7}, latest: map[string]string{"159530": "2025-01-02"}}
	h := NewProgressHandler(&fakeTracker{}, store, testEntities, nil)

	rec := httptest.NewRecorder()
	h.GetEntity(rec, withEntityIDParam(httptest.NewRequest(http.MethodGet, "/v1/entities/159530", nil), "159530"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"observations":7`)

	rec = httptest.NewRecorder()
	h.GetEntity(rec, withEntityIDParam(httptest.NewRequest(http.MethodGet, "/v1/entities/000000", nil), "000000"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPercentDone(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 100.0, percentDone(crawler.Cursor{Status: crawler.StatusCompleted}), 1e-9)
	require.Zero(t, percentDone(crawler.Cursor{Status: crawler.StatusRunning}))
	require.InDelta(t, 25.0, percentDone(crawler.Cursor{EntityIndex: 3, TotalEntities: 12, Status: crawler.StatusRunning}), 1e-9)
}

func withEntityIDParam(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("entity_id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
