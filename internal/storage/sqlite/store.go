// Package sqlite persists observations and the crawl cursor in a local
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/clock/system"
	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

// Store implements crawler.ObservationStore and crawler.ProgressTracker.
type Store struct {
	db     *sqlx.DB
	clock  crawler.Clock
	logger *zap.Logger
}

type observationRow struct {
	crawler.Observation
	UpdatedAt time.Time `db:"updated_at"`
}

type entityRow struct {
	crawler.Entity
	UpdatedAt time.Time `db:"updated_at"`
}

type cursorRow struct {
	EntityID      string    `db:"entity_id"`
	EntityName    string    `db:"entity_name"`
	Page          int       `db:"page"`
	EntityIndex   int       `db:"entity_index"`
	TotalEntities int       `db:"total_entities"`
	Status        string    `db:"status"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Open connects to the database file at path and applies the schema.
// ":memory:" yields a private in-memory database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store.sqlite_path is required")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One writer; keeps :memory: databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := New(db, system.New(), logger)
	if err := s.Migrate(ctx); err != nil {
		if cerr := db.Close(); cerr != nil {
			s.logger.Error("failed to close sqlite after migration error", zap.Error(cerr))
		}
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection without touching the schema.
func New(db *sqlx.DB, clock crawler.Clock, logger *zap.Logger) *Store {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, clock: clock, logger: logger}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite: %w", err)
	}
	return nil
}

// UpsertEntities refreshes the entities table from the catalog.
func (s *Store) UpsertEntities(ctx context.Context, entities []crawler.Entity) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin entity upsert: %w", err)
	}
	now := s.clock.Now()
	for _, ent := range entities {
		if _, err := tx.NamedExecContext(ctx, upsertEntitySQL, entityRow{Entity: ent, UpdatedAt: now}); err != nil {
			rollback(tx, s.logger)
			return fmt.Errorf("failed to upsert entity %s: %w", ent.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entities: %w", err)
	}
	return nil
}

// Upsert writes observations for entityID inside one transaction. Rows the
// database rejects are counted as failed; only an unusable connection returns
// an error.
func (s *Store) Upsert(
	ctx context.Context,
	entityID string,
	observations []crawler.Observation,
) (crawler.UpsertResult, error) {
	var result crawler.UpsertResult
	if len(observations) == 0 {
		return result, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin observation upsert: %w", err)
	}
	now := s.clock.Now()
	for _, obs := range observations {
		obs.EntityID = entityID
		if err := obs.Validate(); err != nil {
			result.Failed++
			s.logger.Warn("skipping observation", zap.String("entity_id", entityID), zap.Error(err))
			continue
		}
		if _, err := tx.NamedExecContext(ctx, upsertObservationSQL, observationRow{Observation: obs, UpdatedAt: now}); err != nil {
			if !rowLevel(err) {
				rollback(tx, s.logger)
				return crawler.UpsertResult{}, fmt.Errorf("failed to upsert observation %s %s: %w", entityID, obs.Date, err)
			}
			result.Failed++
			s.logger.Warn("observation rejected",
				zap.String("entity_id", entityID),
				zap.String("date", obs.Date),
				zap.Error(err),
			)
			continue
		}
		result.Written++
	}
	if err := tx.Commit(); err != nil {
		return crawler.UpsertResult{}, fmt.Errorf("failed to commit observations: %w", err)
	}
	return result, nil
}

// Exists reports whether an observation is stored for (entityID, date).
func (s *Store) Exists(ctx context.Context, entityID, date string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM observations WHERE entity_id = ? AND obs_date = ?)`, entityID, date)
	if err != nil {
		return false, fmt.Errorf("failed to check observation: %w", err)
	}
	return exists, nil
}

// Count returns the number of stored observations.
func (s *Store) Count(ctx context.Context, entityID string) (int64, error) {
	query := `SELECT COUNT(*) FROM observations`
	var args []any
	if entityID != "" {
		query += ` WHERE entity_id = ?`
		args = append(args, entityID)
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

// LatestDate returns the most recent observation date for entityID.
func (s *Store) LatestDate(ctx context.Context, entityID string) (string, bool, error) {
	var latest sql.NullString
	err := s.db.GetContext(ctx, &latest, `SELECT MAX(obs_date) FROM observations WHERE entity_id = ?`, entityID)
	if err != nil {
		return "", false, fmt.Errorf("failed to read latest date: %w", err)
	}
	return latest.String, latest.Valid, nil
}

// ReadCursor loads the singleton cursor row.
func (s *Store) ReadCursor(ctx context.Context) (crawler.Cursor, bool, error) {
	var row cursorRow
	err := s.db.GetContext(ctx, &row, readCursorSQL)
	if errors.Is(err, sql.ErrNoRows) {
		return crawler.Cursor{}, false, nil
	}
	if err != nil {
		return crawler.Cursor{}, false, fmt.Errorf("failed to read cursor: %w", err)
	}
	return crawler.Cursor{
		EntityID:      row.EntityID,
		EntityName:    row.EntityName,
		Page:          row.Page,
		EntityIndex:   row.EntityIndex,
		TotalEntities: row.TotalEntities,
		Status:        crawler.RunStatus(row.Status),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}, true, nil
}

// WriteCursor replaces the singleton cursor row.
func (s *Store) WriteCursor(ctx context.Context, cursor crawler.Cursor) error {
	row := cursorRow{
		EntityID:      cursor.EntityID,
		EntityName:    cursor.EntityName,
		Page:          cursor.Page,
		EntityIndex:   cursor.EntityIndex,
		TotalEntities: cursor.TotalEntities,
		Status:        string(cursor.Status),
		UpdatedAt:     s.clock.Now(),
	}
	if _, err := s.db.NamedExecContext(ctx, writeCursorSQL, row); err != nil {
		return fmt.Errorf("failed to write cursor: %w", err)
	}
	return nil
}

// Reset deletes the cursor so the next run starts from the first entity.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM progress`); err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}
	return nil
}

// rowLevel reports whether err concerns only the row being written.
func rowLevel(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrRange, sqlite3.ErrTooBig:
		return true
	default:
		return false
	}
}

func rollback(tx *sqlx.Tx, logger *zap.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("failed to roll back sqlite transaction", zap.Error(err))
	}
}
