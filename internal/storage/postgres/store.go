// Package postgres provides Postgres-backed observation and cursor storage.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/clock/system"
	"github.com/JakeFAU/realtime-nav-crawler/internal/crawler"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements crawler.ObservationStore and crawler.ProgressTracker.
type Store struct {
	pool   querier
	clock  crawler.Clock
	logger *zap.Logger
}

// Open creates a pool from cfg, verifies connectivity and applies the schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres_dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(pool, nil, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier, clock crawler.Clock, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, clock: clock, logger: logger}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply postgres schema: %w", err)
		}
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// UpsertEntities refreshes the entities table from the catalog.
func (s *Store) UpsertEntities(ctx context.Context, entities []crawler.Entity) error {
	now := s.clock.Now()
	for _, ent := range entities {
		_, err := s.pool.Exec(ctx, upsertEntitySQL,
			ent.ID, ent.Name, ent.Issuer, ent.Manager, ent.Category, ent.Theme, now)
		if err != nil {
			return fmt.Errorf("failed to upsert entity %s: %w", ent.ID, err)
		}
	}
	return nil
}

// Upsert writes each observation in its own statement so a rejected row does
// not abort the rest. Server-side rejections are counted; anything else means
// the database is unreachable and is returned.
func (s *Store) Upsert(
	ctx context.Context,
	entityID string,
	observations []crawler.Observation,
) (crawler.UpsertResult, error) {
	var result crawler.UpsertResult
	now := s.clock.Now()
	for _, obs := range observations {
		obs.EntityID = entityID
		if err := obs.Validate(); err != nil {
			result.Failed++
			s.logger.Warn("skipping observation", zap.String("entity_id", entityID), zap.Error(err))
			continue
		}
		_, err := s.pool.Exec(ctx, upsertObservationSQL,
			obs.EntityID, obs.Date, obs.Value, obs.Cumulative, obs.Change, now)
		if err != nil {
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) {
				return result, fmt.Errorf("failed to upsert observation %s %s: %w", entityID, obs.Date, err)
			}
			result.Failed++
			s.logger.Warn("observation rejected",
				zap.String("entity_id", entityID),
				zap.String("date", obs.Date),
				zap.String("sqlstate", pgErr.Code),
				zap.Error(err),
			)
			continue
		}
		result.Written++
	}
	return result, nil
}

// Exists reports whether an observation is stored for (entityID, date).
func (s *Store) Exists(ctx context.Context, entityID, date string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM observations WHERE entity_id = $1 AND obs_date = $2::date)`,
		entityID, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check observation: %w", err)
	}
	return exists, nil
}

// Count returns the number of stored observations.
func (s *Store) Count(ctx context.Context, entityID string) (int64, error) {
	var (
		n   int64
		err error
	)
	if entityID == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM observations`).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM observations WHERE entity_id = $1`, entityID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

// LatestDate returns the most recent observation date for entityID.
func (s *Store) LatestDate(ctx context.Context, entityID string) (string, bool, error) {
	var latest string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(to_char(MAX(obs_date), 'YYYY-MM-DD'), '') FROM observations WHERE entity_id = $1`,
		entityID,
	).Scan(&latest)
	if err != nil {
		return "", false, fmt.Errorf("failed to read latest date: %w", err)
	}
	return latest, latest != "", nil
}

// ReadCursor loads the singleton cursor row.
func (s *Store) ReadCursor(ctx context.Context) (crawler.Cursor, bool, error) {
	var (
		cur    crawler.Cursor
		status string
	)
	err := s.pool.QueryRow(ctx, readCursorSQL).Scan(
		&cur.EntityID,
		&cur.EntityName,
		&cur.Page,
		&cur.EntityIndex,
		&cur.TotalEntities,
		&status,
		&cur.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Cursor{}, false, nil
	}
	if err != nil {
		return crawler.Cursor{}, false, fmt.Errorf("failed to read cursor: %w", err)
	}
	cur.Status = crawler.RunStatus(status)
	cur.UpdatedAt = cur.UpdatedAt.UTC()
	return cur, true, nil
}

// WriteCursor replaces the singleton cursor row.
func (s *Store) WriteCursor(ctx context.Context, cursor crawler.Cursor) error {
	_, err := s.pool.Exec(ctx, writeCursorSQL,
		cursor.EntityID,
		cursor.EntityName,
		cursor.Page,
		cursor.EntityIndex,
		cursor.TotalEntities,
		string(cursor.Status),
		s.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cursor: %w", err)
	}
	return nil
}

// Reset deletes the cursor so the next run starts from the first entity.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM progress`); err != nil {
		return fmt.Errorf("failed to reset cursor: %w", err)
	}
	return nil
}
