package sqlite

// schema is applied on every Open; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		entity_id  TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		issuer     TEXT NOT NULL DEFAULT '',
		manager    TEXT NOT NULL DEFAULT '',
		category   TEXT NOT NULL DEFAULT '',
		theme      TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		entity_id  TEXT NOT NULL,
		obs_date   TEXT NOT NULL,
		value      REAL,
		cumulative REAL,
		change_pct REAL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (entity_id, obs_date)
	)`,
	`CREATE TABLE IF NOT EXISTS progress (
		id             INTEGER PRIMARY KEY CHECK (id = 1),
		entity_id      TEXT NOT NULL DEFAULT '',
		entity_name    TEXT NOT NULL DEFAULT '',
		page           INTEGER NOT NULL,
		entity_index   INTEGER NOT NULL,
		total_entities INTEGER NOT NULL,
		status         TEXT NOT NULL,
		updated_at     TIMESTAMP NOT NULL
	)`,
}

const upsertEntitySQL = `INSERT INTO entities (entity_id, name, issuer, manager, category, theme, updated_at)
	VALUES (:entity_id, :name, :issuer, :manager, :category, :theme, :updated_at)
	ON CONFLICT (entity_id) DO UPDATE SET
		name = excluded.name,
		issuer = excluded.issuer,
		manager = excluded.manager,
		category = excluded.category,
		theme = excluded.theme,
		updated_at = excluded.updated_at`

const upsertObservationSQL = `INSERT INTO observations (entity_id, obs_date, value, cumulative, change_pct, updated_at)
	VALUES (:entity_id, :obs_date, :value, :cumulative, :change_pct, :updated_at)
	ON CONFLICT (entity_id, obs_date) DO UPDATE SET
		value = excluded.value,
		cumulative = excluded.cumulative,
		change_pct = excluded.change_pct,
		updated_at = excluded.updated_at`

const writeCursorSQL = `INSERT INTO progress (id, entity_id, entity_name, page, entity_index, total_entities, status, updated_at)
	VALUES (1, :entity_id, :entity_name, :page, :entity_index, :total_entities, :status, :updated_at)
	ON CONFLICT (id) DO UPDATE SET
		entity_id = excluded.entity_id,
		entity_name = excluded.entity_name,
		page = excluded.page,
		entity_index = excluded.entity_index,
		total_entities = excluded.total_entities,
		status = excluded.status,
		updated_at = excluded.updated_at`

const readCursorSQL = `SELECT entity_id, entity_name, page, entity_index, total_entities, status, updated_at
	FROM progress WHERE id = 1`
