package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		entity_id  TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		issuer     TEXT NOT NULL DEFAULT '',
		manager    TEXT NOT NULL DEFAULT '',
		category   TEXT NOT NULL DEFAULT '',
		theme      TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		entity_id  TEXT NOT NULL,
		obs_date   DATE NOT NULL,
		value      DOUBLE PRECISION,
		cumulative DOUBLE PRECISION,
		change_pct DOUBLE PRECISION,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (entity_id, obs_date)
	)`,
	`CREATE TABLE IF NOT EXISTS progress (
		id             SMALLINT PRIMARY KEY CHECK (id = 1),
		entity_id      TEXT NOT NULL DEFAULT '',
		entity_name    TEXT NOT NULL DEFAULT '',
		page           INTEGER NOT NULL,
		entity_index   INTEGER NOT NULL,
		total_entities INTEGER NOT NULL,
		status         TEXT NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
}

const upsertEntitySQL = `
	INSERT INTO entities (entity_id, name, issuer, manager, category, theme, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (entity_id) DO UPDATE SET
		name = EXCLUDED.name,
		issuer = EXCLUDED.issuer,
		manager = EXCLUDED.manager,
		category = EXCLUDED.category,
		theme = EXCLUDED.theme,
		updated_at = EXCLUDED.updated_at;
`

const upsertObservationSQL = `
	INSERT INTO observations (entity_id, obs_date, value, cumulative, change_pct, updated_at)
	VALUES ($1, $2::date, $3, $4, $5, $6)
	ON CONFLICT (entity_id, obs_date) DO UPDATE SET
		value = EXCLUDED.value,
		cumulative = EXCLUDED.cumulative,
		change_pct = EXCLUDED.change_pct,
		updated_at = EXCLUDED.updated_at;
`

const writeCursorSQL = `
	INSERT INTO progress (id, entity_id, entity_name, page, entity_index, total_entities, status, updated_at)
	VALUES (1, $1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		entity_id = EXCLUDED.entity_id,
		entity_name = EXCLUDED.entity_name,
		page = EXCLUDED.page,
		entity_index = EXCLUDED.entity_index,
		total_entities = EXCLUDED.total_entities,
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at;
`

const readCursorSQL = `
	SELECT entity_id, entity_name, page, entity_index, total_entities, status, updated_at
	FROM progress WHERE id = 1;
`
