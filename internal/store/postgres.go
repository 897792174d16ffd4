package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	name                       TEXT PRIMARY KEY,
	display_name               TEXT NOT NULL DEFAULT '',
	source_type                TEXT NOT NULL,
	cursor                     TEXT,
	historical_import_complete BOOLEAN NOT NULL DEFAULT FALSE,
	last_import_at             TIMESTAMPTZ,
	last_import_count          INT NOT NULL DEFAULT 0,
	total_rounds               INT NOT NULL DEFAULT 0,
	is_active                  BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS companies (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL,
	slug             TEXT NOT NULL UNIQUE,
	aliases          JSONB NOT NULL DEFAULT '[]',
	last_round_stage TEXT NOT NULL DEFAULT '',
	last_round_date  TIMESTAMPTZ,
	total_raised_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	data_quality     DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS funding_rounds (
	id               UUID PRIMARY KEY,
	company_id       UUID NOT NULL REFERENCES companies(id),
	amount           DOUBLE PRECISION,
	amount_usd       DOUBLE PRECISION,
	currency         TEXT NOT NULL DEFAULT '',
	stage            TEXT NOT NULL DEFAULT '',
	stage_normalized TEXT NOT NULL DEFAULT '',
	investors        JSONB NOT NULL DEFAULT '[]',
	lead_investor    TEXT NOT NULL DEFAULT '',
	funding_date     TIMESTAMPTZ NOT NULL,
	source           TEXT NOT NULL,
	source_url       TEXT,
	is_migrated      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rounds_source_url
	ON funding_rounds(source_url) WHERE source_url IS NOT NULL AND source_url != '';
CREATE INDEX IF NOT EXISTS idx_rounds_company_date ON funding_rounds(company_id, funding_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertSource(ctx context.Context, src *model.Source) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sources (name, display_name, source_type, cursor, historical_import_complete,
			last_import_at, last_import_count, total_rounds, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			cursor = EXCLUDED.cursor,
			historical_import_complete = EXCLUDED.historical_import_complete,
			last_import_at = EXCLUDED.last_import_at,
			last_import_count = EXCLUDED.last_import_count,
			total_rounds = EXCLUDED.total_rounds,
			is_active = EXCLUDED.is_active`,
		src.Name, src.DisplayName, string(src.Type), src.Cursor, src.HistoricalImportComplete,
		src.LastImportAt, src.LastImportCount, src.TotalRounds, src.IsActive,
	)
	return eris.Wrapf(err, "postgres: upsert source %s", src.Name)
}

func (s *PostgresStore) GetSource(ctx context.Context, name string) (*model.Source, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT name, display_name, source_type, cursor, historical_import_complete,
			last_import_at, last_import_count, total_rounds, is_active
		FROM sources WHERE name = $1`, name)

	src, err := scanSourcePG(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get source %s", name)
	}
	return src, nil
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, display_name, source_type, cursor, historical_import_complete,
			last_import_at, last_import_count, total_rounds, is_active
		FROM sources ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanSourcePG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetSourceActive(ctx context.Context, name string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sources SET is_active = $1 WHERE name = $2`, active, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: set source active %s", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: source %s not found", name)
	}
	return nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	aliases := c.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO companies (id, name, slug, aliases, last_round_stage, last_round_date,
			total_raised_usd, data_quality, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (slug) DO UPDATE SET
			aliases = EXCLUDED.aliases,
			last_round_stage = EXCLUDED.last_round_stage,
			last_round_date = EXCLUDED.last_round_date,
			total_raised_usd = EXCLUDED.total_raised_usd,
			data_quality = EXCLUDED.data_quality,
			updated_at = EXCLUDED.updated_at
		RETURNING id, name, slug, aliases, last_round_stage, last_round_date,
			total_raised_usd, data_quality, created_at, updated_at`,
		c.ID, c.Name, c.Slug, aliases, string(c.LastRoundStage), c.LastRoundDate,
		c.TotalRaisedUSD, c.DataQuality, c.CreatedAt, c.UpdatedAt,
	)

	out, err := scanCompanyPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert company %s", c.Slug)
	}
	return out, nil
}

func (s *PostgresStore) FindCompanyBySlugOrAlias(ctx context.Context, slug, name string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, slug, aliases, last_round_stage, last_round_date,
			total_raised_usd, data_quality, created_at, updated_at
		FROM companies
		WHERE slug = $1 OR slug LIKE $1 || '-%' OR aliases @> to_jsonb($2::text)
		ORDER BY length(slug) LIMIT 1`, slug, name)

	c, err := scanCompanyPG(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find company %s", slug)
	}
	return c, nil
}

func (s *PostgresStore) CreateRound(ctx context.Context, r *model.FundingRound) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	investors := r.Investors
	if investors == nil {
		investors = []string{}
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO funding_rounds (id, company_id, amount, amount_usd, currency, stage,
			stage_normalized, investors, lead_investor, funding_date, source, source_url,
			is_migrated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (source_url) WHERE source_url IS NOT NULL AND source_url != '' DO NOTHING`,
		r.ID, r.CompanyID, r.Amount, r.AmountUSD, r.Currency, r.Stage,
		string(r.StageNormalized), investors, r.LeadInvestor, r.FundingDate,
		r.Source, nullString(r.SourceURL), r.IsMigrated, r.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert round for %s", r.CompanyID)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateRound
	}
	return nil
}

func (s *PostgresStore) FindRoundBySourceURL(ctx context.Context, url string) (*model.FundingRound, error) {
	if url == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, company_id, amount, amount_usd, currency, stage, stage_normalized,
			investors, lead_investor, funding_date, source, source_url, is_migrated, created_at
		FROM funding_rounds WHERE source_url = $1`, url)

	r, err := scanRoundPG(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: round by url %s", url)
	}
	return r, nil
}

func (s *PostgresStore) FindRoundsNear(ctx context.Context, companyID string, date time.Time, windowDays int) ([]model.FundingRound, error) {
	from, to := windowBounds(date, windowDays)
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, amount, amount_usd, currency, stage, stage_normalized,
			investors, lead_investor, funding_date, source, source_url, is_migrated, created_at
		FROM funding_rounds
		WHERE company_id = $1 AND funding_date BETWEEN $2 AND $3
		ORDER BY funding_date`, companyID, from, to)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: rounds near for %s", companyID)
	}
	defer rows.Close()

	var out []model.FundingRound
	for rows.Next() {
		r, err := scanRoundPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan round")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanSourcePG(row pgx.Row) (*model.Source, error) {
	var src model.Source
	var typ string
	if err := row.Scan(&src.Name, &src.DisplayName, &typ, &src.Cursor,
		&src.HistoricalImportComplete, &src.LastImportAt, &src.LastImportCount,
		&src.TotalRounds, &src.IsActive); err != nil {
		return nil, err
	}
	src.Type = model.SourceType(typ)
	return &src, nil
}

func scanCompanyPG(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var stage string
	if err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Aliases, &stage, &c.LastRoundDate,
		&c.TotalRaisedUSD, &c.DataQuality, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.LastRoundStage = model.Stage(stage)
	return &c, nil
}

func scanRoundPG(row pgx.Row) (*model.FundingRound, error) {
	var r model.FundingRound
	var stageNorm string
	var sourceURL *string
	if err := row.Scan(&r.ID, &r.CompanyID, &r.Amount, &r.AmountUSD, &r.Currency, &r.Stage,
		&stageNorm, &r.Investors, &r.LeadInvestor, &r.FundingDate, &r.Source,
		&sourceURL, &r.IsMigrated, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.StageNormalized = model.Stage(stageNorm)
	if sourceURL != nil {
		r.SourceURL = *sourceURL
	}
	return &r, nil
}
