package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/funding-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	name                       TEXT PRIMARY KEY,
	display_name               TEXT NOT NULL DEFAULT '',
	source_type                TEXT NOT NULL,
	cursor                     TEXT,
	historical_import_complete INTEGER NOT NULL DEFAULT 0,
	last_import_at             DATETIME,
	last_import_count          INTEGER NOT NULL DEFAULT 0,
	total_rounds               INTEGER NOT NULL DEFAULT 0,
	is_active                  INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS companies (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	slug             TEXT NOT NULL UNIQUE,
	aliases          TEXT NOT NULL DEFAULT '[]',
	last_round_stage TEXT NOT NULL DEFAULT '',
	last_round_date  DATETIME,
	total_raised_usd REAL NOT NULL DEFAULT 0,
	data_quality     REAL NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS funding_rounds (
	id               TEXT PRIMARY KEY,
	company_id       TEXT NOT NULL REFERENCES companies(id),
	amount           REAL,
	amount_usd       REAL,
	currency         TEXT NOT NULL DEFAULT '',
	stage            TEXT NOT NULL DEFAULT '',
	stage_normalized TEXT NOT NULL DEFAULT '',
	investors        TEXT NOT NULL DEFAULT '[]',
	lead_investor    TEXT NOT NULL DEFAULT '',
	funding_date     DATETIME NOT NULL,
	source           TEXT NOT NULL,
	source_url       TEXT,
	is_migrated      INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rounds_source_url
	ON funding_rounds(source_url) WHERE source_url IS NOT NULL AND source_url != '';
CREATE INDEX IF NOT EXISTS idx_rounds_company_date ON funding_rounds(company_id, funding_date);
CREATE INDEX IF NOT EXISTS idx_companies_slug ON companies(slug);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSource(ctx context.Context, src *model.Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (name, display_name, source_type, cursor, historical_import_complete,
			last_import_at, last_import_count, total_rounds, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			cursor = excluded.cursor,
			historical_import_complete = excluded.historical_import_complete,
			last_import_at = excluded.last_import_at,
			last_import_count = excluded.last_import_count,
			total_rounds = excluded.total_rounds,
			is_active = excluded.is_active`,
		src.Name, src.DisplayName, string(src.Type), src.Cursor, src.HistoricalImportComplete,
		src.LastImportAt, src.LastImportCount, src.TotalRounds, src.IsActive,
	)
	return eris.Wrapf(err, "sqlite: upsert source %s", src.Name)
}

func (s *SQLiteStore) GetSource(ctx context.Context, name string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, display_name, source_type, cursor, historical_import_complete,
			last_import_at, last_import_count, total_rounds, is_active
		FROM sources WHERE name = ?`, name)

	src, err := scanSourceSQLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get source %s", name)
	}
	return src, nil
}

func (s *SQLiteStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, display_name, source_type, cursor, historical_import_complete,
			last_import_at, last_import_count, total_rounds, is_active
		FROM sources ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanSourceSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetSourceActive(ctx context.Context, name string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sources SET is_active = ? WHERE name = ?`, active, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set source active %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: source %s not found", name)
	}
	return nil
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	aliasesJSON, err := json.Marshal(c.Aliases)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal aliases")
	}

	// Keyed by slug: racing creators converge, the losing insert becomes
	// an update of the winner's row.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, slug, aliases, last_round_stage, last_round_date,
			total_raised_usd, data_quality, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			aliases = excluded.aliases,
			last_round_stage = excluded.last_round_stage,
			last_round_date = excluded.last_round_date,
			total_raised_usd = excluded.total_raised_usd,
			data_quality = excluded.data_quality,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Slug, string(aliasesJSON), string(c.LastRoundStage), c.LastRoundDate,
		c.TotalRaisedUSD, c.DataQuality, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert company %s", c.Slug)
	}

	return s.companyBySlug(ctx, c.Slug)
}

func (s *SQLiteStore) FindCompanyBySlugOrAlias(ctx context.Context, slug, name string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, aliases, last_round_stage, last_round_date,
			total_raised_usd, data_quality, created_at, updated_at
		FROM companies
		WHERE slug = ?1
			OR slug LIKE ?1 || '-%'
			OR EXISTS (SELECT 1 FROM json_each(companies.aliases) WHERE json_each.value = ?2)
		ORDER BY length(slug) LIMIT 1`, slug, name)

	c, err := scanCompanySQLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find company %s", slug)
	}
	return c, nil
}

func (s *SQLiteStore) companyBySlug(ctx context.Context, slug string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, aliases, last_round_stage, last_round_date,
			total_raised_usd, data_quality, created_at, updated_at
		FROM companies WHERE slug = ?`, slug)
	c, err := scanCompanySQLite(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: company by slug %s", slug)
	}
	return c, nil
}

func (s *SQLiteStore) CreateRound(ctx context.Context, r *model.FundingRound) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	investorsJSON, err := json.Marshal(r.Investors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal investors")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO funding_rounds (id, company_id, amount, amount_usd, currency, stage,
			stage_normalized, investors, lead_investor, funding_date, source, source_url,
			is_migrated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_url) WHERE source_url IS NOT NULL AND source_url != '' DO NOTHING`,
		r.ID, r.CompanyID, r.Amount, r.AmountUSD, r.Currency, r.Stage,
		string(r.StageNormalized), string(investorsJSON), r.LeadInvestor, r.FundingDate,
		r.Source, r.SourceURL, r.IsMigrated, r.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert round for %s", r.CompanyID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrDuplicateRound
	}
	return nil
}

func (s *SQLiteStore) FindRoundBySourceURL(ctx context.Context, url string) (*model.FundingRound, error) {
	if url == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, amount, amount_usd, currency, stage, stage_normalized,
			investors, lead_investor, funding_date, source, source_url, is_migrated, created_at
		FROM funding_rounds WHERE source_url = ?`, url)

	r, err := scanRoundSQLite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: round by url %s", url)
	}
	return r, nil
}

func (s *SQLiteStore) FindRoundsNear(ctx context.Context, companyID string, date time.Time, windowDays int) ([]model.FundingRound, error) {
	from, to := windowBounds(date, windowDays)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, amount, amount_usd, currency, stage, stage_normalized,
			investors, lead_investor, funding_date, source, source_url, is_migrated, created_at
		FROM funding_rounds
		WHERE company_id = ? AND funding_date BETWEEN ? AND ?
		ORDER BY funding_date`, companyID, from, to)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: rounds near for %s", companyID)
	}
	defer rows.Close()

	var out []model.FundingRound
	for rows.Next() {
		r, err := scanRoundSQLite(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan round")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSourceSQLite(sc scanner) (*model.Source, error) {
	var src model.Source
	var typ string
	var cursor sql.NullString
	var lastImportAt sql.NullTime
	if err := sc.Scan(&src.Name, &src.DisplayName, &typ, &cursor, &src.HistoricalImportComplete,
		&lastImportAt, &src.LastImportCount, &src.TotalRounds, &src.IsActive); err != nil {
		return nil, err
	}
	src.Type = model.SourceType(typ)
	if cursor.Valid {
		src.Cursor = &cursor.String
	}
	if lastImportAt.Valid {
		t := lastImportAt.Time
		src.LastImportAt = &t
	}
	return &src, nil
}

func scanCompanySQLite(sc scanner) (*model.Company, error) {
	var c model.Company
	var aliasesJSON, stage string
	var lastRoundDate sql.NullTime
	if err := sc.Scan(&c.ID, &c.Name, &c.Slug, &aliasesJSON, &stage, &lastRoundDate,
		&c.TotalRaisedUSD, &c.DataQuality, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.LastRoundStage = model.Stage(stage)
	if lastRoundDate.Valid {
		t := lastRoundDate.Time
		c.LastRoundDate = &t
	}
	if err := json.Unmarshal([]byte(aliasesJSON), &c.Aliases); err != nil {
		return nil, eris.Wrap(err, "unmarshal aliases")
	}
	return &c, nil
}

func scanRoundSQLite(sc scanner) (*model.FundingRound, error) {
	var r model.FundingRound
	var amount, amountUSD sql.NullFloat64
	var investorsJSON, stageNorm string
	var sourceURL sql.NullString
	if err := sc.Scan(&r.ID, &r.CompanyID, &amount, &amountUSD, &r.Currency, &r.Stage,
		&stageNorm, &investorsJSON, &r.LeadInvestor, &r.FundingDate, &r.Source,
		&sourceURL, &r.IsMigrated, &r.CreatedAt); err != nil {
		return nil, err
	}
	if amount.Valid {
		r.Amount = &amount.Float64
	}
	if amountUSD.Valid {
		r.AmountUSD = &amountUSD.Float64
	}
	if sourceURL.Valid {
		r.SourceURL = sourceURL.String
	}
	r.StageNormalized = model.Stage(stageNorm)
	if err := json.Unmarshal([]byte(investorsJSON), &r.Investors); err != nil {
		return nil, eris.Wrap(err, "unmarshal investors")
	}
	return &r, nil
}
