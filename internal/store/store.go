// Package store persists companies, funding rounds, and per-source
// checkpoints behind a backend-agnostic interface with sqlite and postgres
// implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-cli/internal/model"
)

// ErrDuplicateRound is returned by CreateRound when the round's source URL
// already exists. Source URLs are globally unique; hitting this under
// concurrent writers is expected and benign.
var ErrDuplicateRound = eris.New("store: round with this source url already exists")

// Store is the persistence interface for the ingestion pipeline.
// Company writes use upsert semantics keyed by slug so that two sources
// racing to create the same company converge on one row.
type Store interface {
	// Source checkpoints. One record per source name; created on first
	// successful fetch, mutated after every batch, never deleted.
	UpsertSource(ctx context.Context, src *model.Source) error
	GetSource(ctx context.Context, name string) (*model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	SetSourceActive(ctx context.Context, name string, active bool) error

	// Companies.
	UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error)
	FindCompanyBySlugOrAlias(ctx context.Context, slug, name string) (*model.Company, error)

	// Rounds (append-only).
	CreateRound(ctx context.Context, r *model.FundingRound) error
	FindRoundBySourceURL(ctx context.Context, url string) (*model.FundingRound, error)
	FindRoundsNear(ctx context.Context, companyID string, date time.Time, windowDays int) ([]model.FundingRound, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// windowBounds returns the inclusive [from, to] range for a ±windowDays
// match window around date.
func windowBounds(date time.Time, windowDays int) (time.Time, time.Time) {
	window := time.Duration(windowDays) * 24 * time.Hour
	return date.Add(-window), date.Add(window)
}
