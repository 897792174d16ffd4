// Package model defines the shared data types for the funding ingestion pipeline.
package model

import "time"

// SourceType classifies how a source publishes funding events.
type SourceType string

const (
	// SourceTypeRSS is a feed that is polled forever for new items.
	SourceTypeRSS SourceType = "rss"
	// SourceTypeArchive is a paginated historical archive; once fully
	// backfilled it is skipped on subsequent runs.
	SourceTypeArchive SourceType = "archive"
	// SourceTypeAPI is a public JSON API, polled forever.
	SourceTypeAPI SourceType = "api"
	// SourceTypeScrape is a scraped HTML target, polled forever.
	SourceTypeScrape SourceType = "scrape"
)

// Polled reports whether a source of this type is re-queried on every run.
// Archive sources stop once their historical import completes.
func (t SourceType) Polled() bool {
	return t != SourceTypeArchive
}

// Source is the persisted checkpoint record for one external source.
// Created on first successful fetch, mutated after every batch, never
// deleted — only deactivated.
type Source struct {
	Name                     string     `json:"name"`
	DisplayName              string     `json:"display_name"`
	Type                     SourceType `json:"source_type"`
	Cursor                   *string    `json:"cursor,omitempty"`
	HistoricalImportComplete bool       `json:"historical_import_complete"`
	LastImportAt             *time.Time `json:"last_import_at,omitempty"`
	LastImportCount          int        `json:"last_import_count"`
	TotalRounds              int        `json:"total_rounds"`
	IsActive                 bool       `json:"is_active"`
}
