// Package source defines the connector contract every external funding
// source implements, plus the concrete connectors and their registry.
package source

import (
	"context"

	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/resilience"
)

// Batch is the result of one fetch call against a connector.
type Batch struct {
	Items []model.RawFundingRecord

	// NextCursor resumes the next fetch. Nil means start over from the
	// connector's initial position.
	NextCursor *string

	// HasMore is false once the source is exhausted or the connector hit
	// its minimum-date cutoff.
	HasMore bool

	// TotalEstimated is the source's own count of remaining items, 0 when
	// unknown.
	TotalEstimated int

	// ItemErrors holds per-item parse failures the connector absorbed.
	// They count toward the run's error stats but never abort the batch.
	ItemErrors []error
}

// Connector is a paginated funding-event source. The cursor format is
// private to each connector; callers only store and replay it.
//
// Fetch must be idempotent: two calls with the same cursor return the same
// items (or a safe superset). Each connector enforces its own minimum-date
// cutoff by returning HasMore=false once it sees an item older than the
// cutoff.
type Connector interface {
	Name() string
	DisplayName() string
	Type() model.SourceType
	Tier() resilience.Tier
	InitialCursor() *string
	Fetch(ctx context.Context, cursor *string) (*Batch, error)
}
