package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/resilience"
)

// ArchiveConnector backfills a historical deal archive organized as
// numbered pages within an ordered list of sectors. The cursor encodes
// both coordinates; when one sector's pages run out the cursor moves to
// the next sector at page zero.
type ArchiveConnector struct {
	name        string
	displayName string
	baseURL     string
	sectors     []string
	minDate     time.Time
	tier        resilience.Tier
	client      jsonGetter
}

// ArchiveConfig configures an ArchiveConnector.
type ArchiveConfig struct {
	Name        string
	DisplayName string
	BaseURL     string
	Sectors     []string
	MinDate     time.Time
	Tier        resilience.Tier
}

// NewArchiveConnector builds a sector/page archive connector.
func NewArchiveConnector(cfg ArchiveConfig, client jsonGetter) *ArchiveConnector {
	if cfg.Tier.Name == "" {
		cfg.Tier = resilience.TierSlow
	}
	return &ArchiveConnector{
		name:        cfg.Name,
		displayName: cfg.DisplayName,
		baseURL:     cfg.BaseURL,
		sectors:     cfg.Sectors,
		minDate:     cfg.MinDate,
		tier:        cfg.Tier,
		client:      client,
	}
}

func (c *ArchiveConnector) Name() string           { return c.name }
func (c *ArchiveConnector) DisplayName() string    { return c.displayName }
func (c *ArchiveConnector) Type() model.SourceType { return model.SourceTypeArchive }
func (c *ArchiveConnector) Tier() resilience.Tier  { return c.tier }

// InitialCursor starts at the first sector's first page.
func (c *ArchiveConnector) InitialCursor() *string {
	return SectorPageCursor{}.Encode()
}

// Fetch retrieves one archive page. Archive pages run newest-first within
// a sector, so an item older than the minimum date ends the whole
// backfill: everything after it is older still.
func (c *ArchiveConnector) Fetch(ctx context.Context, cursor *string) (*Batch, error) {
	if len(c.sectors) == 0 {
		return nil, eris.Errorf("archive %s has no sectors configured", c.name)
	}
	cur, err := ParseSectorPageCursor(cursor, len(c.sectors))
	if err != nil {
		return nil, err
	}

	sector := c.sectors[cur.SectorIndex]
	url := fmt.Sprintf("%s/%s?page=%d", c.baseURL, sector, cur.Page)
	var page apiPage
	if err := c.client.GetJSON(ctx, url, &page); err != nil {
		return nil, eris.Wrapf(err, "fetch archive page %s/%s/%d", c.name, sector, cur.Page)
	}

	batch := &Batch{TotalEstimated: page.Total}
	cutoffHit := false
	for _, deal := range page.Deals {
		rec, err := c.toRecord(deal, sector)
		if err != nil {
			batch.ItemErrors = append(batch.ItemErrors, err)
			continue
		}
		if rec.Date.Before(c.minDate) {
			cutoffHit = true
			break
		}
		batch.Items = append(batch.Items, *rec)
	}

	next, hasMore := c.advance(cur, len(page.Deals))
	if cutoffHit {
		hasMore = false
	}
	batch.NextCursor = next.Encode()
	batch.HasMore = hasMore
	return batch, nil
}

// advance computes the next cursor position. An empty page means the
// sector is exhausted; the last sector's exhaustion ends the backfill.
func (c *ArchiveConnector) advance(cur SectorPageCursor, pageItems int) (SectorPageCursor, bool) {
	if pageItems > 0 {
		return SectorPageCursor{SectorIndex: cur.SectorIndex, Page: cur.Page + 1}, true
	}
	if cur.SectorIndex+1 < len(c.sectors) {
		return SectorPageCursor{SectorIndex: cur.SectorIndex + 1}, true
	}
	return cur, false
}

func (c *ArchiveConnector) toRecord(deal apiDeal, sector string) (*model.RawFundingRecord, error) {
	if deal.Company == "" {
		return nil, &resilience.ParseError{Item: deal.URL, Err: eris.Errorf("archive deal in %s missing company name", sector)}
	}
	date, err := parseDealDate(deal.Date)
	if err != nil {
		return nil, &resilience.ParseError{Item: deal.URL, Err: err}
	}
	return &model.RawFundingRecord{
		CompanyName:  deal.Company,
		Amount:       deal.Amount,
		Currency:     deal.Currency,
		Stage:        deal.Stage,
		Investors:    deal.Investors,
		LeadInvestor: deal.LeadInvestor,
		Date:         date,
		SourceURL:    deal.URL,
		SourceName:   c.name,
		Description:  deal.Description,
	}, nil
}
