package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/resilience"
)

// jsonGetter is the fetcher capability API connectors need.
type jsonGetter interface {
	GetJSON(ctx context.Context, url string, out any) error
}

// apiDeal is the wire shape shared by the public deal APIs we ingest.
type apiDeal struct {
	Company      string   `json:"company"`
	Amount       *float64 `json:"amount"`
	Currency     string   `json:"currency"`
	Stage        string   `json:"stage"`
	Investors    []string `json:"investors"`
	LeadInvestor string   `json:"lead_investor"`
	Date         string   `json:"date"`
	URL          string   `json:"url"`
	Description  string   `json:"description"`
}

type apiPage struct {
	Deals []apiDeal `json:"deals"`
	Total int       `json:"total"`
}

// APIConnector pages through an offset-paginated JSON deal API.
type APIConnector struct {
	name        string
	displayName string
	baseURL     string
	pageSize    int
	minDate     time.Time
	tier        resilience.Tier
	client      jsonGetter
}

// APIConfig configures an APIConnector.
type APIConfig struct {
	Name        string
	DisplayName string
	BaseURL     string
	PageSize    int // default 100
	MinDate     time.Time
	Tier        resilience.Tier
}

// NewAPIConnector builds an offset-paginated API connector.
func NewAPIConnector(cfg APIConfig, client jsonGetter) *APIConnector {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Tier.Name == "" {
		cfg.Tier = resilience.TierFast
	}
	return &APIConnector{
		name:        cfg.Name,
		displayName: cfg.DisplayName,
		baseURL:     cfg.BaseURL,
		pageSize:    cfg.PageSize,
		minDate:     cfg.MinDate,
		tier:        cfg.Tier,
		client:      client,
	}
}

func (c *APIConnector) Name() string           { return c.name }
func (c *APIConnector) DisplayName() string    { return c.displayName }
func (c *APIConnector) Type() model.SourceType { return model.SourceTypeAPI }
func (c *APIConnector) Tier() resilience.Tier  { return c.tier }

// InitialCursor starts at offset zero.
func (c *APIConnector) InitialCursor() *string {
	return OffsetCursor{}.Encode()
}

// Fetch retrieves one page. Once an item older than the minimum date shows
// up, HasMore is false regardless of the API's total.
func (c *APIConnector) Fetch(ctx context.Context, cursor *string) (*Batch, error) {
	cur, err := ParseOffsetCursor(cursor)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?offset=%d&limit=%d", c.baseURL, cur.Offset, c.pageSize)
	var page apiPage
	if err := c.client.GetJSON(ctx, url, &page); err != nil {
		return nil, eris.Wrapf(err, "fetch page for %s", c.name)
	}

	batch := &Batch{TotalEstimated: page.Total}
	cutoffHit := false
	for _, deal := range page.Deals {
		rec, err := c.toRecord(deal)
		if err != nil {
			batch.ItemErrors = append(batch.ItemErrors, err)
			continue
		}
		if rec.Date.Before(c.minDate) {
			cutoffHit = true
			continue
		}
		batch.Items = append(batch.Items, *rec)
	}

	next := OffsetCursor{Offset: cur.Offset + len(page.Deals)}
	batch.NextCursor = next.Encode()
	batch.HasMore = !cutoffHit && len(page.Deals) == c.pageSize && next.Offset < page.Total
	return batch, nil
}

func (c *APIConnector) toRecord(deal apiDeal) (*model.RawFundingRecord, error) {
	if deal.Company == "" {
		return nil, &resilience.ParseError{Item: deal.URL, Err: eris.New("deal missing company name")}
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

var dealDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
}

func parseDealDate(raw string) (time.Time, error) {
	for _, layout := range dealDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable deal date %q", raw)
}
