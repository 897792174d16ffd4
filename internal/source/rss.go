package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-cli/internal/extract"
	"github.com/sells-group/funding-cli/internal/fetcher"
	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/resilience"
)

// RSSConnector polls a funding-news feed and extracts structured records
// from each new article. The cursor tracks the newest item already
// ingested plus the feed's ETag, so an unchanged feed costs one
// conditional request.
type RSSConnector struct {
	name          string
	displayName   string
	feedURL       string
	minDate       time.Time
	minConfidence int
	tier          resilience.Tier
	fetcher       fetcher.Fetcher
	extractor     extract.Extractor
}

// RSSConfig configures an RSSConnector.
type RSSConfig struct {
	Name          string
	DisplayName   string
	FeedURL       string
	MinDate       time.Time
	MinConfidence int // extraction confidence floor, default 50
	Tier          resilience.Tier
}

// NewRSSConnector builds a feed connector.
func NewRSSConnector(cfg RSSConfig, f fetcher.Fetcher, e extract.Extractor) *RSSConnector {
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = 50
	}
	if cfg.Tier.Name == "" {
		cfg.Tier = resilience.TierFast
	}
	return &RSSConnector{
		name:          cfg.Name,
		displayName:   cfg.DisplayName,
		feedURL:       cfg.FeedURL,
		minDate:       cfg.MinDate,
		minConfidence: cfg.MinConfidence,
		tier:          cfg.Tier,
		fetcher:       f,
		extractor:     e,
	}
}

func (c *RSSConnector) Name() string           { return c.name }
func (c *RSSConnector) DisplayName() string    { return c.displayName }
func (c *RSSConnector) Type() model.SourceType { return model.SourceTypeRSS }
func (c *RSSConnector) Tier() resilience.Tier  { return c.tier }

// InitialCursor returns nil: the first poll ingests everything newer than
// the minimum date.
func (c *RSSConnector) InitialCursor() *string { return nil }

// Fetch polls the feed once. Feeds are single-page, so HasMore is always
// false; the advancing cursor is what makes repeated polls incremental.
func (c *RSSConnector) Fetch(ctx context.Context, cursor *string) (*Batch, error) {
	cur, err := ParseFeedCursor(cursor)
	if err != nil {
		return nil, err
	}

	body, etag, changed, err := c.fetcher.DownloadIfChanged(ctx, c.feedURL, cur.ETag)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch feed %s", c.name)
	}
	if !changed {
		return &Batch{NextCursor: cur.Encode(), HasMore: false}, nil
	}
	defer body.Close()

	channel, err := fetcher.ParseRSS(body)
	if err != nil {
		return nil, eris.Wrapf(err, "parse feed %s", c.name)
	}

	batch := &Batch{HasMore: false}
	newest := cur.LastSeen
	for _, item := range channel.Items {
		published := item.PublishedAt()
		if published.IsZero() || !published.After(cur.LastSeen) || published.Before(c.minDate) {
			continue
		}
		if published.After(newest) {
			newest = published
		}

		rec, err := c.extractItem(ctx, item, published)
		if err != nil {
			// A bad article is skipped, not fatal for the batch.
			batch.ItemErrors = append(batch.ItemErrors, err)
			continue
		}
		if rec != nil {
			batch.Items = append(batch.Items, *rec)
		}
	}

	next := FeedCursor{LastSeen: newest, ETag: etag}
	batch.NextCursor = next.Encode()
	return batch, nil
}

func (c *RSSConnector) extractItem(ctx context.Context, item fetcher.RSSItem, published time.Time) (*model.RawFundingRecord, error) {
	fields, err := c.extractor.Extract(ctx, extract.Article{
		Title:     item.Title,
		Body:      item.Description,
		URL:       item.URL(),
		Published: published,
	})
	if err != nil {
		return nil, err
	}
	if fields.ConfidenceScore < c.minConfidence {
		zap.L().Debug("dropping low-confidence extraction",
			zap.String("source", c.name),
			zap.String("url", item.URL()),
			zap.Int("confidence", fields.ConfidenceScore),
		)
		return nil, &resilience.ParseError{
			Item: item.URL(),
			Err:  eris.Errorf("extraction confidence %d below %d", fields.ConfidenceScore, c.minConfidence),
		}
	}

	// The article's own date and summary beat the feed's metadata when the
	// model found them.
	date := published
	if d := fields.AnnouncedDate(); !d.IsZero() {
		date = d
	}
	description := fields.Description
	if description == "" {
		description = item.Description
	}

	return &model.RawFundingRecord{
		CompanyName:  fields.CompanyName,
		Amount:       fields.Amount,
		Currency:     fields.Currency,
		Stage:        fields.Stage,
		Investors:    fields.Investors,
		LeadInvestor: fields.LeadInvestor,
		Date:         date,
		SourceURL:    item.URL(),
		SourceName:   c.name,
		Description:  description,
	}, nil
}
