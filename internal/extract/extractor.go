// Package extract turns unstructured funding announcements into structured
// records using Claude.
package extract

import (
	"context"
	"time"
)

// Article is an unstructured announcement pulled from a feed.
type Article struct {
	Title     string
	Body      string
	URL       string
	Published time.Time
}

// ParsedFields is the structured result of extracting one article.
// ConfidenceScore is the model's own 0-100 estimate; callers drop results
// below their threshold. Date and Description may be empty when the article
// does not state them; callers fall back to the feed item's values.
type ParsedFields struct {
	CompanyName     string   `json:"company_name"`
	Amount          *float64 `json:"amount"`
	Currency        string   `json:"currency"`
	Stage           string   `json:"stage"`
	Investors       []string `json:"investors"`
	LeadInvestor    string   `json:"lead_investor"`
	Date            string   `json:"date"` // YYYY-MM-DD
	Description     string   `json:"description"`
	ConfidenceScore int      `json:"confidence_score"`
}

// AnnouncedDate parses the extracted date. Zero time when the field is
// absent or malformed.
func (f *ParsedFields) AnnouncedDate() time.Time {
	t, err := time.Parse("2006-01-02", f.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Extractor parses funding details out of an article.
type Extractor interface {
	Extract(ctx context.Context, article Article) (*ParsedFields, error)
}
