package model

import "time"

// Company is a persisted canonical company. The slug is normalized but not
// globally unique in principle — collisions are resolved with a numeric
// suffix at creation time.
type Company struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Aliases        []string   `json:"aliases,omitempty"`
	LastRoundStage Stage      `json:"last_round_stage,omitempty"`
	LastRoundDate  *time.Time `json:"last_round_date,omitempty"`
	TotalRaisedUSD float64    `json:"total_raised_usd"`
	DataQuality    float64    `json:"data_quality"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasAlias reports whether name is already recorded as an alias.
func (c *Company) HasAlias(name string) bool {
	for _, a := range c.Aliases {
		if a == name {
			return true
		}
	}
	return false
}

// FundingRound is a persisted round. Rounds are append-only: a row is
// created once per accepted record and never mutated afterwards.
// SourceURL, when non-empty, is globally unique and is the strongest
// duplicate signal.
type FundingRound struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	Amount          *float64  `json:"amount,omitempty"`
	AmountUSD       *float64  `json:"amount_usd,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	Stage           string    `json:"stage,omitempty"`
	StageNormalized Stage     `json:"stage_normalized,omitempty"`
	Investors       []string  `json:"investors,omitempty"`
	LeadInvestor    string    `json:"lead_investor,omitempty"`
	FundingDate     time.Time `json:"funding_date"`
	Source          string    `json:"source"`
	SourceURL       string    `json:"source_url,omitempty"`
	IsMigrated      bool      `json:"is_migrated"`
	CreatedAt       time.Time `json:"created_at"`
}
