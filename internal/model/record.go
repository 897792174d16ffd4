package model

import (
	"strings"
	"time"
)

// Stage is a normalized funding-round stage.
type Stage string

const (
	StagePreSeed Stage = "pre-seed"
	StageSeed    Stage = "seed"
	StageSeriesA Stage = "series-a"
	StageSeriesB Stage = "series-b"
	StageSeriesC Stage = "series-c"
	StageSeriesD Stage = "series-d"
	StageGrowth  Stage = "growth"
	StageDebt    Stage = "debt"
	StageUnknown Stage = ""
)

// stageAliases maps lowercase raw stage labels seen in the wild to
// normalized stages.
var stageAliases = map[string]Stage{
	"pre-seed":   StagePreSeed,
	"preseed":    StagePreSeed,
	"pre seed":   StagePreSeed,
	"angel":      StagePreSeed,
	"seed":       StageSeed,
	"amorçage":   StageSeed,
	"series a":   StageSeriesA,
	"series-a":   StageSeriesA,
	"serie a":    StageSeriesA,
	"série a":    StageSeriesA,
	"a round":    StageSeriesA,
	"series b":   StageSeriesB,
	"series-b":   StageSeriesB,
	"série b":    StageSeriesB,
	"series c":   StageSeriesC,
	"series-c":   StageSeriesC,
	"série c":    StageSeriesC,
	"series d":   StageSeriesD,
	"series-d":   StageSeriesD,
	"growth":     StageGrowth,
	"expansion":  StageGrowth,
	"late stage": StageGrowth,
	"debt":       StageDebt,
	"venture debt": StageDebt,
	"dette":      StageDebt,
}

// NormalizeStage maps a raw stage label to a Stage. Unrecognized labels
// normalize to StageUnknown.
func NormalizeStage(raw string) Stage {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StageUnknown
	}
	if st, ok := stageAliases[s]; ok {
		return st
	}
	// "Series E" and beyond collapse into growth.
	if strings.HasPrefix(s, "series ") || strings.HasPrefix(s, "series-") {
		return StageGrowth
	}
	return StageUnknown
}

// RawFundingRecord is a single funding event as produced by a connector.
// It is ephemeral: immutable once produced and consumed exactly once by the
// dedup engine.
type RawFundingRecord struct {
	CompanyName  string    `json:"company_name"`
	Amount       *float64  `json:"amount,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	Stage        string    `json:"stage,omitempty"`
	Investors    []string  `json:"investors,omitempty"`
	LeadInvestor string    `json:"lead_investor,omitempty"`
	Date         time.Time `json:"date"`
	SourceURL    string    `json:"source_url,omitempty"`
	SourceName   string    `json:"source_name"`
	Description  string    `json:"description,omitempty"`
}

// NormalizedStage returns the normalized stage for the record's raw label.
func (r *RawFundingRecord) NormalizedStage() Stage {
	return NormalizeStage(r.Stage)
}
