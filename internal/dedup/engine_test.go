package dedup

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sells-group/funding-cli/internal/model"
)

type fakeLookup struct {
	roundsByURL map[string]*model.FundingRound
	companies   map[string]*model.Company // keyed by slug
	rounds      map[string][]model.FundingRound
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		roundsByURL: map[string]*model.FundingRound{},
		companies:   map[string]*model.Company{},
		rounds:      map[string][]model.FundingRound{},
	}
}

func (f *fakeLookup) FindRoundBySourceURL(_ context.Context, url string) (*model.FundingRound, error) {
	return f.roundsByURL[url], nil
}

func (f *fakeLookup) FindCompanyBySlugOrAlias(_ context.Context, slug, name string) (*model.Company, error) {
	if c, ok := f.companies[slug]; ok {
		return c, nil
	}
	// Shortest prefix match first, mirroring the store's length ordering.
	var prefixed *model.Company
	for s, c := range f.companies {
		if strings.HasPrefix(s, slug+"-") && (prefixed == nil || len(s) < len(prefixed.Slug)) {
			prefixed = c
		}
	}
	if prefixed != nil {
		return prefixed, nil
	}
	for _, c := range f.companies {
		if c.HasAlias(name) {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeLookup) FindRoundsNear(_ context.Context, companyID string, date time.Time, windowDays int) ([]model.FundingRound, error) {
	window := time.Duration(windowDays) * 24 * time.Hour
	var out []model.FundingRound
	for _, r := range f.rounds[companyID] {
		d := r.FundingDate.Sub(date)
		if d < 0 {
			d = -d
		}
		if d <= window {
			out = append(out, r)
		}
	}
	return out, nil
}

func fptr(v float64) *float64 { return &v }

func record(name string, amount *float64, stage, url string, date time.Time) *model.RawFundingRecord {
	return &model.RawFundingRecord{
		CompanyName: name,
		Amount:      amount,
		Currency:    "USD",
		Stage:       stage,
		SourceURL:   url,
		SourceName:  "test-source",
		Date:        date,
	}
}

func TestClassify_DuplicateByURL(t *testing.T) {
	lk := newFakeLookup()
	lk.roundsByURL["https://example.com/a1"] = &model.FundingRound{ID: "r1", SourceURL: "https://example.com/a1"}
	eng := NewEngine(lk, 0)

	// Amount, date, and stage all differ wildly — URL still wins.
	rec := record("Totally Different Name", fptr(99e6), "Series C", "https://example.com/a1", time.Now())
	dec, err := eng.Classify(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchDuplicate || dec.Reason != "source-url" {
		t.Errorf("expected source-url duplicate, got %s (%s)", dec.Kind, dec.Reason)
	}
}

func TestClassify_NewCompany(t *testing.T) {
	eng := NewEngine(newFakeLookup(), 0)

	dec, err := eng.Classify(context.Background(), record("Fresh Startup", fptr(1e6), "seed", "https://x.test/1", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewCompany {
		t.Errorf("expected new company, got %s", dec.Kind)
	}
	if dec.Slug != "fresh-startup" {
		t.Errorf("unexpected slug %q", dec.Slug)
	}
}

func TestClassify_AmountToleranceBoundary(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{ID: "c1", Name: "Acme", Slug: "acme"}
	lk.rounds["c1"] = []model.FundingRound{{
		ID:              "r1",
		CompanyID:       "c1",
		Amount:          fptr(10e6),
		AmountUSD:       fptr(10e6),
		StageNormalized: model.StageSeriesA,
		FundingDate:     day,
	}}
	eng := NewEngine(lk, 0)

	// 9.5M vs 10M: 5% apart, within the window, same stage -> duplicate.
	dec, err := eng.Classify(context.Background(),
		record("Acme Inc", fptr(9.5e6), "Series A", "https://x.test/d1", day.AddDate(0, 0, 3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchDuplicate {
		t.Errorf("9.5M vs 10M should be a duplicate, got %s", dec.Kind)
	}

	// 8M vs 10M: 20% apart -> new round.
	dec, err = eng.Classify(context.Background(),
		record("Acme Inc", fptr(8e6), "Series A", "https://x.test/d2", day.AddDate(0, 0, 3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewRound {
		t.Errorf("8M vs 10M should be a new round, got %s", dec.Kind)
	}
}

func TestClassify_StageDisagreementBlocksAmountMatch(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{ID: "c1", Name: "Acme", Slug: "acme"}
	lk.rounds["c1"] = []model.FundingRound{{
		ID: "r1", CompanyID: "c1",
		Amount: fptr(10e6), AmountUSD: fptr(10e6),
		StageNormalized: model.StageSeriesB,
		FundingDate:     day,
	}}
	eng := NewEngine(lk, 0)

	dec, err := eng.Classify(context.Background(),
		record("Acme", fptr(10e6), "Series A", "", day))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewRound {
		t.Errorf("conflicting stages should block the amount match, got %s", dec.Kind)
	}
}

func TestClassify_StageFallbackWhenAmountMissing(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{ID: "c1", Name: "Acme", Slug: "acme"}
	lk.rounds["c1"] = []model.FundingRound{{
		ID: "r1", CompanyID: "c1",
		StageNormalized: model.StageSeed,
		FundingDate:     day,
	}}
	eng := NewEngine(lk, 0)

	dec, err := eng.Classify(context.Background(), record("Acme SAS", nil, "seed", "", day.AddDate(0, 0, -2)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchDuplicate || dec.Reason != "stage-match" {
		t.Errorf("expected stage-match duplicate, got %s (%s)", dec.Kind, dec.Reason)
	}

	// Unknown stage on the record: no basis for a match.
	dec, err = eng.Classify(context.Background(), record("Acme SAS", nil, "", "", day))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewRound {
		t.Errorf("unknown stages cannot match, got %s", dec.Kind)
	}
}

func TestClassify_OutsideDateWindow(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{ID: "c1", Name: "Acme", Slug: "acme"}
	lk.rounds["c1"] = []model.FundingRound{{
		ID: "r1", CompanyID: "c1",
		Amount: fptr(10e6), AmountUSD: fptr(10e6),
		StageNormalized: model.StageSeriesA,
		FundingDate:     day,
	}}
	eng := NewEngine(lk, 0)

	dec, err := eng.Classify(context.Background(),
		record("Acme", fptr(10e6), "Series A", "", day.AddDate(0, 0, 10)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewRound {
		t.Errorf("rounds outside the ±7 day window must not match, got %s", dec.Kind)
	}
}

func TestClassify_CrossCurrencyTolerance(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{ID: "c1", Name: "Acme", Slug: "acme"}
	usd := 10.8e6 // 10M EUR at the fixed rate
	lk.rounds["c1"] = []model.FundingRound{{
		ID: "r1", CompanyID: "c1",
		Amount: fptr(10e6), AmountUSD: &usd, Currency: "EUR",
		StageNormalized: model.StageSeriesA,
		FundingDate:     day,
	}}
	eng := NewEngine(lk, 0)

	rec := &model.RawFundingRecord{
		CompanyName: "Acme Inc",
		Amount:      fptr(11e6),
		Currency:    "USD",
		Stage:       "Series A",
		Date:        day,
		SourceName:  "other-source",
	}
	dec, err := eng.Classify(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchDuplicate {
		t.Errorf("USD-normalized comparison should match within tolerance, got %s", dec.Kind)
	}
}

func TestClassify_SlugCollisionGetsSuffix(t *testing.T) {
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{ID: "c1", Name: "Acme Pharmaceuticals", Slug: "acme"}
	eng := NewEngine(lk, 0)

	// Same slug, dissimilar name, no alias: a different company. It gets
	// the next free suffix instead of merging into c1.
	dec, err := eng.Classify(context.Background(),
		record("Acme", fptr(5e6), "seed", "", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewCompany {
		t.Fatalf("colliding slug should yield a new company, got %s", dec.Kind)
	}
	if dec.Slug != "acme-2" {
		t.Errorf("expected suffixed slug acme-2, got %q", dec.Slug)
	}

	// With acme-2 taken by yet another stranger, the probe moves on.
	lk.companies["acme-2"] = &model.Company{ID: "c2", Name: "Acme Pharma Holdings", Slug: "acme-2"}
	dec, err = eng.Classify(context.Background(),
		record("Acme", fptr(5e6), "seed", "", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewCompany || dec.Slug != "acme-3" {
		t.Errorf("expected acme-3, got %s %q", dec.Kind, dec.Slug)
	}
}

func TestClassify_SuffixedCompanyStillResolves(t *testing.T) {
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{ID: "c1", Name: "Acme Pharmaceuticals", Slug: "acme"}
	lk.companies["acme-2"] = &model.Company{ID: "c2", Name: "Acme", Slug: "acme-2"}
	eng := NewEngine(lk, 0)

	// A later record for the suffixed company finds it through the probe
	// sequence, not the colliding base slug.
	dec, err := eng.Classify(context.Background(),
		record("Acme Inc", fptr(5e6), "seed", "", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewRound || dec.Company == nil || dec.Company.ID != "c2" {
		t.Errorf("expected the suffixed company, got %s (%+v)", dec.Kind, dec.Company)
	}
}

func TestClassify_PrefixMismatchKeepsBaseSlug(t *testing.T) {
	lk := newFakeLookup()
	lk.companies["acme-robotics"] = &model.Company{ID: "c1", Name: "Acme Robotics", Slug: "acme-robotics"}
	eng := NewEngine(lk, 0)

	// "Acme" prefix-matches acme-robotics but fails the identity check.
	// The base slug is unclaimed, so the new company keeps it.
	dec, err := eng.Classify(context.Background(),
		record("Acme", fptr(5e6), "seed", "", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewCompany || dec.Slug != "acme" {
		t.Errorf("expected new company on the base slug, got %s %q", dec.Kind, dec.Slug)
	}
}

func TestClassify_AliasMatch(t *testing.T) {
	lk := newFakeLookup()
	lk.companies["acme"] = &model.Company{
		ID: "c1", Name: "Acme", Slug: "acme",
		Aliases: []string{"Acme Robotics GmbH"},
	}
	eng := NewEngine(lk, 0)

	dec, err := eng.Classify(context.Background(),
		record("Acme Robotics GmbH", fptr(5e6), "seed", "", time.Now()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Kind != MatchNewRound || dec.Company == nil || dec.Company.ID != "c1" {
		t.Errorf("alias should resolve to the existing company, got %s", dec.Kind)
	}
}
