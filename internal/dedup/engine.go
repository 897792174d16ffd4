package dedup

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-cli/internal/model"
)

// DefaultWindowDays is the round-matching window: rounds within ±7 days of
// the incoming record's date are candidates for the duplicate check.
const DefaultWindowDays = 7

// AmountTolerance is the relative USD difference below which two amounts
// are considered the same round.
const AmountTolerance = 0.10

// CompanyIdentityThreshold is the combined-similarity floor above which a
// company found by slug lookup is accepted as the record's company. Below
// it, two distinct companies share a slug and the newcomer gets a suffix.
const CompanyIdentityThreshold = 0.8

// maxSlugProbes bounds the suffix search for a free slug.
const maxSlugProbes = 10

// MatchKind is the dedup engine's verdict for an incoming record.
type MatchKind int

const (
	// MatchNewCompany means no existing company matches: create company and round.
	MatchNewCompany MatchKind = iota
	// MatchNewRound means the company exists but the round is new.
	MatchNewRound
	// MatchDuplicate means the record duplicates a persisted round: skip.
	MatchDuplicate
)

func (k MatchKind) String() string {
	switch k {
	case MatchNewCompany:
		return "new-company"
	case MatchNewRound:
		return "new-round"
	case MatchDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Decision is the outcome of classifying one record.
type Decision struct {
	Kind        MatchKind
	Slug        string
	Company     *model.Company      // set for MatchNewRound and MatchDuplicate
	DuplicateOf *model.FundingRound // set for MatchDuplicate
	Reason      string
}

// Lookup is the read-side store surface the engine needs.
type Lookup interface {
	// FindRoundBySourceURL returns the round with the given source URL, or nil.
	FindRoundBySourceURL(ctx context.Context, url string) (*model.FundingRound, error)
	// FindCompanyBySlugOrAlias matches by exact slug, slug prefix
	// (suffix-resolved collisions), or alias membership. Returns nil when
	// no company matches.
	FindCompanyBySlugOrAlias(ctx context.Context, slug, name string) (*model.Company, error)
	// FindRoundsNear returns the company's rounds within ±windowDays of date.
	FindRoundsNear(ctx context.Context, companyID string, date time.Time, windowDays int) ([]model.FundingRound, error)
}

// Engine decides whether an incoming record is an exact duplicate, a new
// round for a known company, or an entirely new company.
type Engine struct {
	lookup     Lookup
	windowDays int
}

// NewEngine creates a dedup engine over the given store.
func NewEngine(lookup Lookup, windowDays int) *Engine {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Engine{lookup: lookup, windowDays: windowDays}
}

// Classify runs the duplicate cascade for one record, short-circuiting on
// the first positive:
//
//  1. exact sourceUrl match — strongest signal, checked before any fuzzy step
//  2. company identity via slug/slug-prefix/alias lookup, accepted only when
//     the candidate passes the alias/similarity identity check; a rejected
//     candidate is a slug collision, resolved with a numeric suffix
//  3. round match inside the ±window: amount within tolerance with agreeing
//     stages, or equal known stages when an amount is missing
func (e *Engine) Classify(ctx context.Context, rec *model.RawFundingRecord) (*Decision, error) {
	if rec.CompanyName == "" {
		return nil, eris.New("dedup: record has no company name")
	}

	slug := Slugify(rec.CompanyName)
	log := zap.L().With(zap.String("company", rec.CompanyName), zap.String("slug", slug))

	if rec.SourceURL != "" {
		existing, err := e.lookup.FindRoundBySourceURL(ctx, rec.SourceURL)
		if err != nil {
			return nil, eris.Wrap(err, "dedup: lookup by source url")
		}
		if existing != nil {
			log.Debug("dedup: duplicate by source url", zap.String("url", rec.SourceURL))
			return &Decision{
				Kind:        MatchDuplicate,
				Slug:        slug,
				DuplicateOf: existing,
				Reason:      "source-url",
			}, nil
		}
	}

	company, slug, err := e.resolveCompany(ctx, slug, rec.CompanyName)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return &Decision{Kind: MatchNewCompany, Slug: slug}, nil
	}

	rounds, err := e.lookup.FindRoundsNear(ctx, company.ID, rec.Date, e.windowDays)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: lookup nearby rounds")
	}

	for i := range rounds {
		if reason, ok := sameRound(rec, &rounds[i]); ok {
			log.Debug("dedup: duplicate round",
				zap.String("round_id", rounds[i].ID),
				zap.String("reason", reason),
			)
			return &Decision{
				Kind:        MatchDuplicate,
				Slug:        slug,
				Company:     company,
				DuplicateOf: &rounds[i],
				Reason:      reason,
			}, nil
		}
	}

	return &Decision{Kind: MatchNewRound, Slug: slug, Company: company}, nil
}

// resolveCompany finds the company a record belongs to, or the slug a new
// company should claim. A slug hit only counts as the same company when the
// candidate carries the record's name as an alias or the names score above
// CompanyIdentityThreshold; otherwise the slug is taken by someone else and
// the search moves to the next numeric suffix (acme, acme-2, ...).
func (e *Engine) resolveCompany(ctx context.Context, base, name string) (*model.Company, string, error) {
	slug := base
	for probe := 1; probe <= maxSlugProbes; probe++ {
		if probe > 1 {
			slug = fmt.Sprintf("%s-%d", base, probe)
		}

		company, err := e.lookup.FindCompanyBySlugOrAlias(ctx, slug, name)
		if err != nil {
			return nil, "", eris.Wrap(err, "dedup: lookup company")
		}
		if company == nil {
			return nil, slug, nil
		}
		if company.HasAlias(name) || CombinedSimilarity(name, company.Name) >= CompanyIdentityThreshold {
			return company, company.Slug, nil
		}
		if company.Slug != slug {
			// A prefix match for some other company; the probed slug itself
			// is unclaimed.
			return nil, slug, nil
		}
	}
	return nil, "", eris.Errorf("dedup: no free slug for %q after %d probes of %q", name, maxSlugProbes, base)
}

// sameRound applies the amount/stage matching rules to a candidate round
// already known to be within the date window.
func sameRound(rec *model.RawFundingRecord, round *model.FundingRound) (string, bool) {
	recStage := rec.NormalizedStage()
	roundStage := round.StageNormalized

	recUSD, recOK := recordUSD(rec)
	roundUSD, roundOK := roundAmountUSD(round)

	if recOK && roundOK {
		diff := math.Abs(recUSD-roundUSD) / math.Max(recUSD, roundUSD)
		stagesAgree := recStage == model.StageUnknown ||
			roundStage == model.StageUnknown ||
			recStage == roundStage
		if diff <= AmountTolerance && stagesAgree {
			return "amount-within-tolerance", true
		}
		return "", false
	}

	// Amount unknown on at least one side: fall back to stage equality.
	if recStage != model.StageUnknown && recStage == roundStage {
		return "stage-match", true
	}
	return "", false
}

func recordUSD(rec *model.RawFundingRecord) (float64, bool) {
	if rec.Amount == nil || *rec.Amount <= 0 {
		return 0, false
	}
	return ToUSD(*rec.Amount, rec.Currency)
}

func roundAmountUSD(round *model.FundingRound) (float64, bool) {
	if round.AmountUSD != nil && *round.AmountUSD > 0 {
		return *round.AmountUSD, true
	}
	if round.Amount != nil && *round.Amount > 0 {
		return ToUSD(*round.Amount, round.Currency)
	}
	return 0, false
}
