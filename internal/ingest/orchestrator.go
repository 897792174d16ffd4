// Package ingest runs the funding ingestion pipeline: fan out over the
// registered source connectors, classify every fetched record through the
// dedup engine, persist accepted rounds, and checkpoint each source's
// cursor after every batch.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funding-cli/internal/dedup"
	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/resilience"
	"github.com/sells-group/funding-cli/internal/source"
	"github.com/sells-group/funding-cli/internal/store"
)

// Options tunes one orchestrator.
type Options struct {
	// MaxBatchesPerRun caps sequential fetches per source in one run, so a
	// time-boxed run makes resumable partial progress. Default 10.
	MaxBatchesPerRun int
	// MaxConcurrent caps the number of sources fetched in parallel.
	// Default 5.
	MaxConcurrent int
	// WindowDays is the dedup date window. Default dedup.DefaultWindowDays.
	WindowDays int
	// Circuit overrides the per-source breaker settings.
	Circuit resilience.CircuitConfig
}

// Orchestrator drives ingestion runs.
type Orchestrator struct {
	registry *source.Registry
	store    store.Store
	engine   *dedup.Engine
	breakers *resilience.Breakers
	opts     Options
}

// New creates an Orchestrator over the given registry and store.
func New(registry *source.Registry, st store.Store, opts Options) *Orchestrator {
	if opts.MaxBatchesPerRun <= 0 {
		opts.MaxBatchesPerRun = 10
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	return &Orchestrator{
		registry: registry,
		store:    st,
		engine:   dedup.NewEngine(st, opts.WindowDays),
		breakers: resilience.NewBreakers(opts.Circuit),
		opts:     opts,
	}
}

// Run executes one ingestion run over the connectors matching the filter.
// Source tasks run concurrently; failures are contained per source. The
// returned status is COMPLETED (no errors), PARTIAL (some sources failed
// or had item errors), or FAILED (every source failed).
func (o *Orchestrator) Run(ctx context.Context, filter source.Filter) (*model.RunResult, error) {
	connectors := o.registry.Select(filter)
	if len(connectors) == 0 {
		return nil, eris.New("ingest: no connectors match the filter")
	}

	start := time.Now()
	zap.L().Info("ingest: starting run",
		zap.Int("sources", len(connectors)),
		zap.Int("max_batches", o.opts.MaxBatchesPerRun),
	)

	result := &model.RunResult{Sources: make(map[string]model.SourceStats)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxConcurrent)
	for _, conn := range connectors {
		g.Go(func() error {
			stats, errs := o.runSource(gctx, conn)
			mu.Lock()
			result.Sources[conn.Name()] = stats
			result.Errors = append(result.Errors, errs...)
			mu.Unlock()
			return nil
		})
	}
	// Source tasks never return errors; each failure is contained in its
	// own stats.
	_ = g.Wait()

	o.finalize(result, time.Since(start))
	zap.L().Info("ingest: run finished",
		zap.String("status", string(result.Status)),
		zap.Int("processed", result.ItemsProcessed),
		zap.Int("created", result.ItemsCreated),
		zap.Int("skipped", result.ItemsSkipped),
		zap.Int("failed", result.ItemsFailed),
		zap.Int64("duration_ms", result.DurationMs),
	)
	return result, nil
}

func (o *Orchestrator) finalize(result *model.RunResult, elapsed time.Duration) {
	var failed, ran int
	for _, stats := range result.Sources {
		result.ItemsProcessed += stats.Found
		result.ItemsCreated += stats.NewRounds
		result.ItemsSkipped += stats.Skipped
		result.ItemsFailed += stats.Errors
		if stats.CircuitSkipped && stats.Batches == 0 {
			continue
		}
		ran++
		if stats.Failed {
			failed++
		}
	}
	result.DurationMs = elapsed.Milliseconds()

	switch {
	case ran > 0 && failed == ran:
		result.Status = model.RunFailed
	case failed == 0 && result.ItemsFailed == 0:
		result.Status = model.RunCompleted
	default:
		result.Status = model.RunPartial
	}
}

// runSource runs up to MaxBatchesPerRun sequential fetches for one
// connector. Pagination is strictly sequential: each cursor depends on the
// previous response.
func (o *Orchestrator) runSource(ctx context.Context, conn source.Connector) (model.SourceStats, []model.IngestError) {
	name := conn.Name()
	log := zap.L().With(zap.String("source", name))
	stats := model.SourceStats{Source: name}
	var errs []model.IngestError

	src, err := o.store.GetSource(ctx, name)
	if err != nil {
		log.Error("ingest: load checkpoint failed", zap.Error(err))
		stats.Failed = true
		stats.Errors++
		return stats, append(errs, ingestError(err, name, "checkpoint"))
	}
	if src == nil {
		src = &model.Source{
			Name:        name,
			DisplayName: conn.DisplayName(),
			Type:        conn.Type(),
			Cursor:      conn.InitialCursor(),
			IsActive:    true,
		}
	}
	if !src.IsActive {
		log.Debug("ingest: source deactivated, skipping")
		return stats, errs
	}
	if !src.Type.Polled() && src.HistoricalImportComplete {
		log.Debug("ingest: historical import complete, skipping")
		return stats, errs
	}

	circuit := o.breakers.Get(name)
	for range o.opts.MaxBatchesPerRun {
		if err := circuit.Allow(); err != nil {
			// Proactive skip, not a failure.
			log.Warn("ingest: circuit open, skipping source")
			stats.CircuitSkipped = true
			break
		}

		batch, err := resilience.RunVal(ctx, conn.Tier(), func(ctx context.Context) (*source.Batch, error) {
			return conn.Fetch(ctx, src.Cursor)
		})
		if err != nil {
			circuit.RecordFailure()
			log.Error("ingest: batch fetch failed", zap.Error(err))
			stats.Failed = true
			stats.Errors++
			errs = append(errs, ingestError(err, name, "fetch"))
			// Abandon the source for this run; the next run resumes from
			// the saved cursor.
			break
		}
		circuit.RecordSuccess()

		stats.Batches++
		stats.Found += len(batch.Items)
		for _, itemErr := range batch.ItemErrors {
			stats.Errors++
			errs = append(errs, ingestError(itemErr, name, "parse"))
		}

		roundsBefore := stats.NewRounds
		for i := range batch.Items {
			if procErr := o.processItem(ctx, conn, &batch.Items[i], &stats); procErr != nil {
				stats.Errors++
				errs = append(errs, ingestError(procErr, batch.Items[i].CompanyName, "persist"))
			}
		}

		src.Cursor = batch.NextCursor
		now := time.Now().UTC()
		src.LastImportAt = &now
		src.LastImportCount = len(batch.Items)
		src.TotalRounds += stats.NewRounds - roundsBefore
		if !batch.HasMore && !src.Type.Polled() {
			src.HistoricalImportComplete = true
		}
		if err := o.store.UpsertSource(ctx, src); err != nil {
			log.Error("ingest: checkpoint write failed", zap.Error(err))
			stats.Errors++
			errs = append(errs, ingestError(err, name, "checkpoint"))
		}

		if !batch.HasMore {
			break
		}
	}

	return stats, errs
}

// processItem classifies one record and applies the verdict to the store.
func (o *Orchestrator) processItem(ctx context.Context, conn source.Connector, rec *model.RawFundingRecord, stats *model.SourceStats) error {
	decision, err := o.engine.Classify(ctx, rec)
	if err != nil {
		return eris.Wrapf(err, "classify %s", rec.CompanyName)
	}
	stats.Parsed++

	if decision.Kind == dedup.MatchDuplicate {
		stats.Skipped++
		return nil
	}

	company, err := o.applyToCompany(ctx, rec, decision)
	if err != nil {
		return err
	}
	if decision.Kind == dedup.MatchNewCompany {
		stats.NewCompanies++
	}

	round := buildRound(rec, company.ID, conn.Type())
	if err := o.store.CreateRound(ctx, round); err != nil {
		if errors.Is(err, store.ErrDuplicateRound) {
			// A sibling task won the race on this source URL.
			stats.Skipped++
			return nil
		}
		return eris.Wrapf(err, "create round for %s", company.Slug)
	}
	stats.NewRounds++
	return nil
}

// applyToCompany creates or refreshes the company row for an accepted
// record. The slug-keyed upsert makes two sources racing on the same
// company converge on one row.
func (o *Orchestrator) applyToCompany(ctx context.Context, rec *model.RawFundingRecord, decision *dedup.Decision) (*model.Company, error) {
	company := decision.Company
	if company == nil {
		company = &model.Company{Name: rec.CompanyName, Slug: decision.Slug}
	}

	if rec.CompanyName != company.Name && !company.HasAlias(rec.CompanyName) {
		company.Aliases = append(company.Aliases, rec.CompanyName)
	}
	if company.LastRoundDate == nil || rec.Date.After(*company.LastRoundDate) {
		d := rec.Date
		company.LastRoundDate = &d
		if stage := rec.NormalizedStage(); stage != model.StageUnknown {
			company.LastRoundStage = stage
		}
	}
	if usd, ok := amountUSD(rec); ok {
		company.TotalRaisedUSD += usd
	}

	persisted, err := o.store.UpsertCompany(ctx, company)
	if err != nil {
		return nil, eris.Wrapf(err, "upsert company %s", company.Slug)
	}
	return persisted, nil
}

func buildRound(rec *model.RawFundingRecord, companyID string, srcType model.SourceType) *model.FundingRound {
	round := &model.FundingRound{
		CompanyID:       companyID,
		Amount:          rec.Amount,
		Currency:        rec.Currency,
		Stage:           rec.Stage,
		StageNormalized: rec.NormalizedStage(),
		Investors:       rec.Investors,
		LeadInvestor:    rec.LeadInvestor,
		FundingDate:     rec.Date,
		Source:          rec.SourceName,
		SourceURL:       rec.SourceURL,
		IsMigrated:      srcType == model.SourceTypeArchive,
	}
	if usd, ok := amountUSD(rec); ok {
		round.AmountUSD = &usd
	}
	return round
}

func amountUSD(rec *model.RawFundingRecord) (float64, bool) {
	if rec.Amount == nil || *rec.Amount <= 0 {
		return 0, false
	}
	return dedup.ToUSD(*rec.Amount, rec.Currency)
}

func ingestError(err error, item, phase string) model.IngestError {
	return model.IngestError{
		Message:   err.Error(),
		ItemName:  item,
		Phase:     phase,
		Timestamp: time.Now().UTC(),
	}
}

// BreakerStates exposes the per-source circuit states for status output.
func (o *Orchestrator) BreakerStates() map[string]resilience.CircuitState {
	return o.breakers.States()
}
