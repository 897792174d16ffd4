package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/funding-cli/internal/extract"
	"github.com/sells-group/funding-cli/internal/fetcher"
	"github.com/sells-group/funding-cli/internal/ingest"
	"github.com/sells-group/funding-cli/internal/resilience"
	"github.com/sells-group/funding-cli/internal/source"
	"github.com/sells-group/funding-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "funding.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func circuitConfig() resilience.CircuitConfig {
	return resilience.FromCircuitConfig(
		cfg.Circuit.FailureThreshold,
		cfg.Circuit.CooldownSecs,
		cfg.Circuit.SuccessThreshold,
	)
}

// initRegistry builds the connector registry from the sources file,
// sharing one HTTP fetcher and one guarded extractor across connectors.
func initRegistry(sourcesFile string) (*source.Registry, error) {
	if sourcesFile == "" {
		sourcesFile = cfg.Ingest.SourcesFile
	}

	http := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		HostRate:  rate.Limit(cfg.HTTP.HostRate),
		HostBurst: cfg.HTTP.HostBurst,
	})
	ftp := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		User:     cfg.FTP.User,
		Password: cfg.FTP.Password,
		Timeout:  time.Duration(cfg.FTP.TimeoutSecs) * time.Second,
	})

	// The extractor gets its own breaker so a flapping model API degrades
	// feed sources without opening their fetch circuits.
	var ex extract.Extractor = extract.NewClaudeExtractor(cfg.Anthropic.Key, cfg.Anthropic.Model)
	ex = extract.NewGuarded(ex, resilience.NewCircuit("anthropic", circuitConfig()), resilience.TierFast)

	return source.LoadRegistry(sourcesFile, source.Deps{
		HTTP:          http,
		FTP:           ftp,
		Extractor:     ex,
		MinConfidence: cfg.Ingest.MinConfidence,
	})
}

func initOrchestrator(ctx context.Context, sourcesFile string) (*ingest.Orchestrator, store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	reg, err := initRegistry(sourcesFile)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}

	o := ingest.New(reg, st, ingest.Options{
		MaxBatchesPerRun: cfg.Ingest.MaxBatches,
		MaxConcurrent:    cfg.Ingest.MaxConcurrent,
		WindowDays:       cfg.Ingest.WindowDays,
		Circuit:          circuitConfig(),
	})
	return o, st, nil
}
