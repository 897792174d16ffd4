package ingest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funding-cli/internal/dedup"
	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/resilience"
	"github.com/sells-group/funding-cli/internal/source"
)

// ConnectorResult is one connector's contribution to an aggregated query.
type ConnectorResult struct {
	Source    string                   `json:"source"`
	Success   bool                     `json:"success"`
	Data      []model.RawFundingRecord `json:"data,omitempty"`
	LatencyMs int64                    `json:"latency_ms"`
	Error     string                   `json:"error,omitempty"`
}

// SimilarResult is the merged answer to a similar-deals query.
type SimilarResult struct {
	Query      string                   `json:"query"`
	Matches    []model.RawFundingRecord `json:"matches"`
	Connectors []ConnectorResult        `json:"connectors"`
}

// SimilarDeals queries every selected connector's first page concurrently
// and merges the results: duplicates collapse on a normalized company key
// (first occurrence wins), then matches are ranked by name similarity to
// the query. minScore filters weak matches; 0 applies a 0.5 default.
func (o *Orchestrator) SimilarDeals(ctx context.Context, query string, filter source.Filter, minScore float64) (*SimilarResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, eris.New("ingest: empty similarity query")
	}
	if minScore <= 0 {
		minScore = 0.5
	}

	connectors := o.registry.Select(filter)
	if len(connectors) == 0 {
		return nil, eris.New("ingest: no connectors match the filter")
	}

	results := make([]ConnectorResult, len(connectors))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxConcurrent)
	for i, conn := range connectors {
		g.Go(func() error {
			res := o.queryConnector(gctx, conn)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	merged := mergeByCompany(results)

	type scored struct {
		rec   model.RawFundingRecord
		score float64
	}
	var matches []scored
	for _, rec := range merged {
		score := dedup.CombinedSimilarity(query, rec.CompanyName)
		if score >= minScore {
			matches = append(matches, scored{rec: rec, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := &SimilarResult{Query: query, Connectors: results}
	for _, m := range matches {
		out.Matches = append(out.Matches, m.rec)
	}
	return out, nil
}

// queryConnector fetches one connector's first page under its tier budget
// and breaker.
func (o *Orchestrator) queryConnector(ctx context.Context, conn source.Connector) ConnectorResult {
	res := ConnectorResult{Source: conn.Name()}
	circuit := o.breakers.Get(conn.Name())
	if err := circuit.Allow(); err != nil {
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	batch, err := resilience.RunVal(ctx, conn.Tier(), func(ctx context.Context) (*source.Batch, error) {
		return conn.Fetch(ctx, conn.InitialCursor())
	})
	res.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		circuit.RecordFailure()
		res.Error = err.Error()
		zap.L().Warn("aggregate: connector query failed",
			zap.String("source", conn.Name()),
			zap.Error(err),
		)
		return res
	}
	circuit.RecordSuccess()

	res.Success = true
	res.Data = batch.Items
	return res
}

// mergeByCompany flattens connector results, collapsing records that share
// a normalized company key. First occurrence wins, so connector order
// determines precedence.
func mergeByCompany(results []ConnectorResult) []model.RawFundingRecord {
	seen := make(map[string]bool)
	var out []model.RawFundingRecord
	for _, res := range results {
		for _, rec := range res.Data {
			key := strings.ToLower(strings.TrimSpace(rec.CompanyName))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, rec)
		}
	}
	return out
}
