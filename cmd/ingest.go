package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-cli/internal/model"
	"github.com/sells-group/funding-cli/internal/source"
)

var (
	ingestSourcesFile   string
	ingestOnly          []string
	ingestLegacyOnly    bool
	ingestPaginatedOnly bool
	ingestMaxBatches    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass over the configured sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if ingestMaxBatches > 0 {
			cfg.Ingest.MaxBatches = ingestMaxBatches
		}

		o, st, err := initOrchestrator(ctx, ingestSourcesFile)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := source.Filter{
			Names:         ingestOnly,
			LegacyOnly:    ingestLegacyOnly,
			PaginatedOnly: ingestPaginatedOnly,
		}

		result, err := o.Run(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "ingest run")
		}

		zap.L().Info("ingest finished",
			zap.String("status", string(result.Status)),
			zap.Int("created", result.ItemsCreated),
			zap.Int("skipped", result.ItemsSkipped),
			zap.Int("failed", result.ItemsFailed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}

		if result.Status == model.RunFailed {
			return eris.New("every selected source failed")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourcesFile, "sources", "", "path to the sources file (default from config)")
	ingestCmd.Flags().StringSliceVar(&ingestOnly, "only", nil, "restrict the run to these source names")
	ingestCmd.Flags().BoolVar(&ingestLegacyOnly, "legacy-only", false, "run only feed sources")
	ingestCmd.Flags().BoolVar(&ingestPaginatedOnly, "paginated-only", false, "run only paginated sources")
	ingestCmd.Flags().IntVar(&ingestMaxBatches, "max-batches", 0, "cap batches per source for this run")
	rootCmd.AddCommand(ingestCmd)
}
