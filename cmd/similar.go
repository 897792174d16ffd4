package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funding-cli/internal/source"
)

var (
	similarSourcesFile string
	similarOnly        []string
	similarMinScore    float64
)

var similarCmd = &cobra.Command{
	Use:   "similar <company name>",
	Short: "Find recent deals for companies with a similar name",
	Long:  "Queries every connector's first page concurrently, merges the results across sources, and ranks them by name similarity to the query.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		o, st, err := initOrchestrator(ctx, similarSourcesFile)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := o.SimilarDeals(ctx, args[0], source.Filter{Names: similarOnly}, similarMinScore)
		if err != nil {
			return eris.Wrap(err, "similar deals")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	similarCmd.Flags().StringVar(&similarSourcesFile, "sources", "", "path to the sources file (default from config)")
	similarCmd.Flags().StringSliceVar(&similarOnly, "only", nil, "restrict the query to these source names")
	similarCmd.Flags().Float64Var(&similarMinScore, "min-score", 0.5, "minimum name similarity score (0-1)")
	rootCmd.AddCommand(similarCmd)
}
