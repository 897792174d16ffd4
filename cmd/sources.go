package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funding-cli/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and manage source checkpoints",
	Long:  "Commands for listing source checkpoints and toggling sources on or off without losing their cursors.",
}

// -- sources list --

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List source checkpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		sources, err := st.ListSources(ctx)
		if err != nil {
			return eris.Wrap(err, "sources list")
		}

		if len(sources) == 0 {
			fmt.Fprintln(os.Stderr, "No sources have run yet.")
			return nil
		}

		formatSourcesList(os.Stdout, sources)
		return nil
	},
}

// -- sources enable / disable --

var sourcesEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Reactivate a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceActive(cmd, args[0], true)
	},
}

var sourcesDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Deactivate a source, keeping its cursor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceActive(cmd, args[0], false)
	},
}

func setSourceActive(cmd *cobra.Command, name string, active bool) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if err := st.SetSourceActive(ctx, name, active); err != nil {
		return eris.Wrapf(err, "set %s active=%t", name, active)
	}

	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Printf("Source %s %s.\n", name, state)
	return nil
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesEnableCmd)
	sourcesCmd.AddCommand(sourcesDisableCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// formatSourcesList writes a tabular list of source checkpoints to w.
func formatSourcesList(out io.Writer, sources []model.Source) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tACTIVE\tBACKFILLED\tROUNDS\tLAST IMPORT\tCURSOR")
	_, _ = fmt.Fprintln(w, "----\t----\t------\t----------\t------\t-----------\t------")

	for _, s := range sources {
		lastImport := "never"
		if s.LastImportAt != nil {
			lastImport = s.LastImportAt.Format("2006-01-02 15:04")
		}

		cursor := ""
		if s.Cursor != nil {
			cursor = *s.Cursor
			if len(cursor) > 40 {
				cursor = cursor[:37] + "..."
			}
		}

		backfilled := "-"
		if !s.Type.Polled() {
			backfilled = fmt.Sprintf("%t", s.HistoricalImportComplete)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\t%s\t%s\n",
			s.Name,
			s.Type,
			s.IsActive,
			backfilled,
			s.TotalRounds,
			lastImport,
			cursor,
		)
	}
	_ = w.Flush()
}
