package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xraph/tally"
	"github.com/xraph/tally/report/xlsx"
)

func newReportCmd(c *cli) *cobra.Command {
	var (
		snapshot string
		userID   string
		months   int
		top      int
		out      string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a user's dashboard and charts to a workbook",
		Example: `  tally report --snapshot ledger.json --user user_42 --months 12 --out report.xlsx`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := c.component("report")

			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if months <= 0 {
				return fmt.Errorf("--months must be positive")
			}

			eng, _, err := c.openSnapshot(snapshot)
			if err != nil {
				return err
			}

			ctx := tally.WithUser(cmd.Context(), userID)
			bundle, err := eng.GetReport(ctx, months, top)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := xlsx.WriteReport(bundle, f); err != nil {
				_ = f.Close() //nolint:errcheck // write error takes precedence
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			log.Info().
				Str("user", userID).
				Str("path", out).
				Str("total_revenue", bundle.Dashboard.TotalRevenue.String()).
				Str("pending_revenue", bundle.Dashboard.PendingRevenue.String()).
				Msg("report written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "ledger export to report on (JSON)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner whose ledger is reported")
	cmd.Flags().IntVarP(&months, "months", "m", 6, "trailing months in the revenue series")
	cmd.Flags().IntVar(&top, "top", 5, "number of top clients")
	cmd.Flags().StringVarP(&out, "out", "o", "report.xlsx", "workbook path")
	return cmd
}
