package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newReconcileCmd(c *cli) *cobra.Command {
	var (
		snapshot string
		out      string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute derived totals and report drift",
		Long: `Load a ledger export into memory, recompute every client revenue,
project count and project total from source records, and report where the
stored value had drifted.

With --out the corrected ledger is written back as a new export.`,
		Example: `  tally reconcile --snapshot ledger.json
  tally reconcile --snapshot ledger.json --out fixed.json --report-json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := c.component("reconcile")

			eng, st, err := c.openSnapshot(snapshot)
			if err != nil {
				return err
			}

			report, err := eng.Reconcile(cmd.Context())
			if err != nil {
				return err
			}

			for _, d := range report.Drifts {
				log.Warn().
					Str("kind", string(d.Kind)).
					Str("target", d.TargetID).
					Str("name", d.Name).
					Str("field", d.Field).
					Int64("stored", d.Stored).
					Int64("actual", d.Actual).
					Bool("corrected", d.Corrected).
					Msg("drift")
			}
			for _, e := range report.Errors {
				log.Error().Str("error", e).Msg("reconcile step failed")
			}
			log.Info().
				Int("clients", report.ClientsChecked).
				Int("projects", report.ProjectsChecked).
				Int("drifts", len(report.Drifts)).
				Int64("purged", report.Purged).
				Dur("took", report.FinishedAt.Sub(report.StartedAt)).
				Msg("reconciliation complete")

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			}

			if out != "" {
				if err := writeSnapshot(out, st); err != nil {
					return err
				}
				log.Info().Str("path", out).Msg("corrected snapshot written")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "", "ledger export to check (JSON)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the corrected ledger to this path")
	cmd.Flags().BoolVar(&asJSON, "report-json", false, "print the drift report as JSON on stdout")
	return cmd
}
