package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LynnColeArt/vecadd/internal/bench"
)

func newCompareCmd() *cobra.Command {
	var perfRegress float64

	cmd := &cobra.Command{
		Use:   "compare <baseline.json> <current.json>",
		Short: "Compare two JSON benchmark reports for bandwidth regressions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if perfRegress < 1 {
				return fmt.Errorf("--perf-regress must be >= 1, got %v", perfRegress)
			}
			baseline, err := bench.LoadReport(args[0])
			if err != nil {
				return fmt.Errorf("load baseline: %w", err)
			}
			current, err := bench.LoadReport(args[1])
			if err != nil {
				return fmt.Errorf("load current: %w", err)
			}

			comparisons := bench.Compare(baseline, current, perfRegress)
			bench.PrintSummary(comparisons, cmd.OutOrStdout())

			failed := 0
			for _, c := range comparisons {
				if c.Failed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d measurements regressed or are missing", failed, len(comparisons))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&perfRegress, "perf-regress", 1.1, "Slowdown factor that fails the comparison (1.1 = 10% slower)")

	return cmd
}
