package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// nightlyCmd runs one maintenance cycle immediately
var nightlyCmd = &cobra.Command{
	Use:   "nightly",
	Short: "Run one maintenance cycle now (reflexion, expiry, sweeps)",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer o.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		summary, err := o.RunNightlyCycle(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Cycle finished in %s\n", summary.Duration.Round(time.Millisecond))
		fmt.Printf("  interactions analyzed:  %d\n", summary.Reflexion.InteractionsAnalyzed)
		fmt.Printf("  lessons stored:         %d\n", summary.Reflexion.LessonsStored)
		fmt.Printf("  suggestions expired:    %d\n", summary.SuggestionsExpired)
		fmt.Printf("  overdue predictions:    %d\n", summary.OverduePredictions)
		if summary.Consolidated {
			fmt.Printf("  consolidation: reviewed %d, merged %d, pruned %d\n",
				summary.Consolidation.Reviewed, summary.Consolidation.Merged, summary.Consolidation.Pruned)
		}
		return nil
	},
}
