package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd reports subsystem health and trust standing
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show subsystem health and trust standing",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer o.Close()

		h := o.HealthCheck()
		fmt.Printf("Store:     %s\n", okOrDown(h.Store))
		fmt.Printf("LLM:       %s\n", okOrDown(h.LLM))
		fmt.Printf("Scheduler: %s\n", okOrDown(h.Scheduler))

		sums, err := o.TrustSummary()
		if err != nil {
			return err
		}
		if len(sums) == 0 {
			fmt.Println("\nNo trust domains yet.")
			return nil
		}

		fmt.Println("\nTrust:")
		for _, s := range sums {
			fmt.Printf("  %-12s %-13s %d/%d ok (%.0f%%)",
				s.Domain, s.Level, s.Successes, s.Successes+s.Failures, s.Accuracy*100)
			if s.SuccessesToNext > 0 {
				fmt.Printf("  %d successes to %s", s.SuccessesToNext, s.NextLevel)
			}
			fmt.Println()
		}
		return nil
	},
}

func okOrDown(ok bool) string {
	if ok {
		return "ok"
	}
	return "down"
}
