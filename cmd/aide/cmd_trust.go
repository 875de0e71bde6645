package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"aide/internal/trust"
)

// trustCmd shows trust standing, optionally for one domain
var trustCmd = &cobra.Command{
	Use:   "trust [domain]",
	Short: "Show trust standing, optionally for one domain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer o.Close()

		if len(args) == 1 {
			level, err := o.TrustLevel(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", args[0], level)
			return nil
		}

		sums, err := o.TrustSummary()
		if err != nil {
			return err
		}
		if len(sums) == 0 {
			fmt.Println("No trust domains yet.")
			return nil
		}
		for _, s := range sums {
			fmt.Printf("%-12s %-13s %d successes, %d failures (%.0f%% accuracy)\n",
				s.Domain, s.Level, s.Successes, s.Failures, s.Accuracy*100)
		}
		return nil
	},
}

// trustSetCmd applies a user override
var trustSetCmd = &cobra.Command{
	Use:   "set <domain> <level>",
	Short: "Override the trust level for a domain (0-4)",
	Long: `Sets a domain's trust level directly. Trust is normally earned
through recorded successes, but the user always has the final word.

Levels: 0=stranger 1=acquaintance 2=colleague 3=partner 4=operator`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("level must be a number 0-4, got %q", args[1])
		}

		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer o.Close()

		if err := o.SetTrustLevel(args[0], trust.Level(level)); err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", args[0], trust.Level(level))
		return nil
	},
}

func init() {
	trustCmd.AddCommand(trustSetCmd)
}
