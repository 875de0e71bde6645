package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"aide/internal/proactive"
)

// suggestCmd runs the proactive gate once for a domain
var suggestCmd = &cobra.Command{
	Use:   "suggest <domain>",
	Short: "Ask the proactive engine whether it has a suggestion for a domain",
	Long: `Runs the full proactive gate: trust, daily budget, cooldown and
confidence floor. Most invocations print nothing worth saying; that is
the engine working as intended.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer o.Close()

		sg, err := o.Suggest(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, proactive.ErrNoSuggestion) {
				fmt.Println("Nothing worth suggesting right now.")
				return nil
			}
			return err
		}

		fmt.Printf("Suggestion [%s] (%.0f%% confident):\n  %s\n", sg.ID, sg.Confidence*100, sg.Message)
		fmt.Println("Record the outcome with the suggestion id once the user responds.")
		return nil
	},
}
