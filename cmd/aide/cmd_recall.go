package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// recallCmd shows what the agent would bring into context for a query
var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Show the memory assembled for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer o.Close()

		query := strings.Join(args, " ")
		rc, err := o.BuildResponseContext(query)
		if err != nil {
			return err
		}

		if len(rc.Bundle.Entities) > 0 {
			fmt.Println("Entities:")
			for _, e := range rc.Bundle.Entities {
				fmt.Printf("  %s (%s)\n", e.Name, e.Type)
			}
		}
		if len(rc.Bundle.Facts) > 0 {
			fmt.Println("Facts:")
			for _, f := range rc.Bundle.Facts {
				fmt.Printf("  [%s] %s (%.0f%%)\n", f.Entity, f.Text, f.Confidence*100)
			}
		}
		if len(rc.Bundle.Reflections) > 0 {
			fmt.Println("Lessons:")
			for _, r := range rc.Bundle.Reflections {
				fmt.Printf("  %s\n", r.Lesson)
			}
		}
		if len(rc.Bundle.Facts)+len(rc.Bundle.Entities)+len(rc.Bundle.Reflections) == 0 {
			fmt.Println("Nothing relevant in memory yet.")
		}
		return nil
	},
}
