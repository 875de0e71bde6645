package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aide/internal/agent"
	"aide/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Shared state built in PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "aide",
	Short: "aide - a self-improving personal agent core",
	Long: `aide is the policy and memory core of a personal AI agent.

It remembers what it learns, earns autonomy per domain through a trust
ladder, reflects on its failures, and rations unsolicited suggestions.
This binary exposes operational commands; conversation transports sit
on top of the same core.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// newOrchestrator builds the wired agent for one command invocation.
// The caller owns Close.
func newOrchestrator() (*agent.Orchestrator, error) {
	return agent.New(cfg, nil, logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(nightlyCmd)
	rootCmd.AddCommand(trustCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(suggestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
