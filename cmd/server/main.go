// Package main is the entry point of the market research decision engine.
// It runs the regime-driven paper trading loop on a schedule and serves its state over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/xfw5/Market-Research/internal/config"
	"github.com/xfw5/Market-Research/pkg/logger"
)

var (
	flagSeed     string
	flagStrategy string
)

// rootCmd is the base command; without a subcommand it serves
var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Regime-driven equity decision engine",
	Long: `The engine classifies the market regime from an index and its moving averages,
exits positions that break their rules, and moves a paper portfolio toward the
regime's target exposure using ranked candidates.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagSeed, "seed", "", "Market data seed file imported at startup (overrides ENGINE_SEED_FILE)")
	rootCmd.PersistentFlags().StringVar(&flagStrategy, "strategy", "", "Strategy YAML file (overrides ENGINE_STRATEGY_FILE)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by every command
func setup() (*config.Config, zerolog.Logger, error) {
	if flagSeed != "" {
		os.Setenv("ENGINE_SEED_FILE", flagSeed)
	}
	if flagStrategy != "" {
		os.Setenv("ENGINE_STRATEGY_FILE", flagStrategy)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty || cfg.DevMode,
	})
	return cfg, log, nil
}
