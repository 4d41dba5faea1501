package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xfw5/Market-Research/internal/di"
)

var cycleTimeout time.Duration

var runCycleCmd = &cobra.Command{
	Use:   "run-cycle",
	Short: "Refresh the index averages, run one decision cycle and print its report",
	Long: `Runs a single decision cycle against the configured data directory and prints the
cycle report as JSON. Useful with --seed for offline replays.

Examples:
  engine run-cycle --seed testdata/seed.yaml
  engine run-cycle --timeout 30s`,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(runCycleCmd)
	runCycleCmd.Flags().DurationVar(&cycleTimeout, "timeout", 2*time.Minute, "Cycle timeout")
}

func runCycle(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.Orchestrator.RefreshMovingAverages(); err != nil {
		log.Warn().Err(err).Msg("Moving average refresh failed")
	}

	report, err := container.Orchestrator.RunCycle(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
