package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/icdiss/internal/convert"
	"github.com/gyeh/icdiss/internal/exitcode"
	"github.com/gyeh/icdiss/internal/logging"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run ingestion and code resolution (no predictions, no writes)",
	RunE:  runPlan,
}

func init() {
	addRunFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	opts, err := cfg.Validate()
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	report, err := convert.Plan(log, cfg.InputPath, cfg.TablesDir, *opts)
	if err != nil {
		log.Error().Err(err).Msg("plan failed")
		os.Exit(exitCode(err))
	}

	fmt.Println("=== icdiss plan ===")
	fmt.Printf("Family:      %s\n", opts.Family)
	fmt.Printf("Policy:      %s\n", opts.Policy)
	fmt.Print(report)

	if report.Abort != nil {
		os.Exit(exitcode.ResolveError)
	}
	return nil
}
