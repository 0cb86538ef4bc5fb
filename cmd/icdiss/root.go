package main

import (
	"github.com/spf13/cobra"

	"github.com/gyeh/icdiss/internal/config"
)

var (
	cfg        = config.Default()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "icdiss",
	Short: "ICD-10 → injury severity converter",
	Long: "Converts ICD-10 injury codes to Injury Severity Score (ISS), maximum AIS (MAIS) " +
		"and per-chapter maximum severity using trained prediction models.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file with run defaults")
	pf.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Postgres connection string for the result sink (or set ICDISS_DSN)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json (or set ICDISS_LOG_FORMAT)")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
}

// loadConfig layers environment and YAML values under explicit flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if err := cfg.LoadEnv(changed); err != nil {
		return err
	}
	if configPath != "" {
		if err := cfg.LoadFromFile(configPath, changed); err != nil {
			return err
		}
	}
	return nil
}

// addRunFlags registers the flags shared by convert and plan.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&cfg.InputPath, "input", "i", "", "Path to the CSV file of cases (required)")
	f.StringVar(&cfg.Layout, "layout", cfg.Layout, "Input layout: code_per_row or case_per_row")
	f.StringVar(&cfg.Policy, "unknown-policy", cfg.Policy, "Untrained code handling: closest, ignore or fail")
	f.StringVar(&cfg.Family, "family", cfg.Family, "Model family: direct_FFNN, direct_NMT, indirect_FFNN or indirect_NMT")
	f.StringVar(&cfg.RCSLayout, "rcs-layout", cfg.RCSLayout, "RCS digit order: severity_first or region_first")
	f.StringVar(&cfg.TablesDir, "tables", cfg.TablesDir, "Directory holding the code table Parquet files (or set ICDISS_TABLES_DIR)")
	f.BoolVar(&cfg.ISS, "iss", cfg.ISS, "Output ISS (indirect families)")
	f.BoolVar(&cfg.MAIS, "mais", cfg.MAIS, "Output MAIS (indirect families)")
	f.BoolVar(&cfg.ChapterMax, "max-chapter-severity", cfg.ChapterMax, "Output the maximum severity per AIS chapter (indirect families)")
	_ = cmd.MarkFlagRequired("input")
}
