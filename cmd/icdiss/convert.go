package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/gyeh/icdiss/internal/convert"
	"github.com/gyeh/icdiss/internal/db"
	"github.com/gyeh/icdiss/internal/exitcode"
	"github.com/gyeh/icdiss/internal/logging"
	"github.com/gyeh/icdiss/internal/predict"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a file of ICD-10 cases to severity scores",
	RunE:  runConvert,
}

func init() {
	addRunFlags(convertCmd)
	f := convertCmd.Flags()
	f.StringVar(&cfg.PredictorURL, "predictor-url", cfg.PredictorURL, "Base URL of the model server (or set ICDISS_PREDICTOR_URL)")
	f.DurationVar(&cfg.PredictorTimeout, "predictor-timeout", cfg.PredictorTimeout, "Timeout per predictor call")
	f.BoolVar(&cfg.NoProgress, "no-progress", false, "Do not draw a progress bar")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := cmd.Context()

	opts, err := cfg.Validate()
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	clf, tr, err := predict.New(predict.HTTPConfig{
		Endpoint: cfg.PredictorURL,
		Family:   opts.Family,
		Timeout:  cfg.PredictorTimeout,
	})
	if err != nil {
		log.Error().Err(err).Msg("predictor setup failed")
		os.Exit(exitcode.UsageError)
	}

	var pool *pgxpool.Pool
	if cfg.DSN != "" {
		pool, err = db.NewPool(ctx, cfg.DSN)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			os.Exit(exitcode.DBConnError)
		}
		defer pool.Close()
	}

	summary, err := convert.Run(ctx, log, convert.Params{
		InputPath:  cfg.InputPath,
		TablesDir:  cfg.TablesDir,
		Options:    *opts,
		Classifier: clf,
		Translator: tr,
		Pool:       pool,
		Progress:   !cfg.NoProgress && logging.Interactive(cfg.LogFormat),
	})
	if err != nil {
		code := exitCode(err)
		var pe *convert.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("conversion failed")
		} else {
			log.Error().Err(err).Msg("conversion failed")
		}
		if pool != nil {
			pool.Close()
		}
		os.Exit(code)
	}

	fmt.Printf("Conversion complete: %d cases, %d unscorable → %s (%.1fs)\n",
		summary.Cases, summary.Unscorable, summary.OutputPath, summary.DurationTotal.Seconds())
	return nil
}

// exitCode maps a pipeline failure to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitcode.Interrupted
	}
	var pe *convert.PipelineError
	if !errors.As(err, &pe) {
		return exitcode.ValidationError
	}
	switch pe.Phase {
	case convert.PhasePreflight, convert.PhaseIngest, convert.PhaseEncode:
		return exitcode.ValidationError
	case convert.PhaseResolve:
		return exitcode.ResolveError
	case convert.PhasePredict, convert.PhaseScore:
		return exitcode.PredictError
	case convert.PhaseWrite:
		return exitcode.WriteError
	case convert.PhaseSink:
		return exitcode.SinkError
	}
	return exitcode.ValidationError
}
