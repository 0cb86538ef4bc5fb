package convert

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/icdiss/internal/db"
	"github.com/gyeh/icdiss/internal/model"
)

const sinkBufferSize = 1024

// SinkResult holds metrics from the result sink phase.
type SinkResult struct {
	RowsCopied int64
	Duration   time.Duration
}

// Sink registers the run in scoring.runs and COPYs one row per case into
// scoring.case_scores. The run ends up complete, or failed with no score rows.
func Sink(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, pf *PreflightResult,
	summary *model.RunSummary, ids []string, scores []model.Score, outputs model.Outputs) (*SinkResult, error) {
	start := time.Now()

	err := db.RegisterRun(ctx, pool, db.RunRecord{
		RunID:       pf.RunID,
		InputFile:   pf.InputPath,
		InputSHA256: pf.InputSHA256,
		Family:      summary.Family,
		Policy:      summary.Policy,
		Outputs:     strings.Join(outputs.Columns(), ","),
		Cases:       len(ids),
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan *model.ScoreRow, sinkBufferSize)
	errCh := make(chan error, 1)

	// Producer goroutine: scores → rows
	go func() {
		defer close(ch)
		for i, s := range scores {
			row := model.NewScoreRow(pf.RunID, int64(i), ids[i], s, outputs)
			select {
			case ch <- row:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- nil
	}()

	source := db.NewChannelSource(ch)
	copied, copyErr := db.CopyScores(ctx, pool, source)
	if copyErr != nil {
		// Unblock the producer if COPY gave up early.
		for range ch {
		}
	}
	prodErr := <-errCh

	if err := firstErr(prodErr, copyErr); err != nil {
		markFailed(pool, log, pf, err)
		return nil, err
	}

	if err := db.FinishRun(ctx, pool, pf.RunID, db.StatusComplete, summary.Unscorable); err != nil {
		return nil, err
	}

	dur := time.Since(start)
	log.Info().
		Int64("rows_copied", copied).
		Str("duration", dur.String()).
		Float64("rows_per_sec", float64(copied)/dur.Seconds()).
		Msg("sink complete")

	return &SinkResult{RowsCopied: copied, Duration: dur}, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// markFailed records a failed run. It uses a fresh context so that a
// cancelled run is still recorded.
func markFailed(pool *pgxpool.Pool, log zerolog.Logger, pf *PreflightResult, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.DeleteRunScores(ctx, pool, pf.RunID); err != nil {
		log.Warn().Err(err).Msg("could not remove partial score rows")
	}
	if err := db.FinishRun(ctx, pool, pf.RunID, db.StatusFailed, 0); err != nil {
		log.Warn().Err(err).Msg("could not mark run failed")
	}
	log.Error().Err(cause).Msg("sink failed")
}
