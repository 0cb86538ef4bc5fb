package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/gyeh/icdiss/internal/codetable"
	"github.com/gyeh/icdiss/internal/encode"
	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/predict"
	"github.com/gyeh/icdiss/internal/severity"
)

var errNoPredictor = errors.New("no predictor configured for model family")

// PredictResult holds one raw prediction per case, in case order.
type PredictResult struct {
	Predictions []severity.Prediction
	Batches     int
	Duration    time.Duration
}

// Predict runs the predictor over the encoded input. Batches (or, for
// translators, cases) are sent one at a time and cancellation is checked
// between them.
func Predict(ctx context.Context, log zerolog.Logger, in *encode.Input, family model.Family,
	clf predict.Classifier, tr predict.Translator, progress bool) (*PredictResult, error) {
	start := time.Now()

	var (
		preds []severity.Prediction
		calls int
		err   error
	)
	if family.Classifier() {
		if clf == nil {
			return nil, fmt.Errorf("%w %s", errNoPredictor, family)
		}
		calls = len(in.Batches)
		preds, err = classify(ctx, in.Batches, clf, newBar(progress, calls, "classifying"))
	} else {
		if tr == nil {
			return nil, fmt.Errorf("%w %s", errNoPredictor, family)
		}
		calls = len(in.Tokens)
		preds, err = translate(ctx, in.Tokens, tr, newBar(progress, calls, "translating"))
	}
	if err != nil {
		return nil, err
	}

	dur := time.Since(start)
	log.Info().
		Int("cases", len(preds)).
		Int("calls", calls).
		Str("duration", dur.String()).
		Msg("predict complete")

	return &PredictResult{Predictions: preds, Batches: len(in.Batches), Duration: dur}, nil
}

func newBar(show bool, n int, desc string) *progressbar.ProgressBar {
	if !show {
		return progressbar.DefaultSilent(int64(n), desc)
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func classify(ctx context.Context, batches []encode.Batch, clf predict.Classifier, bar *progressbar.ProgressBar) ([]severity.Prediction, error) {
	defer bar.Finish()
	var preds []severity.Prediction
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := clf.Predict(ctx, b)
		if err != nil {
			return nil, err
		}
		if len(rows) != b.Rows() {
			return nil, fmt.Errorf("batch %d: %w: %d predictions for %d cases",
				b.Number, predict.ErrShapeMismatch, len(rows), b.Rows())
		}
		for _, idx := range rows {
			preds = append(preds, severity.Prediction{Indices: idx})
		}
		_ = bar.Add(1)
	}
	return preds, nil
}

func translate(ctx context.Context, seqs [][]string, tr predict.Translator, bar *progressbar.ProgressBar) ([]severity.Prediction, error) {
	defer bar.Finish()
	preds := make([]severity.Prediction, len(seqs))
	for i, toks := range seqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hyp, err := tr.Translate(ctx, toks)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}
		preds[i] = severity.Prediction{Tokens: hyp}
		_ = bar.Add(1)
	}
	return preds, nil
}

// ScoreResult holds one score per case, in case order.
type ScoreResult struct {
	Scores     []model.Score
	Unscorable int
	Duration   time.Duration
}

// Score turns raw predictions into severity scores.
func Score(log zerolog.Logger, table *codetable.Table, family model.Family, preds []severity.Prediction) (*ScoreResult, error) {
	start := time.Now()
	scores, err := severity.ScoreAll(table, family, preds)
	if err != nil {
		return nil, err
	}
	unscorable := severity.Unscorable(scores)

	dur := time.Since(start)
	log.Info().
		Int("cases", len(scores)).
		Int("unscorable", unscorable).
		Str("duration", dur.String()).
		Msg("score complete")

	return &ScoreResult{Scores: scores, Unscorable: unscorable, Duration: dur}, nil
}
