// Package convert runs a conversion: ICD-10 cases in, injury severity
// scores out.
package convert

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/icdiss/internal/caseread"
	"github.com/gyeh/icdiss/internal/config"
	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/output"
	"github.com/gyeh/icdiss/internal/predict"
)

// Pipeline phases, as reported by PipelineError.
const (
	PhasePreflight = "preflight"
	PhaseIngest    = "ingest"
	PhaseResolve   = "resolve"
	PhaseEncode    = "encode"
	PhasePredict   = "predict"
	PhaseScore     = "score"
	PhaseWrite     = "write"
	PhaseSink      = "sink"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Params is everything a run needs. Exactly one of Classifier and
// Translator is used, according to the family. A nil Pool disables the
// result sink.
type Params struct {
	InputPath  string
	TablesDir  string
	Options    config.Options
	Classifier predict.Classifier
	Translator predict.Translator
	Pool       *pgxpool.Pool
	Progress   bool
}

// Run executes the full conversion: preflight → ingest → resolve → encode →
// predict → score → write → sink.
func Run(ctx context.Context, log zerolog.Logger, p Params) (*model.RunSummary, error) {
	totalStart := time.Now()
	opts := p.Options

	// Phase 1: Preflight
	pf, err := Preflight(p.InputPath, p.TablesDir, opts.Family, opts.RCSLayout)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}
	log = log.With().Str("run_id", pf.RunID.String()).Logger()
	log.Info().
		Str("file", pf.InputPath).
		Str("sha256", pf.InputSHA256).
		Int("vocabulary", pf.Table.Size()).
		Str("family", string(opts.Family)).
		Msg("preflight complete")

	// Phase 2: Ingest
	ingestStart := time.Now()
	cases, err := caseread.ReadFile(pf.InputPath, opts.Layout)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseIngest, Err: err}
	}
	ingestDur := time.Since(ingestStart)
	log.Info().Int("cases", len(cases)).Str("layout", string(opts.Layout)).
		Str("duration", ingestDur.String()).Msg("ingest complete")

	// Phase 3: Resolve
	rr, err := Resolve(log, pf.Table, cases, opts.Policy)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseResolve, Err: err}
	}

	// Phase 4: Encode
	in, err := Encode(log, pf.Table, rr.Outcome.Codes, opts.Family)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseEncode, Err: err}
	}

	// Phase 5: Predict
	pr, err := Predict(ctx, log, in, opts.Family, p.Classifier, p.Translator, p.Progress)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePredict, Err: err}
	}

	// Phase 6: Score
	sr, err := Score(log, pf.Table, opts.Family, pr.Predictions)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseScore, Err: err}
	}

	// Phase 7: Write
	ids := caseread.IDs(cases)
	outPath := output.Path(pf.InputPath, opts.Family, opts.Outputs)
	writeStart := time.Now()
	if err := output.Write(outPath, ids, sr.Scores, opts.Outputs); err != nil {
		return nil, &PipelineError{Phase: PhaseWrite, Err: err}
	}
	writeDur := time.Since(writeStart)
	log.Info().Str("output", outPath).Int("rows", len(ids)).
		Str("duration", writeDur.String()).Msg("write complete")

	summary := &model.RunSummary{
		RunID:           pf.RunID.String(),
		InputPath:       pf.InputPath,
		InputSHA256:     pf.InputSHA256,
		OutputPath:      outPath,
		Family:          opts.Family,
		Policy:          opts.Policy,
		Cases:           len(cases),
		Batches:         pr.Batches,
		Substitutions:   len(rr.Outcome.Substitutions),
		Unscorable:      sr.Unscorable,
		DurationIngest:  ingestDur,
		DurationResolve: rr.Duration,
		DurationPredict: pr.Duration,
		DurationScore:   sr.Duration,
		DurationWrite:   writeDur,
	}

	// Phase 8: Sink (optional)
	if p.Pool != nil {
		sink, err := Sink(ctx, p.Pool, log, pf, summary, ids, sr.Scores, opts.Outputs)
		if err != nil {
			return summary, &PipelineError{Phase: PhaseSink, Err: err}
		}
		summary.RowsSunk = sink.RowsCopied
	}

	summary.DurationTotal = time.Since(totalStart)
	log.Info().
		Int("cases", summary.Cases).
		Int("substitutions", summary.Substitutions).
		Int("unscorable", summary.Unscorable).
		Int64("rows_sunk", summary.RowsSunk).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("conversion complete")

	return summary, nil
}
