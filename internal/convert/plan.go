package convert

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gyeh/icdiss/internal/caseread"
	"github.com/gyeh/icdiss/internal/config"
	"github.com/gyeh/icdiss/internal/encode"
	"github.com/gyeh/icdiss/internal/output"
	"github.com/gyeh/icdiss/internal/resolve"
)

// PlanReport describes what a conversion would do, without predicting.
type PlanReport struct {
	InputPath   string
	InputSHA256 string
	InputSize   int64
	OutputPath  string
	Vocabulary  int
	Cases       int
	Codes       int
	Batches     int
	Outcome     *resolve.Outcome
	// EmptiedIDs are the identifiers of cases Outcome.Emptied points at.
	EmptiedIDs []string
	// Abort is the condition that would stop the conversion after
	// resolution, or nil.
	Abort error
}

// Plan ingests and resolves the input and reports the outcome. Resolution
// aborts are reported in the PlanReport rather than returned.
func Plan(log zerolog.Logger, inputPath, tablesDir string, opts config.Options) (*PlanReport, error) {
	pf, err := Preflight(inputPath, tablesDir, opts.Family, opts.RCSLayout)
	if err != nil {
		return nil, &PipelineError{Phase: PhasePreflight, Err: err}
	}

	cases, err := caseread.ReadFile(pf.InputPath, opts.Layout)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseIngest, Err: err}
	}

	out, err := resolve.Resolve(pf.Table, caseread.CodeSets(cases), opts.Policy)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseResolve, Err: err}
	}
	logOutcome(log, out)

	ids := caseread.IDs(cases)
	report := &PlanReport{
		InputPath:   pf.InputPath,
		InputSHA256: pf.InputSHA256,
		InputSize:   pf.InputSize,
		OutputPath:  output.Path(pf.InputPath, opts.Family, opts.Outputs),
		Vocabulary:  pf.Table.Size(),
		Cases:       len(cases),
		Outcome:     out,
		Abort:       out.Err(ids),
	}
	for _, codes := range out.Codes {
		report.Codes += len(codes)
	}
	for _, i := range out.Emptied {
		report.EmptiedIDs = append(report.EmptiedIDs, ids[i])
	}
	if opts.Family.Classifier() {
		report.Batches = encode.BatchCount(len(cases), encode.BatchSize)
	} else {
		report.Batches = len(cases)
	}

	log.Info().
		Int("cases", report.Cases).
		Int("batches", report.Batches).
		Bool("would_abort", report.Abort != nil).
		Msg("plan complete")
	return report, nil
}

// String renders the report for the terminal.
func (r *PlanReport) String() string {
	s := fmt.Sprintf("File:        %s\nSHA-256:     %s\nSize:        %d bytes\nVocabulary:  %d codes\nCases:       %d\nCodes:       %d (after resolution)\nCalls:       %d\nOutput:      %s\n",
		r.InputPath, r.InputSHA256, r.InputSize, r.Vocabulary, r.Cases, r.Codes, r.Batches, r.OutputPath)
	if n := len(r.Outcome.Substitutions); n > 0 {
		s += fmt.Sprintf("Substituted: %d untrained code(s)\n", n)
	}
	if len(r.EmptiedIDs) > 0 {
		s += fmt.Sprintf("Emptied:     %v\n", r.EmptiedIDs)
	}
	if len(r.Outcome.Unknown) > 0 {
		s += fmt.Sprintf("Unknown:     %v\n", r.Outcome.Unknown)
	}
	if r.Abort != nil {
		s += fmt.Sprintf("Conversion would abort: %v\n", r.Abort)
	} else {
		s += "Conversion would proceed.\n"
	}
	return s
}
