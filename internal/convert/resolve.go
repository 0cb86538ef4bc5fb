package convert

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/icdiss/internal/caseread"
	"github.com/gyeh/icdiss/internal/codetable"
	"github.com/gyeh/icdiss/internal/encode"
	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/resolve"
)

// ResolveResult holds the resolver outcome of a run.
type ResolveResult struct {
	Outcome  *resolve.Outcome
	Duration time.Duration
}

// Resolve applies the unknown-code policy and returns an error when the
// policy's report aborts the run.
func Resolve(log zerolog.Logger, table *codetable.Table, cases []model.Case, policy model.Policy) (*ResolveResult, error) {
	start := time.Now()

	out, err := resolve.Resolve(table, caseread.CodeSets(cases), policy)
	if err != nil {
		return nil, err
	}
	logOutcome(log, out)
	if err := out.Err(caseread.IDs(cases)); err != nil {
		return nil, err
	}

	dur := time.Since(start)
	log.Info().
		Str("policy", string(policy)).
		Int("substitutions", len(out.Substitutions)).
		Str("duration", dur.String()).
		Msg("resolve complete")

	return &ResolveResult{Outcome: out, Duration: dur}, nil
}

func logOutcome(log zerolog.Logger, out *resolve.Outcome) {
	if len(out.Substitutions) > 0 {
		unknown := make([]string, 0, len(out.Substitutions))
		for code := range out.Substitutions {
			unknown = append(unknown, code)
		}
		sort.Strings(unknown)
		for _, code := range unknown {
			log.Debug().Str("code", code).Str("substitute", out.Substitutions[code]).Msg("closest code substituted")
		}
		log.Info().Int("codes", len(unknown)).Msg("untrained codes replaced by their closest trained code")
	}
	if len(out.Emptied) > 0 {
		log.Warn().Int("cases", len(out.Emptied)).Msg("cases left without codes after ignoring untrained codes")
	}
	if len(out.Unknown) > 0 {
		log.Warn().Strs("codes", out.Unknown).Msg("untrained codes found")
	}
}

// Encode builds the predictor input for family.
func Encode(log zerolog.Logger, table *codetable.Table, codes [][]string, family model.Family) (*encode.Input, error) {
	start := time.Now()
	in, err := encode.Encode(table, codes, family)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	log.Info().
		Int("batches", len(in.Batches)).
		Int("sequences", len(in.Tokens)).
		Str("duration", time.Since(start).String()).
		Msg("encode complete")
	return in, nil
}
