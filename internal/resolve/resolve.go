// Package resolve maps per-case code sets onto the codes a model was
// trained on, handling codes absent from the code table by policy.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/normalize"
)

// Vocabulary is the part of the code table the resolver needs.
type Vocabulary interface {
	Known(code string) bool
	Sorted() []string
}

// Outcome holds the resolved code lists and the policy report. Exactly one
// of Substitutions, Emptied or Unknown is populated, matching Policy.
type Outcome struct {
	Policy model.Policy
	Codes  [][]string

	// Substitutions maps each unknown code to the known code used in its
	// place (closest).
	Substitutions map[string]string
	// Emptied lists the indices of cases left without any code (ignore).
	Emptied []int
	// Unknown is the sorted set of unknown codes across all cases (fail).
	Unknown []string
}

// UnknownCodesError aborts a fail-policy run.
type UnknownCodesError struct {
	Codes []string
}

func (e *UnknownCodesError) Error() string {
	return fmt.Sprintf("the models were not developed using %d ICD-10 code(s): %s",
		len(e.Codes), strings.Join(e.Codes, ", "))
}

// EmptiedCasesError aborts an ignore-policy run in which some cases lost
// every code.
type EmptiedCasesError struct {
	CaseIDs []string
}

func (e *EmptiedCasesError) Error() string {
	return fmt.Sprintf("%d case(s) have no codes to convert after ignoring untrained codes: %s",
		len(e.CaseIDs), strings.Join(e.CaseIDs, ", "))
}

// Resolve applies policy to every case. The returned lists are sorted and
// de-duplicated. The input lists are never modified.
func Resolve(vocab Vocabulary, cases [][]string, policy model.Policy) (*Outcome, error) {
	switch policy {
	case model.PolicyClosest:
		return resolveClosest(vocab, cases), nil
	case model.PolicyIgnore:
		return resolveIgnore(vocab, cases), nil
	case model.PolicyFail:
		return resolveFail(vocab, cases), nil
	default:
		_, err := model.ParsePolicy(string(policy))
		return nil, err
	}
}

// Err turns the report into the abort condition the caller must honour,
// or nil when the run may continue. ids are the case identifiers in case
// order. Substitutions never abort.
func (o *Outcome) Err(ids []string) error {
	switch o.Policy {
	case model.PolicyFail:
		if len(o.Unknown) > 0 {
			return &UnknownCodesError{Codes: o.Unknown}
		}
	case model.PolicyIgnore:
		if len(o.Emptied) > 0 {
			caseIDs := make([]string, len(o.Emptied))
			for i, idx := range o.Emptied {
				caseIDs[i] = ids[idx]
			}
			return &EmptiedCasesError{CaseIDs: caseIDs}
		}
	}
	return nil
}

func resolveClosest(vocab Vocabulary, cases [][]string) *Outcome {
	sorted := vocab.Sorted()
	subs := make(map[string]string)
	out := &Outcome{Policy: model.PolicyClosest, Codes: make([][]string, len(cases)), Substitutions: subs}

	for i, codes := range cases {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			if vocab.Known(code) {
				set[code] = struct{}{}
				continue
			}
			sub, ok := subs[code]
			if !ok {
				sub = Closest(sorted, code)
				subs[code] = sub
			}
			set[sub] = struct{}{}
		}
		out.Codes[i] = normalize.SortedSet(set)
	}
	return out
}

func resolveIgnore(vocab Vocabulary, cases [][]string) *Outcome {
	out := &Outcome{Policy: model.PolicyIgnore, Codes: make([][]string, len(cases))}
	for i, codes := range cases {
		out.Codes[i] = knownOnly(vocab, codes, nil)
		if len(out.Codes[i]) == 0 {
			out.Emptied = append(out.Emptied, i)
		}
	}
	return out
}

func resolveFail(vocab Vocabulary, cases [][]string) *Outcome {
	out := &Outcome{Policy: model.PolicyFail, Codes: make([][]string, len(cases))}
	unknown := make(map[string]struct{})
	for i, codes := range cases {
		out.Codes[i] = knownOnly(vocab, codes, unknown)
	}
	out.Unknown = normalize.SortedSet(unknown)
	return out
}

// knownOnly returns the known codes of one case as a sorted set, recording
// the unknown ones in unknown when it is non-nil.
func knownOnly(vocab Vocabulary, codes []string, unknown map[string]struct{}) []string {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if vocab.Known(code) {
			set[code] = struct{}{}
		} else if unknown != nil {
			unknown[code] = struct{}{}
		}
	}
	return normalize.SortedSet(set)
}

// Closest returns the known code nearest to code in sorted order: the
// neighbour at its insertion point sharing the longer prefix with it, the
// left (smaller) neighbour on a tie, or the boundary element when code
// sorts before or after every known code. sorted must be non-empty.
func Closest(sorted []string, code string) string {
	i := sort.SearchStrings(sorted, code)
	switch {
	case i == 0:
		return sorted[0]
	case i == len(sorted):
		return sorted[len(sorted)-1]
	}
	left, right := sorted[i-1], sorted[i]
	if commonPrefixLen(code, right) > commonPrefixLen(code, left) {
		return right
	}
	return left
}

func commonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
