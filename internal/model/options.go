package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownLayout is returned for an input layout other than code_per_row or case_per_row.
	ErrUnknownLayout = errors.New("unknown input layout")

	// ErrUnknownPolicy is returned for an unknown-code policy other than closest, ignore or fail.
	ErrUnknownPolicy = errors.New("unknown unknown-code policy")

	// ErrUnknownFamily is returned for a model family outside the four supported ones.
	ErrUnknownFamily = errors.New("unknown model family")

	// ErrUnknownRCSLayout is returned for an RCS layout name other than severity_first or region_first.
	ErrUnknownRCSLayout = errors.New("unknown RCS layout")

	// ErrNoOutputs is returned when an indirect run selects none of ISS, MAIS or chapter maxima.
	ErrNoOutputs = errors.New("no output selected")
)

// Layout is the record layout of an input file.
type Layout string

const (
	// LayoutCodePerRow is the long layout: one "case_id,code" pair per record.
	LayoutCodePerRow Layout = "code_per_row"
	// LayoutCasePerRow is the wide layout: "case_id,code_1,...,code_n" per record.
	LayoutCasePerRow Layout = "case_per_row"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case LayoutCodePerRow, LayoutCasePerRow:
		return l, nil
	}
	return "", fmt.Errorf("%w %q: can only accept %q or %q", ErrUnknownLayout, s, LayoutCodePerRow, LayoutCasePerRow)
}

// Policy selects how codes absent from the code table are handled.
type Policy string

const (
	PolicyClosest Policy = "closest"
	PolicyIgnore  Policy = "ignore"
	PolicyFail    Policy = "fail"
)

// ParsePolicy validates an unknown-code policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyClosest, PolicyIgnore, PolicyFail:
		return p, nil
	}
	return "", fmt.Errorf("%w %q: can only accept %q, %q or %q", ErrUnknownPolicy, s, PolicyClosest, PolicyIgnore, PolicyFail)
}

// Family identifies the predictor family. Direct families predict ISS
// outright; indirect families predict AIS/RCS categories that are
// aggregated into ISS, MAIS and chapter maxima.
type Family string

const (
	FamilyDirectFFNN   Family = "direct_FFNN"
	FamilyDirectNMT    Family = "direct_NMT"
	FamilyIndirectFFNN Family = "indirect_FFNN"
	FamilyIndirectNMT  Family = "indirect_NMT"
)

// AllFamilies lists the supported families.
var AllFamilies = []Family{FamilyDirectFFNN, FamilyDirectNMT, FamilyIndirectFFNN, FamilyIndirectNMT}

// ParseFamily validates a model family name.
func ParseFamily(s string) (Family, error) {
	for _, f := range AllFamilies {
		if string(f) == s {
			return f, nil
		}
	}
	names := make([]string, len(AllFamilies))
	for i, f := range AllFamilies {
		names[i] = string(f)
	}
	return "", fmt.Errorf("%w %q: can only accept %s", ErrUnknownFamily, s, strings.Join(names, ", "))
}

// Direct reports whether the family predicts ISS directly.
func (f Family) Direct() bool {
	return f == FamilyDirectFFNN || f == FamilyDirectNMT
}

// Classifier reports whether the family consumes sparse category batches
// (feed-forward networks) rather than token sequences (translators).
func (f Family) Classifier() bool {
	return f == FamilyDirectFFNN || f == FamilyIndirectFFNN
}

// Outputs is the set of severity outputs requested for a run.
type Outputs struct {
	ISS        bool
	MAIS       bool
	ChapterMax bool
}

// For returns the outputs that will actually be produced for the family:
// direct families always emit ISS only.
func (o Outputs) For(f Family) Outputs {
	if f.Direct() {
		return Outputs{ISS: true}
	}
	return o
}

// Validate rejects an empty selection.
func (o Outputs) Validate() error {
	if !o.ISS && !o.MAIS && !o.ChapterMax {
		return fmt.Errorf("%w: request at least one of ISS, MAIS or per-chapter maximum severity", ErrNoOutputs)
	}
	return nil
}

// Columns returns the metric column names in output order.
func (o Outputs) Columns() []string {
	var cols []string
	if o.ISS {
		cols = append(cols, "iss")
	}
	if o.MAIS {
		cols = append(cols, "mais")
	}
	if o.ChapterMax {
		cols = append(cols, ChapterColumns()...)
	}
	return cols
}

// Width is the number of metric columns.
func (o Outputs) Width() int {
	return len(o.Columns())
}

// FileSuffix returns the output file name addon, e.g. "indirect_FFNN_iss_mais".
func (o Outputs) FileSuffix(f Family) string {
	var b strings.Builder
	b.WriteString(string(f))
	if o.ISS {
		b.WriteString("_iss")
	}
	if o.MAIS {
		b.WriteString("_mais")
	}
	if o.ChapterMax {
		b.WriteString("_max_chapter_severity")
	}
	return b.String()
}
