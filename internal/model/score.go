package model

import (
	"strconv"

	"github.com/google/uuid"
)

// NaN is the placeholder written for a metric that could not be derived.
const NaN = "NaN"

// Case is one clinical case after ingestion: an identifier and its sorted,
// de-duplicated trauma codes.
type Case struct {
	ID    string
	Codes []string
}

// Score is the severity outcome of one case. When Scorable is false the
// case had no scorable prediction and every requested column is NaN.
type Score struct {
	Scorable bool
	ISS      int
	MAIS     int
	Chapters [10]int // indexed like AllChapters
}

// Unscorable is the NaN sentinel score.
var Unscorable = Score{}

// Fields renders the requested metrics in output order.
func (s Score) Fields(o Outputs) []string {
	fields := make([]string, 0, o.Width())
	if !s.Scorable {
		for range o.Width() {
			fields = append(fields, NaN)
		}
		return fields
	}
	if o.ISS {
		fields = append(fields, strconv.Itoa(s.ISS))
	}
	if o.MAIS {
		fields = append(fields, strconv.Itoa(s.MAIS))
	}
	if o.ChapterMax {
		for _, v := range s.Chapters {
			fields = append(fields, strconv.Itoa(v))
		}
	}
	return fields
}

// ScoreRow is the DB-ready representation of one scored case.
// Unrequested or NaN metrics are NULL.
type ScoreRow struct {
	RunID    uuid.UUID
	Ordinal  int64
	CaseID   string
	ISS      *int16
	MAIS     *int16
	Chapters [10]*int16
}

// NewScoreRow converts a case score into a ScoreRow honouring the requested outputs.
func NewScoreRow(runID uuid.UUID, ordinal int64, caseID string, s Score, o Outputs) *ScoreRow {
	r := &ScoreRow{RunID: runID, Ordinal: ordinal, CaseID: caseID}
	if !s.Scorable {
		return r
	}
	if o.ISS {
		r.ISS = int16Ptr(s.ISS)
	}
	if o.MAIS {
		r.MAIS = int16Ptr(s.MAIS)
	}
	if o.ChapterMax {
		for i, v := range s.Chapters {
			r.Chapters[i] = int16Ptr(v)
		}
	}
	return r
}

// ScoreColumns returns the ordered column names for COPY into scoring.case_scores.
func ScoreColumns() []string {
	cols := []string{"run_id", "ordinal", "case_id", "iss", "mais"}
	return append(cols, ChapterColumns()...)
}

// CopyValues returns the row values in the same order as ScoreColumns().
func (r *ScoreRow) CopyValues() []any {
	vals := []any{r.RunID, r.Ordinal, r.CaseID, r.ISS, r.MAIS}
	for _, v := range r.Chapters {
		vals = append(vals, v)
	}
	return vals
}

func int16Ptr(v int) *int16 {
	i := int16(v)
	return &i
}
