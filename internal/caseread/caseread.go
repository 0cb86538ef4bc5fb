// Package caseread parses case files in the long (code_per_row) or wide
// (case_per_row) layout into cases carrying their trauma codes.
package caseread

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/normalize"
)

var (
	// ErrMalformedRecord is returned for a record that does not fit the layout.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNoTraumaCodes is returned for a case without any S00-T88 code.
	ErrNoTraumaCodes = errors.New("case does not contain any trauma (S00-T88) ICD-10 codes")

	// ErrDuplicateCase is returned when a case_per_row file repeats an identifier.
	ErrDuplicateCase = errors.New("duplicate case identifier")
)

// ReadFile opens path and parses it with Read.
func ReadFile(path string, layout model.Layout) ([]model.Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open case file: %w", err)
	}
	defer f.Close()
	return Read(f, layout)
}

// Read parses cases from r. Long input is grouped by case identifier and
// returned in ascending identifier order; wide input keeps file order.
func Read(r io.Reader, layout model.Layout) ([]model.Case, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	switch layout {
	case model.LayoutCodePerRow:
		return readLong(reader)
	case model.LayoutCasePerRow:
		return readWide(reader)
	default:
		_, err := model.ParseLayout(string(layout))
		return nil, err
	}
}

func readLong(reader *csv.Reader) ([]model.Case, error) {
	groups := make(map[string]map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v (check that the code_per_row layout is correct)", ErrMalformedRecord, err)
		}
		if len(record) != 2 {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, code_per_row expects \"case_id,code\" (check that the layout is correct)",
				ErrMalformedRecord, line, len(record))
		}

		id := strings.TrimSpace(record[0])
		codes, ok := groups[id]
		if !ok {
			codes = make(map[string]struct{})
			groups[id] = codes
		}
		if code := normalize.NormalizeCode(record[1]); normalize.IsTrauma(code) {
			codes[code] = struct{}{}
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cases := make([]model.Case, 0, len(ids))
	for _, id := range ids {
		if len(groups[id]) == 0 {
			return nil, fmt.Errorf("case %q: %w", id, ErrNoTraumaCodes)
		}
		cases = append(cases, model.Case{ID: id, Codes: normalize.SortedSet(groups[id])})
	}
	return cases, nil
}

func readWide(reader *csv.Reader) ([]model.Case, error) {
	var cases []model.Case
	seen := make(map[string]int)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v (check that the case_per_row layout is correct)", ErrMalformedRecord, err)
		}
		line, _ := reader.FieldPos(0)

		id := strings.TrimSpace(record[0])
		if first, dup := seen[id]; dup {
			return nil, fmt.Errorf("case %q on lines %d and %d: %w; the input is probably not in the case_per_row layout",
				id, first, line, ErrDuplicateCase)
		}
		seen[id] = line

		codes := normalize.TraumaCodes(record[1:])
		if len(codes) == 0 {
			return nil, fmt.Errorf("case %q (line %d): %w", id, line, ErrNoTraumaCodes)
		}
		cases = append(cases, model.Case{ID: id, Codes: codes})
	}
	return cases, nil
}

// IDs returns the case identifiers in case order.
func IDs(cases []model.Case) []string {
	ids := make([]string, len(cases))
	for i, c := range cases {
		ids[i] = c.ID
	}
	return ids
}

// CodeSets returns the per-case code lists in case order.
func CodeSets(cases []model.Case) [][]string {
	sets := make([][]string, len(cases))
	for i, c := range cases {
		sets[i] = c.Codes
	}
	return sets
}
