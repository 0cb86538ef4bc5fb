// Package codetable loads the immutable lookup tables a conversion run
// works against: ICD-10 code <-> category index, category index -> RCS
// severity code, and category index -> direct ISS value.
package codetable

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gyeh/icdiss/internal/model"
)

// File names inside a table directory.
const (
	CodesFile = "icd10_codes.parquet"
	RCSFile   = "rcs_categories.parquet"
	ISSFile   = "iss_categories.parquet"
)

// MaxISS is the largest valid Injury Severity Score.
const MaxISS = 75

// CodeRow maps one ICD-10 code to its input category.
type CodeRow struct {
	Code  string `parquet:"code"`
	Index int64  `parquet:"index"`
}

// RCSRow maps an indirect model output category to an RCS code.
type RCSRow struct {
	Index int64  `parquet:"index"`
	RCS   string `parquet:"rcs"`
}

// ISSRow maps a direct model output category to an ISS value.
type ISSRow struct {
	Index int64  `parquet:"index"`
	ISS   string `parquet:"iss"`
}

// Table is the loaded, read-only code table. It is safe for concurrent use
// because nothing mutates it after Load.
type Table struct {
	codes  map[string]int
	sorted []string

	severity        map[int]model.SeverityRecord
	severityByToken map[string]model.SeverityRecord

	iss        map[int]int
	issByToken map[string]int
}

// Files lists the table files family needs.
func Files(family model.Family) []string {
	if family.Direct() {
		return []string{CodesFile, ISSFile}
	}
	return []string{CodesFile, RCSFile}
}

// Load reads the tables needed by family from dir. The code file is always
// required; the RCS file for indirect families and the ISS file for direct
// families.
func Load(dir string, family model.Family, layout model.RCSLayout) (*Table, error) {
	codeRows, err := ReadAll[CodeRow](filepath.Join(dir, CodesFile), "code", "index")
	if err != nil {
		return nil, fmt.Errorf("load code table: %w", err)
	}
	t, err := newTable(codeRows)
	if err != nil {
		return nil, err
	}

	if family.Direct() {
		rows, err := ReadAll[ISSRow](filepath.Join(dir, ISSFile), "index", "iss")
		if err != nil {
			return nil, fmt.Errorf("load iss table: %w", err)
		}
		if err := t.setISS(rows); err != nil {
			return nil, err
		}
	} else {
		rows, err := ReadAll[RCSRow](filepath.Join(dir, RCSFile), "index", "rcs")
		if err != nil {
			return nil, fmt.Errorf("load rcs table: %w", err)
		}
		if err := t.setSeverity(rows, layout); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// New builds a Table from in-memory rows. rcs and iss may be nil.
func New(codes []CodeRow, rcs []RCSRow, iss []ISSRow, layout model.RCSLayout) (*Table, error) {
	t, err := newTable(codes)
	if err != nil {
		return nil, err
	}
	if rcs != nil {
		if err := t.setSeverity(rcs, layout); err != nil {
			return nil, err
		}
	}
	if iss != nil {
		if err := t.setISS(iss); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Write stores a table set in dir using the standard file names. rcs and iss
// are skipped when empty.
func Write(dir string, codes []CodeRow, rcs []RCSRow, iss []ISSRow) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create table dir: %w", err)
	}
	if err := WriteAll(filepath.Join(dir, CodesFile), codes); err != nil {
		return err
	}
	if len(rcs) > 0 {
		if err := WriteAll(filepath.Join(dir, RCSFile), rcs); err != nil {
			return err
		}
	}
	if len(iss) > 0 {
		if err := WriteAll(filepath.Join(dir, ISSFile), iss); err != nil {
			return err
		}
	}
	return nil
}

func newTable(rows []CodeRow) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("code table is empty")
	}
	t := &Table{
		codes:  make(map[string]int, len(rows)),
		sorted: make([]string, 0, len(rows)),
	}
	seen := make([]bool, len(rows))
	for _, r := range rows {
		if r.Index < 0 || r.Index >= int64(len(rows)) {
			return nil, fmt.Errorf("code %q: index %d outside [0,%d)", r.Code, r.Index, len(rows))
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("code %q: duplicate index %d", r.Code, r.Index)
		}
		if _, dup := t.codes[r.Code]; dup {
			return nil, fmt.Errorf("duplicate code %q", r.Code)
		}
		seen[r.Index] = true
		t.codes[r.Code] = int(r.Index)
		t.sorted = append(t.sorted, r.Code)
	}
	sort.Strings(t.sorted)
	return t, nil
}

func (t *Table) setSeverity(rows []RCSRow, layout model.RCSLayout) error {
	t.severity = make(map[int]model.SeverityRecord, len(rows))
	t.severityByToken = make(map[string]model.SeverityRecord, len(rows))
	for _, r := range rows {
		rec, err := layout.Decode(r.RCS)
		if err != nil {
			return fmt.Errorf("rcs table index %d: %w", r.Index, err)
		}
		if _, dup := t.severity[int(r.Index)]; dup {
			return fmt.Errorf("rcs table: duplicate index %d", r.Index)
		}
		t.severity[int(r.Index)] = rec
		t.severityByToken[r.RCS] = rec
	}
	return nil
}

func (t *Table) setISS(rows []ISSRow) error {
	t.iss = make(map[int]int, len(rows))
	t.issByToken = make(map[string]int, len(rows))
	for _, r := range rows {
		v, err := strconv.Atoi(r.ISS)
		if err != nil || v < 0 || v > MaxISS {
			return fmt.Errorf("iss table index %d: %q is not an ISS value", r.Index, r.ISS)
		}
		if _, dup := t.iss[int(r.Index)]; dup {
			return fmt.Errorf("iss table: duplicate index %d", r.Index)
		}
		t.iss[int(r.Index)] = v
		t.issByToken[r.ISS] = v
	}
	return nil
}

// Size is the input vocabulary size, i.e. the number of known codes.
func (t *Table) Size() int {
	return len(t.sorted)
}

// Index returns the category index of a known code.
func (t *Table) Index(code string) (int, bool) {
	i, ok := t.codes[code]
	return i, ok
}

// Known reports whether code is in the table.
func (t *Table) Known(code string) bool {
	_, ok := t.codes[code]
	return ok
}

// Sorted returns all known codes in ascending order. Callers must not modify it.
func (t *Table) Sorted() []string {
	return t.sorted
}

// Severity decodes an indirect classifier output category.
func (t *Table) Severity(index int) (model.SeverityRecord, bool) {
	rec, ok := t.severity[index]
	return rec, ok
}

// SeverityToken decodes a translated RCS token; ok is false for tokens that
// are not RCS codes known to the table.
func (t *Table) SeverityToken(token string) (model.SeverityRecord, bool) {
	rec, ok := t.severityByToken[token]
	return rec, ok
}

// ISS returns the ISS value of a direct classifier output category.
func (t *Table) ISS(index int) (int, bool) {
	v, ok := t.iss[index]
	return v, ok
}

// ISSToken returns the ISS value of a translated token, ok is false when the
// token is not a possible ISS value.
func (t *Table) ISSToken(token string) (int, bool) {
	v, ok := t.issByToken[token]
	return v, ok
}
