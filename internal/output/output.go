// Package output writes per-case severity results as CSV.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gyeh/icdiss/internal/model"
)

// IDColumn heads the case identifier column.
const IDColumn = "patient_id"

// Path returns the result path for an input file: the input's directory
// and stem followed by the output suffix, e.g. "cases.indirect_FFNN_iss.csv".
func Path(input string, family model.Family, o model.Outputs) string {
	dir := filepath.Dir(input)
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+"."+o.FileSuffix(family)+".csv")
}

// Header returns the output header for the requested outputs.
func Header(o model.Outputs) []string {
	return append([]string{IDColumn}, o.Columns()...)
}

// Write writes one line per case in case order. The file appears at path
// only once every line has been written.
func Write(path string, ids []string, scores []model.Score, o model.Outputs) error {
	if len(ids) != len(scores) {
		return fmt.Errorf("write results: %d case ids for %d scores", len(ids), len(scores))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header(o)); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, 0, 1+o.Width())
	for i, s := range scores {
		record = append(record[:0], ids[i])
		record = append(record, s.Fields(o)...)
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write case %q: %w", ids[i], err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
