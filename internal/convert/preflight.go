package convert

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/gyeh/icdiss/internal/codetable"
	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/normalize"
)

// PreflightResult holds the context resolved before any case is read.
type PreflightResult struct {
	// InputPath is the path of the case file, stored as given.
	InputPath string
	// InputSHA256 is the hex digest of the case file, recorded with the run.
	InputSHA256 string
	// InputSize is the case file size in bytes.
	InputSize int64
	// RunID identifies the run in logs and in the result sink.
	RunID uuid.UUID
	// Table is the code table for the run's model family.
	Table *codetable.Table
}

// Preflight hashes the input file and loads the code table.
func Preflight(inputPath, tablesDir string, family model.Family, layout model.RCSLayout) (*PreflightResult, error) {
	stat, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("preflight stat: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("preflight stat: %s is a directory", inputPath)
	}

	sha, err := normalize.FileHash(inputPath)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}

	table, err := codetable.Load(tablesDir, family, layout)
	if err != nil {
		return nil, fmt.Errorf("preflight tables: %w", err)
	}

	return &PreflightResult{
		InputPath:   inputPath,
		InputSHA256: sha,
		InputSize:   stat.Size(),
		RunID:       uuid.New(),
		Table:       table,
	}, nil
}
