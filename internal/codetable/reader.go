package codetable

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

const readBatchSize = 1024

// Reader wraps a parquet GenericReader for streaming code table rows.
type Reader[T any] struct {
	file   *os.File
	schema *parquet.Schema
	reader *parquet.GenericReader[T]
}

// Open opens a Parquet table file and returns a streaming Reader. The file
// schema must carry every required column.
func Open[T any](path string, required ...string) (*Reader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat table file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	if err := ValidateSchema(pf.Schema(), required...); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	r := parquet.NewGenericReader[T](pf)
	return &Reader[T]{file: f, schema: pf.Schema(), reader: r}, nil
}

// NumRows returns the total number of rows in the file.
func (r *Reader[T]) NumRows() int64 {
	return r.reader.NumRows()
}

// Read reads up to len(rows) records into the provided slice.
// Returns the number of rows read and io.EOF when done.
func (r *Reader[T]) Read(rows []T) (int, error) {
	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read parquet rows: %w", err)
	}
	return n, err
}

// Schema returns the schema stored in the file, for validation.
func (r *Reader[T]) Schema() *parquet.Schema {
	return r.schema
}

// Close releases all resources.
func (r *Reader[T]) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// ReadAll opens path, checks that the schema carries the required columns,
// and returns every row.
func ReadAll[T any](path string, required ...string) ([]T, error) {
	r, err := Open[T](path, required...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	all := make([]T, 0, r.NumRows())
	buf := make([]T, readBatchSize)
	for {
		n, readErr := r.Read(buf)
		all = append(all, buf[:n]...)
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("%s: %w", path, readErr)
		}
	}
	return all, nil
}

// WriteAll writes rows to a new Parquet file at path.
func WriteAll[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table file: %w", err)
	}

	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}
