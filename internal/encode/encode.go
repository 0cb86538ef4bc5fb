// Package encode turns resolved per-case code lists into predictor input:
// sparse binary batches for classifiers, token sequences for translators.
package encode

import (
	"fmt"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/gyeh/icdiss/internal/model"
	"github.com/gyeh/icdiss/internal/normalize"
)

// BatchSize is the number of cases per classifier batch.
const BatchSize = 64

// Indexer maps known codes to category indices.
type Indexer interface {
	Index(code string) (int, bool)
	Size() int
}

// Batch is one [rows x vocabulary] sparse binary matrix. Row r holds case
// Offset+r.
type Batch struct {
	Number int
	Offset int
	Matrix *sparse.COO
}

// Rows is the number of cases in the batch.
func (b Batch) Rows() int {
	r, _ := b.Matrix.Dims()
	return r
}

// Entries returns the set (row, category) pairs ordered by row then category.
func (b Batch) Entries() [][2]int {
	entries := make([][2]int, 0, b.Matrix.NNZ())
	b.Matrix.DoNonZero(func(i, j int, _ float64) {
		entries = append(entries, [2]int{i, j})
	})
	sort.Slice(entries, func(x, y int) bool {
		if entries[x][0] != entries[y][0] {
			return entries[x][0] < entries[y][0]
		}
		return entries[x][1] < entries[y][1]
	})
	return entries
}

// Dense expands the batch for predictors that take dense input.
func (b Batch) Dense() *mat.Dense {
	return b.Matrix.ToDense()
}

// Input is the encoded form of a run: Batches for classifier families,
// Tokens for translator families.
type Input struct {
	Batches []Batch
	Tokens  [][]string
}

// Encode builds the input representation required by family.
func Encode(ix Indexer, cases [][]string, family model.Family) (*Input, error) {
	switch family {
	case model.FamilyDirectFFNN, model.FamilyIndirectFFNN:
		batches, err := Sparse(ix, cases, BatchSize)
		if err != nil {
			return nil, err
		}
		return &Input{Batches: batches}, nil
	case model.FamilyDirectNMT, model.FamilyIndirectNMT:
		return &Input{Tokens: Tokens(cases)}, nil
	default:
		_, err := model.ParseFamily(string(family))
		return nil, err
	}
}

// Sparse partitions cases into batches of batchSize and sets entry
// (row, Index(code)) = 1 for every code. Every code must be known.
func Sparse(ix Indexer, cases [][]string, batchSize int) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	batches := make([]Batch, 0, BatchCount(len(cases), batchSize))
	for offset := 0; offset < len(cases); offset += batchSize {
		chunk := cases[offset:min(offset+batchSize, len(cases))]

		var rows, cols []int
		for r, codes := range chunk {
			for _, code := range codes {
				idx, ok := ix.Index(code)
				if !ok {
					return nil, fmt.Errorf("case %d: code %q has no category index", offset+r, code)
				}
				rows = append(rows, r)
				cols = append(cols, idx)
			}
		}
		data := make([]float64, len(rows))
		for i := range data {
			data[i] = 1
		}

		batches = append(batches, Batch{
			Number: len(batches),
			Offset: offset,
			Matrix: sparse.NewCOO(len(chunk), ix.Size(), rows, cols, data),
		})
	}
	return batches, nil
}

// BatchCount is the number of batches n cases occupy.
func BatchCount(n, batchSize int) int {
	return (n + batchSize - 1) / batchSize
}

// Locate returns the batch and row holding case i.
func Locate(i, batchSize int) (batch, row int) {
	return i / batchSize, i % batchSize
}

// Tokens formats each case's codes for a translator, keeping case grouping
// and code order.
func Tokens(cases [][]string) [][]string {
	out := make([][]string, len(cases))
	for i, codes := range cases {
		toks := make([]string, len(codes))
		for j, code := range codes {
			toks[j] = normalize.TranslatorToken(code)
		}
		out[i] = toks
	}
	return out
}
