// Package predict defines the boundary to the trained models and the
// decision rules that turn raw classifier scores into category indices.
package predict

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gyeh/icdiss/internal/encode"
)

// IndirectThreshold is the minimum probability for an indirect classifier
// to report a category.
const IndirectThreshold = 0.3

// Standard errors for predictor operations
var (
	// ErrPredictorFailed is returned when the predictor endpoint rejects a call
	ErrPredictorFailed = errors.New("predictor call failed")

	// ErrShapeMismatch is returned when a response does not match its request
	ErrShapeMismatch = errors.New("predictor response shape mismatch")

	// ErrNoHypothesis is returned when a translator produced nothing
	ErrNoHypothesis = errors.New("translator returned no hypothesis")
)

// Classifier scores a sparse batch. For each row it returns one index
// (direct families) or the set of indices passing the threshold (indirect).
type Classifier interface {
	Predict(ctx context.Context, batch encode.Batch) ([][]int, error)
}

// Translator maps one case's token sequence to its best hypothesis.
type Translator interface {
	Translate(ctx context.Context, tokens []string) ([]string, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, batch encode.Batch) ([][]int, error)

func (f ClassifierFunc) Predict(ctx context.Context, batch encode.Batch) ([][]int, error) {
	return f(ctx, batch)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, tokens []string) ([]string, error)

func (f TranslatorFunc) Translate(ctx context.Context, tokens []string) ([]string, error) {
	return f(ctx, tokens)
}

// Argmax picks the highest-scoring index of every row. Ties go to the lower
// index.
func Argmax(scores mat.Matrix) [][]int {
	r, c := scores.Dims()
	out := make([][]int, r)
	row := make([]float64, c)
	for i := range r {
		mat.Row(row, i, scores)
		if c == 0 {
			out[i] = []int{}
			continue
		}
		out[i] = []int{floats.MaxIdx(row)}
	}
	return out
}

// Threshold keeps, per row, every index whose score is at least min, in
// ascending order.
func Threshold(scores mat.Matrix, min float64) [][]int {
	r, c := scores.Dims()
	out := make([][]int, r)
	for i := range r {
		picked := []int{}
		for j := range c {
			if scores.At(i, j) >= min {
				picked = append(picked, j)
			}
		}
		out[i] = picked
	}
	return out
}
