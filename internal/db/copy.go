package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/icdiss/internal/model"
)

// ChannelSource implements pgx.CopyFromSource over a channel of score rows,
// so rows are built while COPY is already streaming.
type ChannelSource struct {
	ch      <-chan *model.ScoreRow
	current *model.ScoreRow
	rows    int64
}

// NewChannelSource creates a CopyFromSource backed by a channel.
func NewChannelSource(ch <-chan *model.ScoreRow) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Next advances to the next row. Returns false when the channel is closed.
func (s *ChannelSource) Next() bool {
	row, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = row
	s.rows++
	return true
}

func (s *ChannelSource) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

func (s *ChannelSource) Err() error {
	return nil
}

// Rows is the number of rows handed to COPY so far.
func (s *ChannelSource) Rows() int64 {
	return s.rows
}

var _ pgx.CopyFromSource = (*ChannelSource)(nil)
