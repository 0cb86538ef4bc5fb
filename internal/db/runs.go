package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/icdiss/internal/model"
	embedsql "github.com/gyeh/icdiss/internal/sql"
)

// Run statuses stored in scoring.runs.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// RunRecord is the registration data of one conversion run.
type RunRecord struct {
	RunID       uuid.UUID
	InputFile   string
	InputSHA256 string
	Family      model.Family
	Policy      model.Policy
	Outputs     string
	Cases       int
}

// RegisterRun inserts the run in the running state.
func RegisterRun(ctx context.Context, pool *pgxpool.Pool, r RunRecord) error {
	_, err := pool.Exec(ctx, embedsql.RegisterRun,
		r.RunID, r.InputFile, r.InputSHA256, string(r.Family), string(r.Policy), r.Outputs, r.Cases)
	if err != nil {
		return fmt.Errorf("register run %s: %w", r.RunID, err)
	}
	return nil
}

// FinishRun records the final status of a run.
func FinishRun(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID, status string, unscorable int) error {
	tag, err := pool.Exec(ctx, embedsql.FinishRun, runID, status, unscorable)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("finish run %s: run not registered", runID)
	}
	return nil
}

// DeleteRunScores removes the score rows of a run, e.g. after a failed COPY.
func DeleteRunScores(ctx context.Context, pool *pgxpool.Pool, runID uuid.UUID) (int64, error) {
	tag, err := pool.Exec(ctx, embedsql.DeleteRunScores, runID)
	if err != nil {
		return 0, fmt.Errorf("delete scores of run %s: %w", runID, err)
	}
	return tag.RowsAffected(), nil
}

// CopyScores COPYs rows from src into scoring.case_scores.
func CopyScores(ctx context.Context, pool *pgxpool.Pool, src pgx.CopyFromSource) (int64, error) {
	n, err := pool.CopyFrom(ctx, pgx.Identifier{"scoring", "case_scores"}, model.ScoreColumns(), src)
	if err != nil {
		return n, fmt.Errorf("copy case scores: %w", err)
	}
	return n, nil
}
