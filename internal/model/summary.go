package model

import "time"

// RunSummary captures metrics from a single conversion run.
type RunSummary struct {
	RunID           string
	InputPath       string
	InputSHA256     string
	OutputPath      string
	Family          Family
	Policy          Policy
	Cases           int
	Batches         int
	Substitutions   int
	Unscorable      int
	RowsSunk        int64
	DurationIngest  time.Duration
	DurationResolve time.Duration
	DurationPredict time.Duration
	DurationScore   time.Duration
	DurationWrite   time.Duration
	DurationTotal   time.Duration
}

