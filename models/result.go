package models

import "time"

// EnhanceResult summarises one enhancement run.
type EnhanceResult struct {
	StartTime      time.Time
	EndTime        time.Time
	TotalRecords   int
	Processed      int
	CarriedForward int
	Failed         int
	Skipped        int
	FetchCount     int
	RetryCount     int
	Checkpoints    int
	FailedBookIDs  []string
}

// Duration returns the wall-clock duration of the run.
func (r *EnhanceResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
