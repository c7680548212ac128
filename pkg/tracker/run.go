package tracker

import (
	"time"
)

// Run is a validated tracking-service run, with timestamps already converted
// to the reporting timezone. Metrics is nil until the metrics fetch stage
// completes, and stays nil when the fetch is exhausted or the stream had too
// few samples.
type Run struct {
	Team      string
	Project   string
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	State     string
	Tags      []string
	HostName  string
	GPUName   string
	GPUCount  int
	Metrics   []DailyMetric
}

func (r *Run) Path() string {
	return r.Team + "/" + r.Project + "/" + r.ID
}

// DailyMetric is one day's summary of a run's sampled GPU metrics: the mean
// and maximum across all devices and samples of that day.
type DailyMetric struct {
	Date           time.Time
	AvgUtilization *float64
	MaxUtilization *float64
	AvgMemory      *float64
	MaxMemory      *float64
}
