package pipeline

import (
	"sync"
	"time"

	"github.com/aicluster-lab/gpuboard/pkg/aggregator"
)

// Report is one published snapshot: every utilization table plus the weekly
// project summary of a single pipeline invocation. Reports are derived data,
// recomputed from history on every pass.
type Report struct {
	ID          string                                           `json:"id"`
	GeneratedAt time.Time                                        `json:"generated_at"`
	StartDate   string                                           `json:"start_date"`
	EndDate     string                                           `json:"end_date"`
	HistoryRows int                                              `json:"history_rows"`
	Tables      map[aggregator.Grain][]aggregator.UtilizationRow `json:"tables"`
	Summary     *aggregator.WeeklySummary                        `json:"summary"`
}

// Snapshot hands the latest report from the pipeline to the HTTP handlers.
type Snapshot struct {
	mu     sync.RWMutex
	report *Report
}

func (s *Snapshot) Set(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = r
}

// Latest returns the most recent report, or nil before the first pass.
func (s *Snapshot) Latest() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}
