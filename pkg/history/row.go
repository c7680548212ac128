package history

import (
	"time"

	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

// DailyUsageRow is one run's contribution to one calendar day. It is the unit
// of persistence and of aggregation. Metric pointers are nil when the run's
// metrics stream had too few samples to summarize.
type DailyUsageRow struct {
	Date              time.Time `json:"date"`
	Team              string    `json:"team"`
	Project           string    `json:"project"`
	RunID             string    `json:"runId"`
	Tags              []string  `json:"tags"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	State             string    `json:"state"`
	DurationHour      float64   `json:"durationHour"`
	GPUCount          int       `json:"gpuCount"`
	AvgGPUUtilization *float64  `json:"averageGpuUtilization"`
	AvgGPUMemory      *float64  `json:"averageGpuMemory"`
	MaxGPUUtilization *float64  `json:"maxGpuUtilization"`
	MaxGPUMemory      *float64  `json:"maxGpuMemory"`
	HostName          string    `json:"hostName"`
	LoggedAt          time.Time `json:"loggedAt"`
}

// RowKey is the logical identity of a row. Re-collecting the same historical
// window produces rows with equal keys and fresher LoggedAt values.
type RowKey struct {
	Date    time.Time
	Team    string
	Project string
	RunID   string
}

func (r *DailyUsageRow) Key() RowKey {
	// Dates are normalized to midnight UTC so the key is comparable with ==.
	return RowKey{Date: utils.DateOf(r.Date), Team: r.Team, Project: r.Project, RunID: r.RunID}
}

// RunPath is the tracking-service identifier team/project/run_id.
func (r *DailyUsageRow) RunPath() string {
	return r.Team + "/" + r.Project + "/" + r.RunID
}
