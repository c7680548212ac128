package aggregator

import (
	"sort"
	"time"

	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/history"
	"github.com/aicluster-lab/gpuboard/pkg/schedule"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

const (
	gpusPerNode = 8
	hoursPerDay = 24
)

// Grain selects the rollup period of an aggregation pass.
type Grain string

const (
	GrainDaily   Grain = "daily"
	GrainWeekly  Grain = "weekly"
	GrainMonthly Grain = "monthly"
	GrainOverall Grain = "overall"
)

// Grains lists every supported grain in report order.
var Grains = []Grain{GrainDaily, GrainWeekly, GrainMonthly, GrainOverall}

// UtilizationRow is one (company, period) cell of a utilization table.
// UtilizationRate is capped at 100; RawUtilizationRate keeps the uncapped
// value for alerting. The averaged metric fields are null when no run in the
// group carried metric samples.
type UtilizationRow struct {
	PeriodKey          string   `json:"period_key"`
	Company            string   `json:"company"`
	TotalGPUHour       float64  `json:"total_gpu_hour"`
	UtilizationRate    float64  `json:"utilization_rate"`
	RawUtilizationRate float64  `json:"raw_utilization_rate"`
	AvgGPUUtilization  *float64 `json:"average_gpu_utilization"`
	MaxGPUUtilization  *float64 `json:"max_gpu_utilization"`
	AvgGPUMemory       *float64 `json:"average_gpu_memory"`
	MaxGPUMemory       *float64 `json:"max_gpu_memory"`
	RunCount           int      `json:"run_count"`
	AssignedGPUNode    int      `json:"assigned_gpu_node"`
	AssignedGPUHour    float64  `json:"assigned_gpu_hour"`
}

type groupKey struct {
	company string
	period  string
}

type usageGroup struct {
	totalGPUHour float64
	metricsHour  float64
	weightedUtil float64
	weightedMem  float64
	maxUtil      *float64
	maxMem       *float64
	runIDs       map[string]struct{}
}

type capacityGroup struct {
	firstDate    time.Time
	assignedNode int
	assignedHour float64
}

// Aggregate joins usage history against the expanded capacity series and
// rolls both up to the requested grain. Every (company, period) with
// scheduled capacity appears even with zero usage; usage on days without
// scheduled capacity still appears, with a zero denominator.
func Aggregate(
	rows []history.DailyUsageRow,
	capacity []schedule.CapacityDay,
	teamCompany map[string]string,
	grain Grain,
) []UtilizationRow {
	caps := groupCapacity(capacity, grain)
	usage := groupUsage(rows, teamCompany, grain)

	keys := make(map[groupKey]struct{}, len(caps)+len(usage))
	for k := range caps {
		keys[k] = struct{}{}
	}
	for k := range usage {
		keys[k] = struct{}{}
	}

	out := make([]UtilizationRow, 0, len(keys))
	for k := range keys {
		row := UtilizationRow{PeriodKey: k.period, Company: k.company}
		if c, ok := caps[k]; ok {
			row.AssignedGPUNode = c.assignedNode
			row.AssignedGPUHour = c.assignedHour
		}
		if u, ok := usage[k]; ok {
			row.TotalGPUHour = u.totalGPUHour
			row.RunCount = len(u.runIDs)
			row.MaxGPUUtilization = u.maxUtil
			row.MaxGPUMemory = u.maxMem
			if u.metricsHour > 0 {
				avgUtil := u.weightedUtil / u.metricsHour
				avgMem := u.weightedMem / u.metricsHour
				row.AvgGPUUtilization = &avgUtil
				row.AvgGPUMemory = &avgMem
			}
		}
		row.RawUtilizationRate, row.UtilizationRate = rates(row.TotalGPUHour, row.AssignedGPUHour)
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodKey != out[j].PeriodKey {
			return out[i].PeriodKey > out[j].PeriodKey
		}
		return out[i].Company < out[j].Company
	})
	return out
}

// rates returns the raw and capped utilization rate. Usage can transiently
// exceed nominal capacity, so the capped value saturates at 100 while the
// raw value is kept for sanity alerting.
func rates(totalHour, assignedHour float64) (raw, capped float64) {
	if assignedHour <= 0 {
		if totalHour > 0 {
			return 100, 100
		}
		return 0, 0
	}
	raw = totalHour / assignedHour * 100
	capped = raw
	if capped > 100 {
		capped = 100
	}
	return raw, capped
}

func groupCapacity(capacity []schedule.CapacityDay, grain Grain) map[groupKey]*capacityGroup {
	out := make(map[groupKey]*capacityGroup)
	for _, day := range capacity {
		if day.AssignedGPUNode <= 0 {
			continue
		}
		k := groupKey{company: day.Company, period: periodKey(grain, day.Date)}
		g, ok := out[k]
		if !ok {
			g = &capacityGroup{firstDate: day.Date, assignedNode: day.AssignedGPUNode}
			out[k] = g
		} else if day.Date.Before(g.firstDate) {
			g.firstDate = day.Date
			g.assignedNode = day.AssignedGPUNode
		}
		g.assignedHour += float64(day.AssignedGPUNode) * gpusPerNode * hoursPerDay
	}
	return out
}

func groupUsage(rows []history.DailyUsageRow, teamCompany map[string]string, grain Grain) map[groupKey]*usageGroup {
	out := make(map[groupKey]*usageGroup)
	for i := range rows {
		row := &rows[i]
		company, ok := teamCompany[row.Team]
		if !ok {
			klog.Warningf("Usage row for unknown team %s dropped from aggregation", row.Team)
			continue
		}
		k := groupKey{company: company, period: periodKey(grain, row.Date)}
		g, ok := out[k]
		if !ok {
			g = &usageGroup{runIDs: make(map[string]struct{})}
			out[k] = g
		}
		g.totalGPUHour += row.DurationHour * float64(row.GPUCount)
		g.runIDs[row.RunID] = struct{}{}
		if row.AvgGPUUtilization != nil {
			g.metricsHour += row.DurationHour
			g.weightedUtil += *row.AvgGPUUtilization * row.DurationHour
			if row.AvgGPUMemory != nil {
				g.weightedMem += *row.AvgGPUMemory * row.DurationHour
			}
		}
		g.maxUtil = maxNullable(g.maxUtil, row.MaxGPUUtilization)
		g.maxMem = maxNullable(g.maxMem, row.MaxGPUMemory)
	}
	return out
}

func periodKey(grain Grain, date time.Time) string {
	switch grain {
	case GrainWeekly:
		return utils.FormatDate(utils.WeekStart(date))
	case GrainMonthly:
		return utils.MonthKey(date)
	case GrainOverall:
		return "overall"
	default:
		return utils.FormatDate(date)
	}
}

func maxNullable(cur, candidate *float64) *float64 {
	if candidate == nil {
		return cur
	}
	if cur == nil || *candidate > *cur {
		v := *candidate
		return &v
	}
	return cur
}
