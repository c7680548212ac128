package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/aicluster-lab/gpuboard/pkg/history"
	"github.com/aicluster-lab/gpuboard/pkg/tracker"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

// ProjectSummary aggregates one project's activity over a single week.
// MasterNodeRuns lists runs whose resolved GPU count exceeds a single node,
// which usually means a multi-node job logged from its master host.
type ProjectSummary struct {
	Company        string   `json:"company"`
	Team           string   `json:"team"`
	Project        string   `json:"project"`
	TotalGPUHour   float64  `json:"total_gpu_hour"`
	RunCount       int      `json:"run_count"`
	MasterNodeRuns []string `json:"master_node_runs"`
}

// WeeklySummary is the per-project review sheet for the previous week,
// including the anomalies surfaced during collection.
type WeeklySummary struct {
	WeekStart time.Time                `json:"week_start"`
	WeekEnd   time.Time                `json:"week_end"`
	Projects  []ProjectSummary         `json:"projects"`
	Overlaps  []tracker.OverlapPair    `json:"overlaps"`
	Blacklist []tracker.BlacklistEntry `json:"blacklist"`
}

const masterNodeGPUThreshold = 9

// BuildWeeklySummary summarizes the ISO week before now from merged history,
// attaching the overlap pairs and blacklist entries of the current pass.
func BuildWeeklySummary(
	rows []history.DailyUsageRow,
	teamCompany map[string]string,
	overlaps []tracker.OverlapPair,
	blacklist []tracker.BlacklistEntry,
	now time.Time,
) *WeeklySummary {
	weekStart := utils.WeekStart(now).AddDate(0, 0, -7)
	weekEnd := weekStart.AddDate(0, 0, 6)

	inWeek := lo.Filter(rows, func(r history.DailyUsageRow, _ int) bool {
		d := utils.DateOf(r.Date)
		return !d.Before(weekStart) && !d.After(weekEnd)
	})
	byProject := lo.GroupBy(inWeek, func(r history.DailyUsageRow) [2]string {
		return [2]string{r.Team, r.Project}
	})

	projects := make([]ProjectSummary, 0, len(byProject))
	for key, group := range byProject {
		s := ProjectSummary{
			Company: teamCompany[key[0]],
			Team:    key[0],
			Project: key[1],
		}
		masters := make(map[string]struct{})
		runs := make(map[string]struct{})
		for i := range group {
			r := &group[i]
			s.TotalGPUHour += r.DurationHour * float64(r.GPUCount)
			runs[r.RunID] = struct{}{}
			if r.GPUCount >= masterNodeGPUThreshold {
				masters[r.RunPath()] = struct{}{}
			}
		}
		s.RunCount = len(runs)
		s.MasterNodeRuns = lo.Keys(masters)
		sort.Strings(s.MasterNodeRuns)
		projects = append(projects, s)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Team != projects[j].Team {
			return projects[i].Team < projects[j].Team
		}
		return projects[i].Project < projects[j].Project
	})

	return &WeeklySummary{
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		Projects:  projects,
		Overlaps:  overlaps,
		Blacklist: blacklist,
	}
}
