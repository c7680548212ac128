package tracker

import (
	"sort"
	"time"

	"github.com/aicluster-lab/gpuboard/pkg/history"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
	"github.com/aicluster-lab/gpuboard/pkg/wandb"
)

const minutesPerHour = 60.0

// dailyDurations splits [start, end] into per-calendar-day hours at
// whole-minute granularity: minute ticks are counted per day, then converted
// to hours. A run crossing midnight contributes to both days, and the day
// totals sum to the run's wall-clock duration up to minute rounding.
func dailyDurations(start, end time.Time) map[time.Time]float64 {
	minutes := map[time.Time]int{}
	for t := start.Truncate(time.Minute); !t.After(end); t = t.Add(time.Minute) {
		minutes[utils.DateOf(t)]++
	}
	hours := make(map[time.Time]float64, len(minutes))
	for day, count := range minutes {
		hours[day] = float64(count) / minutesPerHour
	}
	return hours
}

// toDailyRows emits one persisted row per calendar day the run was active
// inside [queryStart, queryEnd]. Metric fields stay nil on days without a
// metric summary.
func toDailyRows(run *Run, queryStart, queryEnd, loggedAt time.Time) []history.DailyUsageRow {
	queryStart = utils.DateOf(queryStart)
	queryEnd = utils.DateOf(queryEnd)

	metricByDay := make(map[time.Time]DailyMetric, len(run.Metrics))
	for _, m := range run.Metrics {
		metricByDay[utils.DateOf(m.Date)] = m
	}

	durations := dailyDurations(run.CreatedAt, run.UpdatedAt)
	rows := make([]history.DailyUsageRow, 0, len(durations))
	for day, hours := range durations {
		if day.Before(queryStart) || day.After(queryEnd) {
			continue
		}
		row := history.DailyUsageRow{
			Date:         day,
			Team:         run.Team,
			Project:      run.Project,
			RunID:        run.ID,
			Tags:         run.Tags,
			CreatedAt:    run.CreatedAt,
			UpdatedAt:    run.UpdatedAt,
			State:        run.State,
			DurationHour: hours,
			GPUCount:     run.GPUCount,
			HostName:     run.HostName,
			LoggedAt:     loggedAt,
		}
		if m, ok := metricByDay[day]; ok {
			row.AvgGPUUtilization = m.AvgUtilization
			row.MaxGPUUtilization = m.MaxUtilization
			row.AvgGPUMemory = m.AvgMemory
			row.MaxGPUMemory = m.MaxMemory
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows
}

// summarizeMetrics buckets the sampled metrics stream by calendar day in the
// reporting timezone. Streams with at most one sample carry no usable signal
// and summarize to nil.
func summarizeMetrics(samples []wandb.MetricSample, loc *time.Location, queryStart, queryEnd time.Time) []DailyMetric {
	if len(samples) <= 1 {
		return nil
	}
	windowEnd := utils.DateOf(queryEnd).AddDate(0, 0, 1)
	queryStart = utils.DateOf(queryStart)

	type bucket struct {
		util []float64
		mem  []float64
	}
	byDay := map[time.Time]*bucket{}
	for _, s := range samples {
		local := s.Timestamp.In(loc)
		day := utils.DateOf(local)
		if day.Before(queryStart) || !day.Before(windowEnd) {
			continue
		}
		b := byDay[day]
		if b == nil {
			b = &bucket{}
			byDay[day] = b
		}
		b.util = append(b.util, s.GPUUtilization...)
		b.mem = append(b.mem, s.GPUMemory...)
	}

	metrics := make([]DailyMetric, 0, len(byDay))
	for day, b := range byDay {
		m := DailyMetric{Date: day}
		m.AvgUtilization, m.MaxUtilization = meanMax(b.util)
		m.AvgMemory, m.MaxMemory = meanMax(b.mem)
		if m.AvgUtilization == nil && m.AvgMemory == nil {
			continue
		}
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].Date.Before(metrics[j].Date) })
	return metrics
}

func meanMax(values []float64) (mean, maximum *float64) {
	if len(values) == 0 {
		return nil, nil
	}
	sum := 0.0
	top := values[0]
	for _, v := range values {
		sum += v
		if v > top {
			top = v
		}
	}
	avg := sum / float64(len(values))
	return &avg, &top
}
