package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicluster-lab/gpuboard/pkg/history"
	"github.com/aicluster-lab/gpuboard/pkg/schedule"
)

var teamCompany = map[string]string{"acme-nlp": "acme", "globex-ml": "globex"}

func histRow(date time.Time, team, runID string, hours float64, gpus int, avgUtil *float64) history.DailyUsageRow {
	return history.DailyUsageRow{
		Date:              date,
		Team:              team,
		Project:           "pretrain",
		RunID:             runID,
		DurationHour:      hours,
		GPUCount:          gpus,
		AvgGPUUtilization: avgUtil,
		AvgGPUMemory:      avgUtil,
		MaxGPUUtilization: avgUtil,
		MaxGPUMemory:      avgUtil,
	}
}

func f(v float64) *float64 { return &v }

func findRow(t *testing.T, rows []UtilizationRow, period, company string) UtilizationRow {
	t.Helper()
	for _, r := range rows {
		if r.PeriodKey == period && r.Company == company {
			return r
		}
	}
	t.Fatalf("no row for (%s, %s)", period, company)
	return UtilizationRow{}
}

func TestAggregateDaily(t *testing.T) {
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	// one node of 8 GPUs assigned; run A uses 4 GPUs for 4 hours with
	// metrics, run B holds 2 GPUs all day without metrics
	rows := []history.DailyUsageRow{
		histRow(day, "acme-nlp", "a", 4, 4, f(55)),
		histRow(day, "acme-nlp", "b", 24, 2, nil),
	}
	capacity := []schedule.CapacityDay{{Company: "acme", Date: day, AssignedGPUNode: 1}}

	table := Aggregate(rows, capacity, teamCompany, GrainDaily)
	require.Len(t, table, 1)

	row := findRow(t, table, "2026-01-06", "acme")
	assert.InDelta(t, 64.0, row.TotalGPUHour, 1e-9) // 4*4 + 24*2
	assert.Equal(t, 1, row.AssignedGPUNode)
	assert.InDelta(t, 192.0, row.AssignedGPUHour, 1e-9) // 1*8*24
	assert.InDelta(t, 100.0*64/192, row.UtilizationRate, 1e-9)
	assert.Equal(t, 2, row.RunCount)
	require.NotNil(t, row.AvgGPUUtilization)
	assert.InDelta(t, 55.0, *row.AvgGPUUtilization, 1e-9) // only run A carries metrics
}

func TestAggregateCapsRateAndKeepsRaw(t *testing.T) {
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	rows := []history.DailyUsageRow{
		histRow(day, "acme-nlp", "a", 24, 10, f(90)), // 240 GPU hours on a 192 hour budget
	}
	capacity := []schedule.CapacityDay{{Company: "acme", Date: day, AssignedGPUNode: 1}}

	table := Aggregate(rows, capacity, teamCompany, GrainDaily)
	row := findRow(t, table, "2026-01-06", "acme")
	assert.InDelta(t, 100.0, row.UtilizationRate, 1e-9)
	assert.InDelta(t, 125.0, row.RawUtilizationRate, 1e-9)
}

func TestAggregateNullSafeAverages(t *testing.T) {
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	rows := []history.DailyUsageRow{
		histRow(day, "acme-nlp", "a", 4, 4, nil),
		histRow(day, "acme-nlp", "b", 8, 2, nil),
	}
	capacity := []schedule.CapacityDay{{Company: "acme", Date: day, AssignedGPUNode: 1}}

	row := findRow(t, Aggregate(rows, capacity, teamCompany, GrainDaily), "2026-01-06", "acme")
	assert.Nil(t, row.AvgGPUUtilization)
	assert.Nil(t, row.AvgGPUMemory)
	assert.Nil(t, row.MaxGPUUtilization)
	assert.Positive(t, row.TotalGPUHour)
}

func TestAggregateScheduledCompanyWithoutUsageAppears(t *testing.T) {
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	capacity := []schedule.CapacityDay{
		{Company: "acme", Date: day, AssignedGPUNode: 1},
		{Company: "globex", Date: day, AssignedGPUNode: 2},
	}
	rows := []history.DailyUsageRow{histRow(day, "acme-nlp", "a", 4, 4, f(50))}

	table := Aggregate(rows, capacity, teamCompany, GrainDaily)
	require.Len(t, table, 2)

	idle := findRow(t, table, "2026-01-06", "globex")
	assert.Zero(t, idle.TotalGPUHour)
	assert.Zero(t, idle.UtilizationRate)
	assert.Zero(t, idle.RunCount)
	assert.Nil(t, idle.AvgGPUUtilization)
	assert.InDelta(t, 384.0, idle.AssignedGPUHour, 1e-9)
}

func TestAggregateUsageWithoutCapacitySaturates(t *testing.T) {
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	rows := []history.DailyUsageRow{histRow(day, "acme-nlp", "a", 4, 4, nil)}

	table := Aggregate(rows, nil, teamCompany, GrainDaily)
	row := findRow(t, table, "2026-01-06", "acme")
	assert.Zero(t, row.AssignedGPUHour)
	assert.InDelta(t, 100.0, row.UtilizationRate, 1e-9)
}

func TestAggregateWeeklyRollsUpToWeekStart(t *testing.T) {
	tue := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	wed := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	rows := []history.DailyUsageRow{
		histRow(tue, "acme-nlp", "a", 24, 4, f(40)),
		histRow(wed, "acme-nlp", "a", 24, 4, f(80)), // same run, distinct count stays 1
	}
	capacity := []schedule.CapacityDay{
		{Company: "acme", Date: tue, AssignedGPUNode: 1},
		{Company: "acme", Date: wed, AssignedGPUNode: 1},
	}

	table := Aggregate(rows, capacity, teamCompany, GrainWeekly)
	require.Len(t, table, 1)
	row := findRow(t, table, "2026-01-05", "acme") // Monday of that ISO week
	assert.InDelta(t, 192.0, row.TotalGPUHour, 1e-9)
	assert.InDelta(t, 384.0, row.AssignedGPUHour, 1e-9)
	assert.Equal(t, 1, row.RunCount)
	require.NotNil(t, row.AvgGPUUtilization)
	assert.InDelta(t, 60.0, *row.AvgGPUUtilization, 1e-9) // equal-duration weighting
	assert.InDelta(t, 80.0, *row.MaxGPUUtilization, 1e-9)
}

func TestAggregateOverall(t *testing.T) {
	tue := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	rows := []history.DailyUsageRow{histRow(tue, "acme-nlp", "a", 24, 4, f(40))}
	capacity := []schedule.CapacityDay{{Company: "acme", Date: tue, AssignedGPUNode: 1}}

	table := Aggregate(rows, capacity, teamCompany, GrainOverall)
	require.Len(t, table, 1)
	assert.Equal(t, "overall", table[0].PeriodKey)
}

func TestAggregateSkipsZeroCapacityDays(t *testing.T) {
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	capacity := []schedule.CapacityDay{
		{Company: "acme", Date: day, AssignedGPUNode: 0}, // contract ended
	}
	table := Aggregate(nil, capacity, teamCompany, GrainDaily)
	assert.Empty(t, table)
}
