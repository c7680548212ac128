package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

func day(s string) time.Time {
	d, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestExpandCompanyForwardFills(t *testing.T) {
	comp := &config.Company{
		Name: "acme",
		Schedule: []config.SchedulePoint{
			{Date: "2026-01-05", AssignedGPUNode: 2},
			{Date: "2026-01-01", AssignedGPUNode: 4},
			{Date: "2026-01-03", AssignedGPUNode: 0},
		},
	}
	r := NewResolver([]config.Company{*comp})

	days, err := r.ExpandCompany(comp, day("2026-01-06"))
	require.NoError(t, err)
	require.Len(t, days, 6)

	want := []int{4, 4, 0, 0, 2, 2}
	for i, d := range days {
		assert.Equal(t, "acme", d.Company)
		assert.Equal(t, day("2026-01-01").AddDate(0, 0, i), d.Date)
		assert.Equal(t, want[i], d.AssignedGPUNode, "day %d", i)
	}
}

func TestExpandIsolatesBrokenCompanies(t *testing.T) {
	companies := []config.Company{
		{Name: "good", Schedule: []config.SchedulePoint{{Date: "2026-01-01", AssignedGPUNode: 1}}},
		{Name: "empty"},
		{Name: "bad-date", Schedule: []config.SchedulePoint{{Date: "01/02/2026", AssignedGPUNode: 1}}},
	}
	r := NewResolver(companies)

	days, failed := r.Expand(day("2026-01-02"))
	assert.Len(t, days, 2)
	require.Len(t, failed, 2)
	var confErr *ConfigError
	require.ErrorAs(t, failed["empty"], &confErr)
	assert.Equal(t, "empty", confErr.Company)
	require.ErrorAs(t, failed["bad-date"], &confErr)
}

func TestParseScheduleRejections(t *testing.T) {
	tests := []struct {
		name     string
		schedule []config.SchedulePoint
	}{
		{"empty", nil},
		{"malformed date", []config.SchedulePoint{{Date: "tomorrow", AssignedGPUNode: 1}}},
		{"duplicate date", []config.SchedulePoint{
			{Date: "2026-01-01", AssignedGPUNode: 1},
			{Date: "2026-01-01", AssignedGPUNode: 2},
		}},
		{"negative count", []config.SchedulePoint{{Date: "2026-01-01", AssignedGPUNode: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp := &config.Company{Name: "acme", Schedule: tt.schedule}
			_, err := parseSchedule(comp)
			var confErr *ConfigError
			require.ErrorAs(t, err, &confErr)
		})
	}
}

func TestAllocationWindow(t *testing.T) {
	open := &config.Company{Name: "open", Schedule: []config.SchedulePoint{
		{Date: "2026-01-01", AssignedGPUNode: 4},
	}}
	closed := &config.Company{Name: "closed", Schedule: []config.SchedulePoint{
		{Date: "2026-01-01", AssignedGPUNode: 4},
		{Date: "2026-06-01", AssignedGPUNode: 0},
	}}
	r := NewResolver(nil)

	w, err := r.AllocationWindow(open)
	require.NoError(t, err)
	assert.Equal(t, day("2026-01-01"), w.Start)
	assert.True(t, utils.IsPermanentTime(w.End))
	assert.True(t, w.Contains(day("2030-01-01")))

	w, err = r.AllocationWindow(closed)
	require.NoError(t, err)
	assert.Equal(t, day("2026-06-01"), w.End)
	assert.False(t, w.Contains(day("2026-06-02")))
	assert.True(t, w.Overlaps(day("2026-05-30"), day("2026-07-01")))
	assert.False(t, w.Overlaps(day("2026-06-02"), day("2026-07-01")))
}

func TestTeamCompany(t *testing.T) {
	r := NewResolver([]config.Company{
		{Name: "acme", Teams: []string{"acme-nlp", "acme-cv"}},
		{Name: "globex", Teams: []string{"globex-ml"}},
	})
	mapping := r.TeamCompany()
	assert.Equal(t, map[string]string{
		"acme-nlp":  "acme",
		"acme-cv":   "acme",
		"globex-ml": "globex",
	}, mapping)
}
