package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicluster-lab/gpuboard/pkg/history"
	"github.com/aicluster-lab/gpuboard/pkg/tracker"
)

func TestBuildWeeklySummary(t *testing.T) {
	// previous ISO week is Jan 5 .. Jan 11 when now is Wed Jan 14
	now := time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)
	inWeek := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)

	rows := []history.DailyUsageRow{
		histRow(inWeek, "acme-nlp", "a", 4, 4, f(50)),
		histRow(inWeek.AddDate(0, 0, 1), "acme-nlp", "a", 4, 4, f(50)),
		histRow(inWeek, "acme-nlp", "big", 2, 16, nil), // above one node: master-node run
		histRow(outside, "acme-nlp", "late", 8, 4, nil),
	}
	overlaps := []tracker.OverlapPair{{Team: "acme-nlp", HostName: "node-01", RunA: "x", RunB: "y"}}
	blacklist := []tracker.BlacklistEntry{{RunPath: "acme-nlp/pretrain/tagged", Tags: []string{"test"}}}

	summary := BuildWeeklySummary(rows, teamCompany, overlaps, blacklist, now)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), summary.WeekStart)
	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), summary.WeekEnd)
	require.Len(t, summary.Projects, 1)

	p := summary.Projects[0]
	assert.Equal(t, "acme", p.Company)
	assert.Equal(t, "pretrain", p.Project)
	assert.InDelta(t, 64.0, p.TotalGPUHour, 1e-9) // 4*4 + 4*4 + 2*16
	assert.Equal(t, 2, p.RunCount)
	assert.Equal(t, []string{"acme-nlp/pretrain/big"}, p.MasterNodeRuns)

	assert.Equal(t, overlaps, summary.Overlaps)
	assert.Equal(t, blacklist, summary.Blacklist)
}

func TestBuildWeeklySummaryEmptyWeek(t *testing.T) {
	now := time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)
	summary := BuildWeeklySummary(nil, teamCompany, nil, nil, now)
	assert.Empty(t, summary.Projects)
	assert.Empty(t, summary.Overlaps)
}
