package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateOfNormalizesToMidnightUTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	d := DateOf(time.Date(2026, 1, 6, 23, 45, 0, 0, jst))
	assert.Equal(t, time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), d)
}

func TestWeekStartIsMonday(t *testing.T) {
	mon := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, WeekStart(mon))
	assert.Equal(t, mon, WeekStart(mon.AddDate(0, 0, 3))) // Thursday
	assert.Equal(t, mon, WeekStart(mon.AddDate(0, 0, 6))) // Sunday
	assert.Equal(t, mon.AddDate(0, 0, 7), WeekStart(mon.AddDate(0, 0, 7)))
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-01", MonthKey(time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)))
}
