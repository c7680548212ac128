package utils

import (
	"time"

	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/config"
)

const DateLayout = "2006-01-02"

// GetLocalTime returns the current time in the configured reporting timezone.
func GetLocalTime() time.Time {
	loc := GetLocation()
	return time.Now().In(loc)
}

func GetLocation() *time.Location {
	timeZone := config.GetConfig().Timezone
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		klog.Errorf("Failed to load location %q: %v", timeZone, err)
		return time.UTC
	}
	return loc
}

// GetPermanentTime is the open-ended upper bound for allocation windows whose
// schedule does not end with a zero entry.
func GetPermanentTime() time.Time {
	return time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
}

func IsPermanentTime(t time.Time) bool {
	return t.Equal(GetPermanentTime())
}

// DateOf truncates t to its calendar day. The result is normalized to
// midnight UTC so dates compare with Equal regardless of the source location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekStart returns the Monday of the ISO week containing d.
func WeekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return DateOf(d.AddDate(0, 0, -offset))
}

// MonthKey returns the year-month period key, e.g. "2024-03".
func MonthKey(d time.Time) string {
	return d.Format("2006-01")
}
