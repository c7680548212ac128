package history

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// DataIntegrityError marks a merge or decode result that must not be
// persisted: overwriting good history with it would lose data.
type DataIntegrityError struct {
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("history data integrity violated: %s", e.Reason)
}

// Merge reconciles freshly collected rows with previously persisted ones.
// For rows sharing a logical key the one with the greatest LoggedAt wins, so
// re-running collection over an already persisted window refreshes late
// metrics without creating duplicates. The output order is deterministic
// regardless of input order.
//
// Post-condition: the merged set is never smaller than the old set when new
// rows exist. A violation means keys collapsed unexpectedly and is returned
// as a DataIntegrityError; callers must abort before persisting.
func Merge(newRows, oldRows []DailyUsageRow) ([]DailyUsageRow, error) {
	if len(oldRows) == 0 {
		merged := make([]DailyUsageRow, len(newRows))
		copy(merged, newRows)
		sortRows(merged)
		return merged, nil
	}

	all := make([]DailyUsageRow, 0, len(newRows)+len(oldRows))
	all = append(all, newRows...)
	all = append(all, oldRows...)

	// Latest observation first; UniqBy keeps the first occurrence per key.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].LoggedAt.After(all[j].LoggedAt)
	})
	merged := lo.UniqBy(all, func(r DailyUsageRow) RowKey { return r.Key() })

	if len(newRows) > 0 && len(merged) < len(oldRows) {
		return nil, &DataIntegrityError{
			Reason: fmt.Sprintf("merged %d rows from %d old and %d new", len(merged), len(oldRows), len(newRows)),
		}
	}

	sortRows(merged)
	return merged, nil
}

func sortRows(rows []DailyUsageRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Team != rows[j].Team {
			return rows[i].Team < rows[j].Team
		}
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		if rows[i].Project != rows[j].Project {
			return rows[i].Project < rows[j].Project
		}
		return rows[i].RunID < rows[j].RunID
	})
}
