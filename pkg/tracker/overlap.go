package tracker

import "sort"

// OverlapPair names two runs of the same team that were active on the same
// host at the same time. Double-booked hosts inflate the team's GPU hours,
// so pairs are surfaced in the weekly summary for manual review.
type OverlapPair struct {
	Team     string
	HostName string
	RunA     string
	RunB     string
}

// findOverlapPairs reports every pair of runs sharing a host with
// intersecting active intervals. Runs without a host name are skipped.
func findOverlapPairs(runs []*Run) []OverlapPair {
	byHost := make(map[string][]*Run)
	for _, r := range runs {
		if r.HostName == "" {
			continue
		}
		byHost[r.HostName] = append(byHost[r.HostName], r)
	}

	var pairs []OverlapPair
	for host, group := range byHost {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				// group is sorted by start, so the first non-overlapping
				// candidate ends the inner scan for a.
				if !b.CreatedAt.Before(a.UpdatedAt) {
					break
				}
				pairs = append(pairs, OverlapPair{
					Team:     a.Team,
					HostName: host,
					RunA:     a.Path(),
					RunB:     b.Path(),
				})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].HostName != pairs[j].HostName {
			return pairs[i].HostName < pairs[j].HostName
		}
		if pairs[i].RunA != pairs[j].RunA {
			return pairs[i].RunA < pairs[j].RunA
		}
		return pairs[i].RunB < pairs[j].RunB
	})
	return pairs
}
