package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

// ConfigError marks a capacity schedule that cannot be expanded. It is fatal
// for the affected company's part of the pipeline run.
type ConfigError struct {
	Company string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("schedule config of %s: %s", e.Company, e.Reason)
}

// CapacityDay is one day of a company's expanded capacity series. A node
// count of 0 means the contract has ended (or paused) on that day.
type CapacityDay struct {
	Company         string    `json:"company"`
	Date            time.Time `json:"date"`
	AssignedGPUNode int       `json:"assignedGpuNode"`
}

// Window is the allocation window of a company: capacity exists from Start
// up to and including End. End is the permanent time when the schedule does
// not terminate with a zero entry.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(d time.Time) bool {
	d = utils.DateOf(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Overlaps reports whether [from, to] intersects the window.
func (w Window) Overlaps(from, to time.Time) bool {
	return !utils.DateOf(to).Before(w.Start) && !utils.DateOf(from).After(w.End)
}

type schedulePoint struct {
	date  time.Time
	nodes int
}

// Resolver expands piecewise company schedules into dense per-day capacity
// series and derives allocation windows and the team to company mapping.
type Resolver struct {
	companies []config.Company
}

func NewResolver(companies []config.Company) *Resolver {
	return &Resolver{companies: companies}
}

// Expand returns the forward-filled capacity series of every company whose
// schedule parses, from its earliest schedule date through end inclusive.
// Broken schedules are reported per company without failing the others.
func (r *Resolver) Expand(end time.Time) ([]CapacityDay, map[string]error) {
	var days []CapacityDay
	failed := map[string]error{}
	for i := range r.companies {
		comp := &r.companies[i]
		companyDays, err := r.ExpandCompany(comp, end)
		if err != nil {
			failed[comp.Name] = err
			continue
		}
		days = append(days, companyDays...)
	}
	return days, failed
}

func (r *Resolver) ExpandCompany(comp *config.Company, end time.Time) ([]CapacityDay, error) {
	points, err := parseSchedule(comp)
	if err != nil {
		return nil, err
	}

	end = utils.DateOf(end)
	var days []CapacityDay
	next := 0
	nodes := 0
	for d := points[0].date; !d.After(end); d = d.AddDate(0, 0, 1) {
		for next < len(points) && !points[next].date.After(d) {
			nodes = points[next].nodes
			next++
		}
		days = append(days, CapacityDay{Company: comp.Name, Date: d, AssignedGPUNode: nodes})
	}
	return days, nil
}

// AllocationWindow returns when a company's runs count as allocated. The end
// is open (permanent) unless the schedule's last point assigns zero nodes.
func (r *Resolver) AllocationWindow(comp *config.Company) (Window, error) {
	points, err := parseSchedule(comp)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: points[0].date, End: utils.GetPermanentTime()}
	if last := points[len(points)-1]; last.nodes == 0 {
		w.End = last.date
	}
	return w, nil
}

// TeamCompany maps every configured team to its company.
func (r *Resolver) TeamCompany() map[string]string {
	mapping := map[string]string{}
	for i := range r.companies {
		for _, team := range r.companies[i].Teams {
			mapping[team] = r.companies[i].Name
		}
	}
	return mapping
}

func parseSchedule(comp *config.Company) ([]schedulePoint, error) {
	if len(comp.Schedule) == 0 {
		return nil, &ConfigError{Company: comp.Name, Reason: "schedule is empty"}
	}
	points := make([]schedulePoint, 0, len(comp.Schedule))
	seen := map[time.Time]bool{}
	for _, p := range comp.Schedule {
		d, err := utils.ParseDate(p.Date)
		if err != nil {
			return nil, &ConfigError{Company: comp.Name, Reason: fmt.Sprintf("malformed date %q", p.Date)}
		}
		d = utils.DateOf(d)
		if seen[d] {
			return nil, &ConfigError{Company: comp.Name, Reason: fmt.Sprintf("duplicate date %q", p.Date)}
		}
		seen[d] = true
		if p.AssignedGPUNode < 0 {
			return nil, &ConfigError{Company: comp.Name, Reason: fmt.Sprintf("negative node count on %q", p.Date)}
		}
		points = append(points, schedulePoint{date: d, nodes: p.AssignedGPUNode})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })
	return points, nil
}
