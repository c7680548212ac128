package tracker

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/history"
	"github.com/aicluster-lab/gpuboard/pkg/metrics"
	"github.com/aicluster-lab/gpuboard/pkg/schedule"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
	"github.com/aicluster-lab/gpuboard/pkg/wandb"
)

// BlacklistEntry records a run that was dropped solely because of an ignore
// tag. The list is persisted for audit alongside the usage history.
type BlacklistEntry struct {
	RunPath string   `json:"run_path"`
	Tags    []string `json:"tags"`
}

// Result is everything one collection pass produces.
type Result struct {
	Rows      []history.DailyUsageRow
	Overlaps  []OverlapPair
	Blacklist []BlacklistEntry
}

// Collector walks the tracking service across teams, projects and runs and
// derives the per-day usage rows. Teams and projects are processed
// sequentially; only the metrics fetches of one project fan out to a bounded
// worker pool. Transport failures are scoped: a failing team or project
// never aborts its siblings.
type Collector struct {
	api        wandb.Interface
	resolver   *schedule.Resolver
	gpuCounts  *GPUCountResolver
	retry      RetryPolicy
	maxWorkers int
	ignoreTags map[string]bool
	companies  []config.Company
	loc        *time.Location
}

func NewCollector(api wandb.Interface, resolver *schedule.Resolver, cfg *config.Config, loc *time.Location) *Collector {
	ignore := make(map[string]bool, len(cfg.IgnoreTags))
	for _, t := range cfg.IgnoreTags {
		ignore[strings.ToLower(t)] = true
	}
	return &Collector{
		api:       api,
		resolver:  resolver,
		gpuCounts: NewGPUCountResolver(cfg.GPUCountRules),
		retry: RetryPolicy{
			MaxAttempts: cfg.Collector.MaxRetries,
			BaseTimeout: time.Duration(cfg.Collector.BaseTimeoutSeconds) * time.Second,
			Backoff:     time.Duration(cfg.Collector.BackoffSeconds) * time.Second,
		},
		maxWorkers: cfg.Collector.MaxWorkers,
		ignoreTags: ignore,
		companies:  cfg.Companies,
		loc:        loc,
	}
}

// Collect gathers usage rows for every configured team over [start, end].
func (c *Collector) Collect(ctx context.Context, start, end time.Time) *Result {
	loggedAt := time.Now().In(c.loc)
	result := &Result{}

	for i := range c.companies {
		comp := &c.companies[i]
		window, err := c.resolver.AllocationWindow(comp)
		if err != nil {
			klog.Warningf("Skipping company %s: %v", comp.Name, err)
			continue
		}
		for _, team := range comp.Teams {
			if !window.Overlaps(start, end) {
				klog.Infof("Team %s: not started yet or already ended", team)
				continue
			}
			c.collectTeam(ctx, comp, team, window, start, end, loggedAt, result)
		}
	}
	return result
}

func (c *Collector) collectTeam(
	ctx context.Context,
	comp *config.Company,
	team string,
	window schedule.Window,
	start, end, loggedAt time.Time,
	result *Result,
) {
	projects, err := c.listProjects(ctx, comp, team)
	if err != nil {
		metrics.TransportErrors.WithLabelValues("projects").Inc()
		klog.Warningf("Skipping team %s: listing projects failed: %v", team, err)
		return
	}

	var teamRuns []*Run
	for _, project := range projects {
		nodes := c.queryRuns(ctx, team, project)
		runs := make([]*Run, 0, len(nodes))
		for i := range nodes {
			run, blacklisted := c.validateNode(team, project, &nodes[i], window, start, end)
			if blacklisted != nil {
				result.Blacklist = append(result.Blacklist, *blacklisted)
			}
			if run != nil {
				runs = append(runs, run)
			}
		}
		klog.Infof("Team %s project %s: %d valid runs out of %d nodes", team, project, len(runs), len(nodes))
		c.fetchProjectMetrics(ctx, runs, start, end)
		teamRuns = append(teamRuns, runs...)
	}

	result.Overlaps = append(result.Overlaps, findOverlapPairs(teamRuns)...)
	for _, run := range teamRuns {
		result.Rows = append(result.Rows, toDailyRows(run, start, end, loggedAt)...)
	}
	metrics.RunsCollected.WithLabelValues(team).Add(float64(len(teamRuns)))
}

// listProjects applies include-then-exclude glob filtering to the team's
// project names.
func (c *Collector) listProjects(ctx context.Context, comp *config.Company, team string) ([]string, error) {
	names, err := c.api.ListProjects(ctx, team)
	if err != nil {
		return nil, err
	}
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if comp.IncludeProjectPattern != "" {
			if ok, _ := path.Match(comp.IncludeProjectPattern, name); !ok {
				continue
			}
		} else if comp.IgnoreProjectPattern != "" {
			if ok, _ := path.Match(comp.IgnoreProjectPattern, name); ok {
				continue
			}
		}
		filtered = append(filtered, name)
	}
	return filtered, nil
}

// queryRuns paginates all runs of a project. A failure mid-pagination
// degrades to the nodes accumulated so far instead of dropping the project.
func (c *Collector) queryRuns(ctx context.Context, team, project string) []wandb.RunNode {
	var nodes []wandb.RunNode
	cursor := ""
	for {
		page, next, err := c.api.QueryRunsPage(ctx, team, project, cursor)
		if err != nil {
			metrics.TransportErrors.WithLabelValues("runs").Inc()
			klog.Warningf("Pagination of %s/%s failed, keeping %d nodes: %v", team, project, len(nodes), err)
			return nodes
		}
		if len(page) == 0 {
			return nodes
		}
		nodes = append(nodes, page...)
		cursor = next
	}
}

// validateNode converts a raw node into a Run if it passes the validity
// filter. A run rejected only by an ignore tag is returned as a blacklist
// entry; every other rejection is silent, expected control flow.
func (c *Collector) validateNode(
	team, project string,
	node *wandb.RunNode,
	window schedule.Window,
	start, end time.Time,
) (*Run, *BlacklistEntry) {
	if node.RunInfo == nil || node.RunInfo.GPU == "" {
		return nil, nil
	}

	createdAt, err := parseAPITime(node.CreatedAt, c.loc)
	if err != nil {
		klog.Warningf("Run %s/%s/%s: bad createdAt %q", team, project, node.Name, node.CreatedAt)
		return nil, nil
	}
	heartbeat := node.HeartbeatAt
	if heartbeat == "" {
		heartbeat = node.UpdatedAt
	}
	updatedAt, err := parseAPITime(heartbeat, c.loc)
	if err != nil {
		klog.Warningf("Run %s/%s/%s: bad heartbeat %q", team, project, node.Name, heartbeat)
		return nil, nil
	}

	// Zero observed duration is noise, not a real allocation.
	if createdAt.Equal(updatedAt) {
		return nil, nil
	}
	// The active interval must overlap both the query window and the team's
	// allocation window.
	if utils.DateOf(updatedAt).Before(utils.DateOf(start)) || utils.DateOf(createdAt).After(utils.DateOf(end)) {
		return nil, nil
	}
	if !window.Overlaps(createdAt, updatedAt) {
		return nil, nil
	}

	runPath := team + "/" + project + "/" + node.Name
	if c.hasIgnoreTag(node.Tags) {
		return nil, &BlacklistEntry{RunPath: runPath, Tags: node.Tags}
	}

	return &Run{
		Team:      team,
		Project:   project,
		ID:        node.Name,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		State:     node.State,
		Tags:      node.Tags,
		HostName:  node.Host,
		GPUName:   node.RunInfo.GPU,
		GPUCount:  c.gpuCounts.Resolve(team, node),
	}, nil
}

func (c *Collector) hasIgnoreTag(tags []string) bool {
	for _, t := range tags {
		if c.ignoreTags[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

// fetchProjectMetrics fans the metrics fetches of one project out to a
// bounded worker pool. Each worker owns its run exclusively; a failed or
// timed-out fetch leaves that run without metrics and never cancels
// siblings.
func (c *Collector) fetchProjectMetrics(ctx context.Context, runs []*Run, start, end time.Time) {
	if len(runs) == 0 {
		return
	}
	workers := c.maxWorkers
	if len(runs) < workers {
		workers = len(runs)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, run := range runs {
		wg.Add(1)
		go func(r *Run) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			samples, err := DoWithRetry(ctx, c.retry, func(ctx context.Context) ([]wandb.MetricSample, error) {
				return c.api.RunMetrics(ctx, r.Team, r.Project, r.ID)
			})
			if err != nil {
				metrics.MetricsFetchFailures.WithLabelValues(r.Team).Inc()
				klog.Warningf("Metrics for run %s unavailable: %v", r.Path(), err)
				return
			}
			r.Metrics = summarizeMetrics(samples, c.loc, start, end)
		}(run)
	}
	wg.Wait()
}

// parseAPITime reads the service's ISO timestamps (UTC, with or without a
// trailing Z) and converts them to the reporting timezone.
func parseAPITime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}
