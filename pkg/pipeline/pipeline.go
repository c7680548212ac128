package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/aggregator"
	"github.com/aicluster-lab/gpuboard/pkg/alert"
	"github.com/aicluster-lab/gpuboard/pkg/artifact"
	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/history"
	"github.com/aicluster-lab/gpuboard/pkg/metrics"
	"github.com/aicluster-lab/gpuboard/pkg/schedule"
	"github.com/aicluster-lab/gpuboard/pkg/tracker"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

// Pipeline runs one full collection pass: load persisted history, collect
// fresh rows, merge, persist, aggregate and publish. Collection degrades on
// transport failures; only configuration and data-integrity problems abort
// a pass.
type Pipeline struct {
	store     artifact.Store
	collector *tracker.Collector
	resolver  *schedule.Resolver
	alerter   alert.AlertInterface
	snapshot  *Snapshot
}

func New(
	store artifact.Store,
	collector *tracker.Collector,
	resolver *schedule.Resolver,
	alerter alert.AlertInterface,
) *Pipeline {
	return &Pipeline{
		store:     store,
		collector: collector,
		resolver:  resolver,
		alerter:   alerter,
		snapshot:  &Snapshot{},
	}
}

// LatestReport exposes the published snapshot for the HTTP handlers.
func (p *Pipeline) LatestReport() *Report {
	return p.snapshot.Latest()
}

// Run executes one pass over [start, end].
func (p *Pipeline) Run(ctx context.Context, start, end time.Time) (*Report, error) {
	cfg := config.GetConfig()
	invocation := uuid.NewString()
	began := time.Now()
	defer func() {
		metrics.PipelineDuration.Set(time.Since(began).Seconds())
	}()
	klog.Infof("Pipeline %s: collecting %s .. %s", invocation, utils.FormatDate(start), utils.FormatDate(end))

	oldRows, err := p.loadHistory(ctx, cfg.Artifact.HistoryName)
	if err != nil {
		return nil, err
	}

	capacity, expandErrs := p.resolver.Expand(end)
	for company, expandErr := range expandErrs {
		klog.Errorf("Pipeline %s: schedule for %s unusable: %v", invocation, company, expandErr)
	}
	if len(capacity) == 0 {
		return nil, fmt.Errorf("pipeline %s: no company has a usable schedule", invocation)
	}

	collected := p.collector.Collect(ctx, start, end)

	merged, err := history.Merge(collected.Rows, oldRows)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", invocation, err)
	}

	payload, err := history.EncodeCSV(merged)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: encoding history: %w", invocation, err)
	}
	_, err = p.store.Upload(ctx, cfg.Artifact.HistoryName, payload, map[string]string{
		"invocation": invocation,
		"rows":       strconv.Itoa(len(merged)),
		"start_date": utils.FormatDate(start),
		"end_date":   utils.FormatDate(end),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: persisting history: %w", invocation, err)
	}
	metrics.HistoryRows.Set(float64(len(merged)))

	teamCompany := p.resolver.TeamCompany()
	tables := make(map[aggregator.Grain][]aggregator.UtilizationRow, len(aggregator.Grains))
	for _, grain := range aggregator.Grains {
		tables[grain] = aggregator.Aggregate(merged, capacity, teamCompany, grain)
	}

	report := &Report{
		ID:          invocation,
		GeneratedAt: utils.GetLocalTime(),
		StartDate:   utils.FormatDate(start),
		EndDate:     utils.FormatDate(end),
		HistoryRows: len(merged),
		Tables:      tables,
		Summary: aggregator.BuildWeeklySummary(
			merged, teamCompany, collected.Overlaps, collected.Blacklist, utils.GetLocalTime()),
	}
	if err := p.publish(ctx, cfg, report, collected.Blacklist); err != nil {
		return nil, err
	}
	p.snapshot.Set(report)

	p.raiseAlerts(ctx, cfg, report, end)
	p.checkReportHealth(ctx, report, end)

	metrics.PipelineLastSuccess.SetToCurrentTime()
	klog.Infof("Pipeline %s: done in %s, %d history rows, %d new", invocation, time.Since(began), len(merged), len(collected.Rows))
	return report, nil
}

func (p *Pipeline) loadHistory(ctx context.Context, name string) ([]history.DailyUsageRow, error) {
	version, err := p.store.UseLatest(ctx, name)
	if errors.Is(err, artifact.ErrNotFound) {
		klog.Infof("No %s artifact yet, starting from empty history", name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	data, err := p.store.Download(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("loading history v%d: %w", version.Version, err)
	}
	rows, err := history.DecodeCSV(data)
	if err != nil {
		return nil, err
	}
	klog.Infof("Loaded %d history rows from %s v%d", len(rows), name, version.Version)
	return rows, nil
}

func (p *Pipeline) publish(ctx context.Context, cfg *config.Config, report *Report, blacklist []tracker.BlacklistEntry) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	meta := map[string]string{"invocation": report.ID, "end_date": report.EndDate}
	if _, err := p.store.Upload(ctx, cfg.Artifact.ReportName, data, meta); err != nil {
		return fmt.Errorf("publishing report: %w", err)
	}

	if len(blacklist) == 0 {
		return nil
	}
	data, err = json.Marshal(blacklist)
	if err != nil {
		return fmt.Errorf("encoding blacklist: %w", err)
	}
	if _, err := p.store.Upload(ctx, cfg.Artifact.BlacklistName, data, meta); err != nil {
		return fmt.Errorf("publishing blacklist: %w", err)
	}
	return nil
}

// raiseAlerts inspects the freshest daily rows. Alert delivery failures are
// logged, never fatal.
func (p *Pipeline) raiseAlerts(ctx context.Context, cfg *config.Config, report *Report, end time.Time) {
	target := utils.FormatDate(end)
	for _, row := range report.Tables[aggregator.GrainDaily] {
		if row.PeriodKey != target {
			continue
		}
		if row.AssignedGPUHour <= 0 {
			// Any recorded usage exceeds a zero assignment.
			if row.TotalGPUHour > 0 {
				if err := p.alerter.OverCapacityAlert(ctx, row.Company, row.RawUtilizationRate); err != nil {
					klog.Errorf("Over-capacity alert for %s failed: %v", row.Company, err)
				}
			}
			continue
		}
		if row.RawUtilizationRate > 100 {
			if err := p.alerter.OverCapacityAlert(ctx, row.Company, row.RawUtilizationRate); err != nil {
				klog.Errorf("Over-capacity alert for %s failed: %v", row.Company, err)
			}
		}
		if row.UtilizationRate < cfg.Alert.MinUtilizationRate {
			if err := p.alerter.LowUtilizationAlert(ctx, row.Company, row.UtilizationRate, cfg.Alert.MinUtilizationRate); err != nil {
				klog.Errorf("Low-utilization alert for %s failed: %v", row.Company, err)
			}
		}
	}

	byTeam := make(map[string][]string)
	for _, pair := range report.Summary.Overlaps {
		byTeam[pair.Team] = append(byTeam[pair.Team], pair.RunA+" <-> "+pair.RunB+" on "+pair.HostName)
	}
	for team, pairs := range byTeam {
		if err := p.alerter.OverlapAlert(ctx, team, pairs); err != nil {
			klog.Errorf("Overlap alert for %s failed: %v", team, err)
		}
	}
}
