package pipeline

import (
	"context"
	"sort"
	"time"

	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/aggregator"
	"github.com/aicluster-lab/gpuboard/pkg/config"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

// checkReportHealth verifies that the published report carries a daily row
// on the target date for every company still inside its allocation window.
// A missing company means its collection silently produced nothing.
func (p *Pipeline) checkReportHealth(ctx context.Context, report *Report, target time.Time) {
	targetKey := utils.FormatDate(target)

	covered := make(map[string]bool)
	for _, row := range report.Tables[aggregator.GrainDaily] {
		if row.PeriodKey == targetKey {
			covered[row.Company] = true
		}
	}

	var missing []string
	cfg := config.GetConfig()
	for i := range cfg.Companies {
		comp := &cfg.Companies[i]
		window, err := p.resolver.AllocationWindow(comp)
		if err != nil || !window.Contains(target) {
			continue
		}
		if !covered[comp.Name] {
			missing = append(missing, comp.Name)
		}
	}
	if len(missing) == 0 {
		klog.Infof("Report health check passed for %s", targetKey)
		return
	}
	sort.Strings(missing)
	klog.Warningf("Report for %s is missing companies: %v", targetKey, missing)
	if err := p.alerter.ReportHealthAlert(ctx, targetKey, missing); err != nil {
		klog.Errorf("Report health alert failed: %v", err)
	}
}
