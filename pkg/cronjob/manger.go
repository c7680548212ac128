package cronjob

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/pipeline"
	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

// CronJobManager runs the pipeline on a schedule in daemon mode. Each tick
// collects yesterday in local time; if a pass is still running when the next
// tick fires, the tick is skipped.
type CronJobManager struct {
	pipeline *pipeline.Pipeline
	cron     *cron.Cron
	spec     string
	runMutex sync.Mutex
}

func NewCronJobManager(p *pipeline.Pipeline, spec string, loc *time.Location) *CronJobManager {
	return &CronJobManager{
		pipeline: p,
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
	}
}

func (m *CronJobManager) Start() error {
	if _, err := m.cron.AddFunc(m.spec, m.runOnce); err != nil {
		return err
	}
	m.cron.Start()
	klog.Infof("Cron started with spec %q", m.spec)
	return nil
}

// Stop ends scheduling and waits for an in-flight pass to finish.
func (m *CronJobManager) Stop() {
	<-m.cron.Stop().Done()
}

func (m *CronJobManager) runOnce() {
	if !m.runMutex.TryLock() {
		klog.Warning("Previous pipeline pass still running, skipping this tick")
		return
	}
	defer m.runMutex.Unlock()

	target := utils.DateOf(utils.GetLocalTime().AddDate(0, 0, -1))
	if _, err := m.pipeline.Run(context.Background(), target, target); err != nil {
		klog.Errorf("Scheduled pipeline pass failed: %v", err)
	}
}
