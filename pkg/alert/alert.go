package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aicluster-lab/gpuboard/pkg/config"
)

type alertMgr struct {
	handler alertHandlerInterface
}

var (
	once    sync.Once
	alerter *alertMgr
)

func GetAlertMgr() AlertInterface {
	once.Do(func() {
		alerter = initAlertMgr()
	})
	return alerter
}

func initAlertMgr() *alertMgr {
	cfg := config.GetConfig()
	if !cfg.Alert.Enable || cfg.SMTP.Host == "" {
		return &alertMgr{handler: &logAlerter{}}
	}
	return &alertMgr{handler: newSMTPAlerter()}
}

func (a *alertMgr) LowUtilizationAlert(ctx context.Context, company string, rate, threshold float64) error {
	subject := fmt.Sprintf("[gpuboard] low utilization: %s", company)
	body := fmt.Sprintf(
		"Company %s used %.1f%% of its assigned GPU hours yesterday, below the %.1f%% minimum.",
		company, rate, threshold)
	return a.handler.SendMessage(ctx, subject, body)
}

func (a *alertMgr) OverCapacityAlert(ctx context.Context, company string, rawRate float64) error {
	subject := fmt.Sprintf("[gpuboard] usage above capacity: %s", company)
	body := fmt.Sprintf(
		"Company %s reports %.1f%% of assigned GPU hours. Rates above 100%% mean the capacity schedule or the collected usage is wrong.",
		company, rawRate)
	return a.handler.SendMessage(ctx, subject, body)
}

func (a *alertMgr) ReportHealthAlert(ctx context.Context, targetDate string, missing []string) error {
	subject := "[gpuboard] report health check failed"
	body := fmt.Sprintf(
		"The report for %s is missing active companies: %s.",
		targetDate, strings.Join(missing, ", "))
	return a.handler.SendMessage(ctx, subject, body)
}

func (a *alertMgr) OverlapAlert(ctx context.Context, team string, pairs []string) error {
	subject := fmt.Sprintf("[gpuboard] overlapping runs: %s", team)
	body := fmt.Sprintf(
		"Team %s has runs on the same host with overlapping intervals, their GPU hours are double counted:\n%s",
		team, strings.Join(pairs, "\n"))
	return a.handler.SendMessage(ctx, subject, body)
}
