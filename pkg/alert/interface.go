package alert

import "context"

// AlertInterface covers every notification the pipeline can raise:
//  1. a company's daily utilization dropped below the configured minimum
//  2. raw utilization exceeded 100%, which means capacity or collection
//     data is wrong
//  3. the freshest report is missing companies that should be active
//  4. runs sharing a host with overlapping intervals were detected
type AlertInterface interface {
	LowUtilizationAlert(ctx context.Context, company string, rate, threshold float64) error
	OverCapacityAlert(ctx context.Context, company string, rawRate float64) error
	ReportHealthAlert(ctx context.Context, targetDate string, missing []string) error
	OverlapAlert(ctx context.Context, team string, pairs []string) error
}

// alertHandlerInterface is what a concrete delivery channel implements.
type alertHandlerInterface interface {
	SendMessage(ctx context.Context, subject, body string) error
}
