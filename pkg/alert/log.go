package alert

import (
	"context"

	"k8s.io/klog/v2"
)

// logAlerter is used when alerting is disabled or no SMTP server is
// configured, so alerts still land in the logs.
type logAlerter struct{}

func (l *logAlerter) SendMessage(_ context.Context, subject, body string) error {
	klog.Warningf("ALERT %s: %s", subject, body)
	return nil
}
