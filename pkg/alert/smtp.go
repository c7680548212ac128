package alert

import (
	"context"

	"gopkg.in/gomail.v2"
	"k8s.io/klog/v2"

	"github.com/aicluster-lab/gpuboard/pkg/config"
)

type smtpAlerter struct {
	dialer *gomail.Dialer
	from   string
	notify string
}

func newSMTPAlerter() alertHandlerInterface {
	smtpConfig := config.GetConfig().SMTP
	return &smtpAlerter{
		dialer: gomail.NewDialer(smtpConfig.Host, smtpConfig.Port, smtpConfig.User, smtpConfig.Password),
		from:   smtpConfig.User,
		notify: smtpConfig.Notify,
	}
}

func (s *smtpAlerter) SendMessage(_ context.Context, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.notify)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		klog.Errorf("Failed to send alert mail to %s: %v", s.notify, err)
		return err
	}
	klog.Infof("Sent alert mail to %s: %s", s.notify, subject)
	return nil
}
