package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger logrus.FieldLogger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger logrus.FieldLogger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = func(e *email.Email) error {
		addr := fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort)
		auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
		return e.Send(addr, auth)
	}
	return s
}

// digestAlerts keeps the alerts that need immediate attention
func digestAlerts(alerts []models.Alert) []models.Alert {
	var out []models.Alert
	for _, a := range alerts {
		if a.Severity == models.SeverityUrgent || a.Severity == models.SeverityCritical {
			out = append(out, a)
		}
	}
	return out
}

// DigestBody formats the plain text digest of the given alerts
func DigestBody(alerts []models.Alert, asOf time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Frühwarnsystem Kreditrisiko, Stichtag %s\n\n", asOf.Format("02.01.2006"))
	fmt.Fprintf(&b, "%d Warnungen erfordern sofortige Aufmerksamkeit.\n", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(&b, "\n[%s] %s\n", strings.ToUpper(string(a.Severity)), a.Title)
		fmt.Fprintf(&b, "%s\n", a.Description)
		if a.RecommendedAction != "" {
			fmt.Fprintf(&b, "Maßnahme: %s\n", a.RecommendedAction)
		}
	}
	b.WriteString("\nDiese Nachricht wurde automatisch erstellt.\n")
	return b.String()
}

// SendAlertDigest mails urgent and critical alerts to the configured
// recipients. Nothing is sent when there are none.
func (s *Sender) SendAlertDigest(alerts []models.Alert, asOf time.Time) error {
	selected := digestAlerts(alerts)
	if len(selected) == 0 || len(s.cfg.AlertRecipients) == 0 {
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = s.cfg.AlertRecipients
	e.Subject = fmt.Sprintf("Frühwarnungen %s: %d dringend/kritisch", asOf.Format(time.DateOnly), len(selected))
	e.Text = []byte(DigestBody(selected, asOf))

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send alert digest to %s: %v", strings.Join(e.To, ", "), err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", strings.Join(e.To, ", "), e.Subject)
	return nil
}
