// Package notify sends bill reminder emails over SMTP.
package notify

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"

	"tally/internal/amqp"
	"tally/internal/core"
)

var ErrDisabled = errors.New("mail delivery is not configured")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough settings are present to send mail.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	cfg    Config
	dialer sender
}

func NewMailer(cfg Config) *Mailer {
	m := &Mailer{cfg: cfg}
	if cfg.Enabled() {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

var reminderTmpl = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
  <h2>{{.Name}}</h2>
  {{if .Overdue}}<p style="color: #b91c1c;">Overdue since {{.Deadline}} ({{.Days}} days).</p>
  {{else if eq .Days 0}}<p>Due today, {{.Deadline}}.</p>
  {{else}}<p>Due on {{.Deadline}}, in {{.Days}} days.</p>{{end}}
  <p>Period: {{.Period}}</p>
  {{if .Amount}}<p>Expected amount: {{.Amount}}</p>{{end}}
  <p style="color: #666;">Category: {{.Category}}</p>
</body>
</html>
`))

func reminderSubject(msg *amqp.BillReminderMessage) string {
	switch {
	case msg.Overdue():
		return fmt.Sprintf("Overdue: %s (%s)", msg.BillName, msg.PeriodLabel)
	case msg.DaysUntilDeadline == 0:
		return fmt.Sprintf("Due today: %s (%s)", msg.BillName, msg.PeriodLabel)
	default:
		return fmt.Sprintf("Reminder: %s due in %d days (%s)", msg.BillName, msg.DaysUntilDeadline, msg.PeriodLabel)
	}
}

// composeReminder renders the reminder email for msg addressed to to.
func (m *Mailer) composeReminder(to string, msg *amqp.BillReminderMessage) (*gomail.Message, error) {
	days := msg.DaysUntilDeadline
	if days < 0 {
		days = -days
	}
	amount := ""
	if msg.ExpectedAmount != nil {
		amount = core.FormatAmount(*msg.ExpectedAmount)
	}

	var body strings.Builder
	err := reminderTmpl.Execute(&body, map[string]any{
		"Name":     msg.BillName,
		"Overdue":  msg.Overdue(),
		"Deadline": msg.DeadlineDate.String(),
		"Days":     days,
		"Period":   msg.PeriodLabel,
		"Amount":   amount,
		"Category": msg.Category,
	})
	if err != nil {
		return nil, fmt.Errorf("render reminder: %w", err)
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", gm.FormatAddress(m.cfg.From, "Tally"))
	gm.SetHeader("To", to)
	gm.SetHeader("Subject", reminderSubject(msg))
	gm.SetBody("text/html", body.String())
	return gm, nil
}

// Enabled reports whether the mailer can deliver.
func (m *Mailer) Enabled() bool { return m.dialer != nil }

// SendReminder mails the reminder to the given address.
func (m *Mailer) SendReminder(to string, msg *amqp.BillReminderMessage) error {
	if m.dialer == nil {
		return ErrDisabled
	}
	gm, err := m.composeReminder(to, msg)
	if err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("send reminder mail: %w", err)
	}
	return nil
}
