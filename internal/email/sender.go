package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"

	"gopkg.in/gomail.v2"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <h2>Welcome, {{.DisplayName}}!</h2>
  <p>Your account is ready. Open the app to start a conversation.</p>
</body>
</html>`))

// dialer is the slice of gomail.Dialer the sender needs.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	dialer dialer
	from   string
}

// NewEmailSender returns a sender that delivers over SMTP. With an empty host
// it returns a sender that drops every message.
func NewEmailSender(host string, port int, username, password, from string) *Sender {
	if host == "" {
		return &Sender{from: from}
	}
	return &Sender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *Sender) sendEmail(to, subject, body string) error {
	if s.dialer == nil {
		slog.Debug("smtp not configured, dropping email", "to", to, "subject", subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	return s.dialer.DialAndSend(m)
}

func (s *Sender) SendWelcomeEmail(to, displayName string) error {
	var buf bytes.Buffer
	if err := welcomeTemplate.Execute(&buf, map[string]string{"DisplayName": displayName}); err != nil {
		return fmt.Errorf("failed to execute welcome template: %w", err)
	}
	return s.sendEmail(to, "Welcome to Chat", buf.String())
}
