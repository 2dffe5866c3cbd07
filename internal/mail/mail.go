package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/smtp"
	"time"

	"github.com/kidandcat/tracker/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Mailer delivers mail through SMTP when enabled, else through the Resend
// API when a key is configured. With neither it only logs the message.
type Mailer struct {
	cfg      config.EmailConfig
	client   *http.Client
	endpoint string
	log      *slog.Logger
}

func New(cfg config.EmailConfig, log *slog.Logger) *Mailer {
	return &Mailer{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: resendEndpoint,
		log:      log,
	}
}

func (m *Mailer) SendInvitation(ctx context.Context, to, projectName, link string) error {
	subject := fmt.Sprintf("You're invited to %s", projectName)
	body := fmt.Sprintf(
		`<p>You have been invited to join <strong>%s</strong>.</p>`+
			`<p><a href="%s">Accept the invitation</a></p>`+
			`<p>This link expires in 7 days.</p>`,
		html.EscapeString(projectName), html.EscapeString(link),
	)
	return m.Send(ctx, to, subject, body)
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	switch {
	case m.cfg.SMTPEnabled:
		return m.sendViaSMTP(to, subject, body)
	case m.cfg.ResendAPIKey != "":
		return m.sendViaResend(ctx, to, subject, body)
	}
	m.log.Info("email delivery disabled", "to", to, "subject", subject)
	return nil
}

func (m *Mailer) sendViaResend(ctx context.Context, to, subject, body string) error {
	jsonBody, err := json.Marshal(resendRequest{
		From:    m.cfg.FromEmail,
		To:      []string{to},
		Subject: subject,
		HTML:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.ResendAPIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}
	return nil
}

func (m *Mailer) sendViaSMTP(to, subject, body string) error {
	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort

	msg := "From: " + m.cfg.FromEmail + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		body

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.SMTPUser, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
