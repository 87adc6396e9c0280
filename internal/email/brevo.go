// Package email sends agent notifications for escalations and bookings,
// via the Brevo API or a direct SMTP connection.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"converse_backend/platform/config"
)

// Sender delivers agent notification email.
type Sender interface {
	SendEscalationEmail(ctx context.Context, toEmail, conversationID, reason string, priority int) error
	SendBookingConfirmedEmail(ctx context.Context, toEmail, conversationID, slotText string) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender drops all email. Used when no provider is configured.
type NoopSender struct{}

func (NoopSender) SendEscalationEmail(ctx context.Context, toEmail, conversationID, reason string, priority int) error {
	return nil
}

func (NoopSender) SendBookingConfirmedEmail(ctx context.Context, toEmail, conversationID, slotText string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// BrevoSender delivers through the Brevo transactional email API.
type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

// NewSender picks a provider from the configuration: Brevo when an API key
// is set, SMTP when a host is set, otherwise a no-op sender.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	if cfg.GetBrevoAPIKey() != "" {
		return &BrevoSender{
			apiKey:    cfg.GetBrevoAPIKey(),
			fromName:  cfg.GetEmailFromName(),
			fromEmail: cfg.GetEmailFromAddress(),
			client:    &http.Client{Timeout: 10 * time.Second},
		}, nil
	}
	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName()), nil
	}
	return NoopSender{}, nil
}

func (b *BrevoSender) SendEscalationEmail(ctx context.Context, toEmail, conversationID, reason string, priority int) error {
	subject := fmt.Sprintf(subjectEscalationFmt, conversationID)
	content, err := renderEmailTemplate("escalation.html", escalationEmailData{
		baseEmailData: baseEmailData{
			Title:   "Gesprek overgedragen",
			Heading: "Gesprek overgedragen",
		},
		ConversationID: conversationID,
		Reason:         reason,
		Priority:       priority,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendBookingConfirmedEmail(ctx context.Context, toEmail, conversationID, slotText string) error {
	subject := fmt.Sprintf(subjectBookingConfirmedFmt, conversationID)
	content, err := renderEmailTemplate("booking_confirmed.html", bookingConfirmedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Afspraak bevestigd",
			Heading: "Afspraak bevestigd",
		},
		ConversationID: conversationID,
		SlotText:       slotText,
	})
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subject, content)
}

func (b *BrevoSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return b.send(ctx, toEmail, subject, htmlContent)
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.brevo.com/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}
