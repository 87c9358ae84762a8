// Package notify delivers transactional email.
package notify

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Address struct {
	Name  string
	Email string
}

type Message struct {
	From    Address
	To      Address
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridMailer sends through the SendGrid v3 mail API.
type SendGridMailer struct {
	client *sendgrid.Client
}

func NewSendGridMailer(apiKey string) (*SendGridMailer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey)}, nil
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail(msg.From.Name, msg.From.Email)
	to := sgmail.NewEmail(msg.To.Name, msg.To.Email)
	payload := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := m.client.SendWithContext(ctx, payload)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes messages to the log instead of delivering them. Used when
// no delivery API key is configured.
type LogMailer struct {
	Logger *log.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Logger.Info("mail not delivered, no api key configured", "to", msg.To.Email, "subject", msg.Subject)
	return nil
}
