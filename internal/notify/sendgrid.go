package notify

import (
	"context"
	"fmt"
	"html"

	"stock-ledger/internal/util"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer delivers a single plain-text email
type Mailer interface {
	Send(ctx context.Context, toName, to, subject, body string) error
}

// SendGridMailer sends mail through the SendGrid v3 API
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	from     string
}

// NewSendGridMailer creates a mailer for apiKey
func NewSendGridMailer(apiKey, fromAddress, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		from:     fromAddress,
	}
}

// Send sends an email using SendGrid
func (m *SendGridMailer) Send(ctx context.Context, toName, to, subject, body string) error {
	if m.from == "" {
		return fmt.Errorf("from address is empty")
	}
	if to == "" {
		return fmt.Errorf("to address is empty")
	}

	response, err := m.client.SendWithContext(ctx, m.message(toName, to, subject, body))
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	util.GetLogger().Info("Mail sent",
		zap.Int("status", response.StatusCode),
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// message builds a plain text mail with an HTML part that shows the same
// text, escaped
func (m *SendGridMailer) message(toName, to, subject, body string) *mail.SGMailV3 {
	return mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.from),
		subject,
		mail.NewEmail(toName, to),
		body,
		"<pre>"+html.EscapeString(body)+"</pre>",
	)
}

// LogMailer only logs messages. Used when no SendGrid key is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, toName, to, subject, body string) error {
	util.GetLogger().Info("Mail not sent (no provider configured)",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

// NewMailer returns a SendGrid mailer, or a LogMailer when apiKey is empty
func NewMailer(apiKey, fromAddress, fromName string) Mailer {
	if apiKey == "" {
		return LogMailer{}
	}
	return NewSendGridMailer(apiKey, fromAddress, fromName)
}
