package email

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridProvider implements the Provider interface using SendGrid
type SendGridProvider struct {
	apiKey    string
	fromEmail string
	fromName  string
	client    *sendgrid.Client
}

// NewSendGridProvider creates a new SendGrid provider
func NewSendGridProvider(apiKey, fromEmail, fromName string) *SendGridProvider {
	return &SendGridProvider{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    sendgrid.NewSendClient(apiKey),
	}
}

// Send sends an email using SendGrid. The returned status is the HTTP
// status line, e.g. "202 Accepted".
func (p *SendGridProvider) Send(ctx context.Context, msg Message) (string, error) {
	from := mail.NewEmail(p.fromName, p.fromEmail)
	toEmail := mail.NewEmail("", msg.To)

	// Empty parts are skipped; text/plain must precede text/html.
	message := mail.NewSingleEmail(from, msg.Subject, toEmail, msg.Text, msg.HTML)

	response, err := p.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("sendgrid error: %w", err)
	}

	// SendGrid returns 2xx for success
	if response.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}

	return fmt.Sprintf("%d %s", response.StatusCode, http.StatusText(response.StatusCode)), nil
}
