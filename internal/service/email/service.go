package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

// Provider delivers one message and reports the provider's status.
type Provider interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Message is one outgoing mail. At least one of Text and HTML is set; when
// both are, providers send them as alternatives.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Config holds email service configuration
type Config struct {
	// Provider type: "sendgrid" or "smtp"
	Provider string

	FromEmail string
	FromName  string

	SendGridAPIKey string

	// SMTP configuration (for Mailhog or other SMTP servers)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPUseTLS   bool

	BaseURL string
}

// DefaultConfig returns a default configuration for development (Mailhog)
func DefaultConfig() *Config {
	return &Config{
		Provider:   "smtp",
		FromEmail:  "assistant@hiya.local",
		FromName:   "Hiya Assistant",
		SMTPHost:   "localhost",
		SMTPPort:   1025, // Mailhog default port
		SMTPUseTLS: false,
		BaseURL:    "http://localhost:8080",
	}
}

// Service sends the assistant's outgoing mail. It is the EmailSender
// behind the send_email tool and also sends account mail.
type Service struct {
	config    *Config
	provider  Provider
	templates map[string]*template.Template
	log       *zap.Logger
}

var (
	_ ports.EmailSender  = (*Service)(nil)
	_ ports.EmailService = (*Service)(nil)
)

func NewService(config *Config, log *zap.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var provider Provider
	switch config.Provider {
	case "sendgrid":
		if config.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SendGrid API key is required")
		}
		provider = NewSendGridProvider(config.SendGridAPIKey, config.FromEmail, config.FromName)
	case "smtp":
		provider = NewSMTPProvider(
			config.SMTPHost,
			config.SMTPPort,
			config.SMTPUsername,
			config.SMTPPassword,
			config.FromEmail,
			config.FromName,
			config.SMTPUseTLS,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", config.Provider)
	}

	return newService(config, provider, log), nil
}

func newService(config *Config, provider Provider, log *zap.Logger) *Service {
	return &Service{
		config:   config,
		provider: provider,
		templates: map[string]*template.Template{
			"welcome": template.Must(template.New("welcome").Parse(welcomeTemplate)),
		},
		log: log,
	}
}

// Send delivers msg as plain text with a minimal HTML alternative and
// returns the provider status.
func (s *Service) Send(ctx context.Context, msg domain.EmailMessage) (string, error) {
	s.log.Info("Sending email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)

	status, err := s.provider.Send(ctx, Message{
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
		HTML:    textToHTML(msg.Body),
	})
	if err != nil {
		s.log.Error("Failed to send email",
			zap.String("to", msg.To),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return status, nil
}

// SendHTML sends an HTML email
func (s *Service) SendHTML(ctx context.Context, to, subject, htmlBody string) error {
	s.log.Info("Sending HTML email",
		zap.String("to", to),
		zap.String("subject", subject),
	)

	if _, err := s.provider.Send(ctx, Message{To: to, Subject: subject, HTML: htmlBody}); err != nil {
		s.log.Error("Failed to send HTML email",
			zap.String("to", to),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send HTML email: %w", err)
	}
	return nil
}

// SendTemplate sends an email using a template
func (s *Service) SendTemplate(ctx context.Context, to, templateName string, data map[string]interface{}) error {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("template not found: %s", templateName)
	}

	if data == nil {
		data = make(map[string]interface{})
	}
	data["BaseURL"] = s.config.BaseURL

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	subject, ok := data["Subject"].(string)
	if !ok {
		subject = "Update from Hiya Assistant"
	}

	return s.SendHTML(ctx, to, subject, buf.String())
}

// SendWelcome sends a welcome email to a new user
func (s *Service) SendWelcome(ctx context.Context, user *domain.User) error {
	data := map[string]interface{}{
		"Subject":  "Welcome to Hiya Assistant!",
		"UserName": user.Name,
		"Email":    user.Email,
	}

	return s.SendTemplate(ctx, user.Email, "welcome", data)
}

// textToHTML renders a plain body as escaped paragraphs with line breaks.
func textToHTML(body string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(template.HTMLEscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
