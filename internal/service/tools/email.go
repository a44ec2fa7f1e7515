package tools

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

const DefaultEmailSubject = "Update from Hiya Assistant"

type EmailConfig struct {
	DefaultSubject string
	Timeout        time.Duration
}

// EmailHandler sends exactly one message per send_email intent. Sends carry
// no dedupe key, so a failed send is reported and never retried.
type EmailHandler struct {
	sender ports.EmailSender
	cfg    EmailConfig
	log    *zap.Logger
}

func NewEmailHandler(sender ports.EmailSender, cfg EmailConfig, log *zap.Logger) *EmailHandler {
	if cfg.DefaultSubject == "" {
		cfg.DefaultSubject = DefaultEmailSubject
	}
	return &EmailHandler{
		sender: sender,
		cfg:    cfg,
		log:    log,
	}
}

func (h *EmailHandler) Kind() domain.IntentKind {
	return domain.IntentSendEmail
}

func (h *EmailHandler) Validate(params map[string]string) error {
	return domain.ValidateParams(domain.IntentSendEmail, params)
}

func (h *EmailHandler) Execute(ctx context.Context, params map[string]string) domain.ToolResult {
	to, _ := domain.ParseEmailAddress(params["to"])
	subject := params["subject"]
	if subject == "" {
		subject = h.cfg.DefaultSubject
	}
	msg := domain.EmailMessage{To: to, Subject: subject, Body: params["body"]}

	var status string
	err := attempt(ctx, h.cfg.Timeout, func(ctx context.Context) error {
		s, err := h.sender.Send(ctx, msg)
		status = s
		return err
	})
	if err != nil {
		h.log.Error("Email delivery failed", zap.String("recipient", to), zap.Error(err))
		result := domain.FailedResult(domain.IntentSendEmail, domain.KindEmailDelivery,
			"email delivery failed", "the email service did not accept the message")
		result.Attempts = 1
		return result
	}

	result := domain.SucceededResult(domain.IntentSendEmail, "email sent", domain.ToolPayload{
		Recipient:   to,
		Subject:     subject,
		EmailStatus: status,
	})
	result.Attempts = 1
	return result
}
