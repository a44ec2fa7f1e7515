package tools

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

const DefaultReminderTitle = "Reminder from Hiya Assistant"

type NotificationConfig struct {
	DefaultTitle string
	MaxAttempts  int
	RetryDelay   time.Duration
	Timeout      time.Duration
}

// NotificationHandler sends one push message per send_notification intent.
// Push sends are safe to repeat, so transport failures are retried.
type NotificationHandler struct {
	notifier ports.PushNotifier
	cfg      NotificationConfig
	log      *zap.Logger
}

func NewNotificationHandler(notifier ports.PushNotifier, cfg NotificationConfig, log *zap.Logger) *NotificationHandler {
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = DefaultReminderTitle
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &NotificationHandler{
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

func (h *NotificationHandler) Kind() domain.IntentKind {
	return domain.IntentSendNotification
}

func (h *NotificationHandler) Validate(params map[string]string) error {
	return domain.ValidateParams(domain.IntentSendNotification, params)
}

func (h *NotificationHandler) Execute(ctx context.Context, params map[string]string) domain.ToolResult {
	msg := h.message(params)

	var deliveryID string
	attempts, err := circuitbreaker.Retry(ctx, circuitbreaker.RetryPolicy{
		MaxAttempts:  h.cfg.MaxAttempts,
		InitialDelay: h.cfg.RetryDelay,
		OnRetry:      retryCounter(domain.IntentSendNotification, h.log),
	}, func(ctx context.Context, _ int) error {
		return attempt(ctx, h.cfg.Timeout, func(ctx context.Context) error {
			id, err := h.notifier.Push(ctx, msg)
			if err != nil {
				return err
			}
			deliveryID = id
			return nil
		})
	})
	if err != nil {
		h.log.Error("Push notification failed", zap.Int("attempts", attempts), zap.Error(err))
		result := domain.FailedResult(domain.IntentSendNotification, domain.KindNotificationDelivery,
			"push notification failed", "the notification service did not accept it")
		result.Attempts = attempts
		return result
	}

	result := domain.SucceededResult(domain.IntentSendNotification, "reminder sent", domain.ToolPayload{
		DeliveryID: deliveryID,
		Message:    params["message"],
		When:       params["time"],
	})
	result.Attempts = attempts
	return result
}

func (h *NotificationHandler) message(params map[string]string) domain.PushMessage {
	title := params["title"]
	if title == "" {
		title = h.cfg.DefaultTitle
	}

	priority := 0
	if p, err := strconv.Atoi(params["priority"]); err == nil {
		priority = p
	}

	text := params["message"]
	if when := params["time"]; !immediate(when) {
		text += " (" + when + ")"
	}

	return domain.PushMessage{
		Title:    title,
		Message:  text,
		Priority: priority,
	}
}

func immediate(when string) bool {
	switch strings.ToLower(strings.TrimSpace(when)) {
	case "", "now", "right now", "immediately", "asap":
		return true
	}
	return false
}
