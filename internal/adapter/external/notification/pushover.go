package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/infrastructure/circuitbreaker"
)

const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// Emergency-priority messages repeat until acknowledged; Pushover rejects
// them without retry and expire.
const (
	emergencyPriority = 2
	emergencyRetry    = 60 * time.Second
	emergencyExpire   = time.Hour
)

var ErrNotConfigured = errors.New("pushover: app token and user key are required")

type PushoverConfig struct {
	APIURL   string
	AppToken string
	UserKey  string
	Timeout  time.Duration
}

// PushoverAdapter delivers push messages to one Pushover user.
type PushoverAdapter struct {
	apiURL   string
	appToken string
	userKey  string
	client   *circuitbreaker.HTTPClient
	log      *zap.Logger
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

func NewPushoverAdapter(cfg PushoverConfig, breaker *circuitbreaker.Breaker, log *zap.Logger) (*PushoverAdapter, error) {
	if cfg.AppToken == "" || cfg.UserKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultPushoverURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultSettings("pushover"), log)
	}

	return &PushoverAdapter{
		apiURL:   cfg.APIURL,
		appToken: cfg.AppToken,
		userKey:  cfg.UserKey,
		client:   circuitbreaker.NewHTTPClient(circuitbreaker.NewInstrumentedClient(cfg.Timeout), breaker, log),
		log:      log,
	}, nil
}

// Push sends msg and returns Pushover's request id as the delivery id.
// 4xx answers are permanent; everything else may be retried by the caller.
func (a *PushoverAdapter) Push(ctx context.Context, msg domain.PushMessage) (string, error) {
	form := url.Values{}
	form.Set("token", a.appToken)
	form.Set("user", a.userKey)
	form.Set("message", msg.Message)
	if msg.Title != "" {
		form.Set("title", msg.Title)
	}
	if msg.Priority != 0 {
		form.Set("priority", strconv.Itoa(msg.Priority))
	}
	if msg.Priority == emergencyPriority {
		form.Set("retry", strconv.Itoa(int(emergencyRetry.Seconds())))
		form.Set("expire", strconv.Itoa(int(emergencyExpire.Seconds())))
	}
	if msg.URL != "" {
		form.Set("url", msg.URL)
	}

	resp, err := a.client.Post(ctx, a.apiURL, "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		a.log.Error("Failed to send push notification", zap.Error(err))
		return "", fmt.Errorf("pushover: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("pushover: read response: %w", err)
	}

	var result pushoverResponse
	_ = json.Unmarshal(body, &result)

	if resp.StatusCode >= 400 {
		a.log.Error("Pushover API error",
			zap.Int("status", resp.StatusCode),
			zap.Strings("errors", result.Errors),
		)
		err := fmt.Errorf("pushover: status %d: %s", resp.StatusCode, strings.Join(result.Errors, "; "))
		if resp.StatusCode != http.StatusTooManyRequests {
			err = circuitbreaker.Permanent(err)
		}
		return "", err
	}
	if result.Status != 1 {
		return "", fmt.Errorf("pushover: message not accepted: %s", strings.Join(result.Errors, "; "))
	}

	a.log.Info("Push notification sent", zap.String("request_id", result.Request))
	return result.Request, nil
}
