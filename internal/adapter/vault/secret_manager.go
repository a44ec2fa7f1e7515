package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/pkg/config"
)

// SecretPath is the KV v2 path holding the provider credentials.
const SecretPath = "hiya-assistant"

type SecretManager struct {
	client *api.Client
	mount  string
	log    *zap.Logger
}

func NewSecretManager(address, token, mount string, log *zap.Logger) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	if mount == "" {
		mount = "secret"
	}
	return &SecretManager{client: client, mount: mount, log: log}, nil
}

// secretTargets maps KV keys onto the config fields they override.
func secretTargets(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"database_url":                &cfg.Database.URL,
		"jwt_secret":                  &cfg.JWT.Secret,
		"openai_api_key":              &cfg.OpenAI.APIKey,
		"gemini_api_key":              &cfg.Gemini.APIKey,
		"anthropic_api_key":           &cfg.Anthropic.APIKey,
		"sendgrid_api_key":            &cfg.Notification.Email.APIKey,
		"pushover_token":              &cfg.Notification.Pushover.AppToken,
		"pushover_user":               &cfg.Notification.Pushover.UserKey,
		"google_calendar_credentials": &cfg.Calendar.CredentialsJSON,
	}
}

// Apply overrides cfg with every non-empty secret found at SecretPath. A
// missing secret leaves cfg untouched.
func (sm *SecretManager) Apply(ctx context.Context, cfg *config.Config) error {
	secret, err := sm.client.KVv2(sm.mount).Get(ctx, SecretPath)
	if err != nil {
		if errors.Is(err, api.ErrSecretNotFound) {
			sm.log.Warn("No secrets found in Vault", zap.String("path", sm.mount+"/"+SecretPath))
			return nil
		}
		return fmt.Errorf("vault: read %s: %w", SecretPath, err)
	}

	applied := 0
	for key, target := range secretTargets(cfg) {
		value, ok := secret.Data[key].(string)
		if !ok || value == "" {
			continue
		}
		*target = value
		applied++
	}

	sm.log.Info("Loaded secrets from Vault", zap.Int("count", applied))
	return nil
}
