package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seu-repo/hiya-assistant/internal/ports"
)

// ErrAudioNotFound is returned for unknown or expired audio ids.
var ErrAudioNotFound = ports.ErrAudioNotFound

type storedAudio struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// AudioStore keeps synthesized replies in the cache under audio:{id}.
type AudioStore struct {
	cache ports.Cache
	ttl   time.Duration
}

func NewAudioStore(cache ports.Cache, ttl time.Duration) *AudioStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AudioStore{cache: cache, ttl: ttl}
}

func (s *AudioStore) Save(ctx context.Context, data []byte, contentType string) (string, error) {
	payload, err := json.Marshal(storedAudio{ContentType: contentType, Data: data})
	if err != nil {
		return "", fmt.Errorf("audio store: encode: %w", err)
	}

	id := uuid.NewString()
	if err := s.cache.Set(ctx, audioKey(id), string(payload), s.ttl); err != nil {
		return "", fmt.Errorf("audio store: save: %w", err)
	}
	return id, nil
}

func (s *AudioStore) Load(ctx context.Context, id string) ([]byte, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", ErrAudioNotFound
	}

	raw, err := s.cache.Get(ctx, audioKey(id))
	if errors.Is(err, ports.ErrCacheMiss) || (err == nil && raw == "") {
		return nil, "", ErrAudioNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("audio store: load: %w", err)
	}

	var stored storedAudio
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, "", fmt.Errorf("audio store: decode: %w", err)
	}
	return stored.Data, stored.ContentType, nil
}

func audioKey(id string) string {
	return "audio:" + id
}
