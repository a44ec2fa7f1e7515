package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache: key not found")

// ErrAudioNotFound is returned by AudioStore.Load for unknown or expired ids.
var ErrAudioNotFound = errors.New("audio: not found")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}

// Locker serializes work on a key. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// AudioStore keeps synthesized replies for a short time.
type AudioStore interface {
	Save(ctx context.Context, data []byte, contentType string) (string, error)
	Load(ctx context.Context, id string) ([]byte, string, error)
}

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}
