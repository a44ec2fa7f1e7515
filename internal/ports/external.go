package ports

import (
	"context"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.Audio) (string, error)
}

// SpeechSynthesizer renders reply text as audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (*domain.SpeechAudio, error)
}

// LanguageModel produces an unvalidated classification verdict.
type LanguageModel interface {
	Classify(ctx context.Context, req domain.ClassificationRequest) (*domain.ModelVerdict, error)
	Name() string
}

type CalendarProvider interface {
	ListEvents(ctx context.Context, query domain.CalendarQuery) ([]domain.CalendarEvent, error)
}

type PushNotifier interface {
	Push(ctx context.Context, msg domain.PushMessage) (string, error) // delivery id
}

type EmailSender interface {
	Send(ctx context.Context, msg domain.EmailMessage) (string, error) // provider status
}
