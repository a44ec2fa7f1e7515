package googlespeech

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

const op = "googlespeech.transcribe"

type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
}

type clientRecognizer struct {
	client *speech.Client
}

func (r clientRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return r.client.Recognize(ctx, req)
}

type Config struct {
	Language   string
	SampleRate int
}

// Transcriber runs synchronous recognition on Google Cloud Speech.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
type Transcriber struct {
	rec    recognizer
	client *speech.Client
	cfg    Config
	log    *zap.Logger
}

func NewTranscriber(ctx context.Context, cfg Config, log *zap.Logger) (*Transcriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("googlespeech: create client: %w", err)
	}
	t := newTranscriber(clientRecognizer{client: client}, cfg, log)
	t.client = client
	return t, nil
}

func newTranscriber(rec recognizer, cfg Config, log *zap.Logger) *Transcriber {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Transcriber{rec: rec, cfg: cfg, log: log}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", domain.NewError(domain.KindTranscription, op, fmt.Errorf("no audio data received"))
	}

	encoding, err := audioEncoding(audio.Format)
	if err != nil {
		return "", domain.NewError(domain.KindTranscription, op, err)
	}

	rate := audio.SampleRate
	if rate <= 0 {
		rate = t.cfg.SampleRate
	}
	lang := audio.Language
	if lang == "" {
		lang = t.cfg.Language
	}

	resp, err := t.rec.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(rate),
			LanguageCode:    lang,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Data},
		},
	})
	if err != nil {
		return "", domain.NewError(domain.KindTranscription, op, err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))

	t.log.Debug("Transcription finished", zap.Int("bytes", len(audio.Data)), zap.Int("chars", len(text)))
	return text, nil
}

func (t *Transcriber) Close() error {
	if t.client == nil {
		return nil
	}
	return t.client.Close()
}

// audioEncoding maps a container or codec name to the API enum. Empty
// format defaults to WEBM_OPUS, which is what browsers record.
func audioEncoding(format string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(strings.TrimPrefix(format, ".")) {
	case "", "WEBM", "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	case "WAV", "LINEAR16", "PCM":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "OGG", "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "AMR":
		return speechpb.RecognitionConfig_AMR, nil
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding: %s", format)
	}
}
