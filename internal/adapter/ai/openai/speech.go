package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	oai "github.com/openai/openai-go/v3"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

var errEmptyAudio = errors.New("audio buffer is empty")

var audioContentTypes = map[string]string{
	"webm": "audio/webm",
	"ogg":  "audio/ogg",
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"mpeg": "audio/mpeg",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"flac": "audio/flac",
}

// Transcribe sends the buffer to the speech-to-text model. Audio is never
// kept after the call.
func (c *Client) Transcribe(ctx context.Context, audio domain.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", domain.NewError(domain.KindTranscription, "openai.transcribe", errEmptyAudio)
	}

	format := strings.ToLower(strings.TrimPrefix(audio.Format, "."))
	contentType, ok := audioContentTypes[format]
	if !ok {
		format, contentType = "webm", "audio/webm"
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio.Data), "utterance."+format, contentType),
		Model: oai.AudioModel(c.cfg.TranscriptionModel),
	}
	lang := audio.Language
	if lang == "" {
		lang = c.cfg.Language
	}
	if lang != "" {
		params.Language = oai.String(lang)
	}

	var text string
	err := c.guard(ctx, func(ctx context.Context) error {
		resp, err := c.api.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("transcription: %w", err)
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	if err != nil {
		return "", domain.NewError(domain.KindTranscription, "openai.transcribe", err)
	}
	return text, nil
}

// Synthesize renders text as mp3.
func (c *Client) Synthesize(ctx context.Context, text string) (*domain.SpeechAudio, error) {
	var data []byte
	err := c.guard(ctx, func(ctx context.Context) error {
		resp, err := c.api.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
			Input:          text,
			Model:          oai.SpeechModel(c.cfg.TTSModel),
			Voice:          oai.AudioSpeechNewParamsVoice(c.cfg.TTSVoice),
			ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
		})
		if err != nil {
			return fmt.Errorf("speech: %w", err)
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("speech: read body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("openai: speech: empty audio")
	}
	return &domain.SpeechAudio{Data: data, ContentType: "audio/mpeg"}, nil
}
