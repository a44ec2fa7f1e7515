package domain

// Response is the reply rendered for a turn.
type Response struct {
	Text     string `json:"text"`
	AudioRef string `json:"audio_ref,omitempty"`
}

// Audio is a recorded user input. Format is a short codec name such as
// "webm", "wav" or "ogg".
type Audio struct {
	Data       []byte
	Format     string
	SampleRate int
	Language   string
}

// SpeechAudio is synthesized speech ready to be served.
type SpeechAudio struct {
	Data        []byte
	ContentType string
}
