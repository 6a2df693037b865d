package transcribe

import "context"

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "openai"
	Model() string // model identifier for logs
}

// TranscribeOpts are per-request options. Zero values are omitted.
type TranscribeOpts struct {
	Language string // ISO-639-1 hint; "" lets the service detect it
	Prompt   string
}

// Response is the transcription of one audio file.
type Response struct {
	Text string
}
