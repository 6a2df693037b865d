package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/codec"
	"github.com/snarg/audio-translator/internal/config"
	"github.com/snarg/audio-translator/internal/fileutil"
	"github.com/snarg/audio-translator/internal/language"
	"github.com/snarg/audio-translator/internal/metrics"
	"github.com/snarg/audio-translator/internal/remote"
	"github.com/snarg/audio-translator/internal/segment"
	"github.com/snarg/audio-translator/internal/storage"
	"github.com/snarg/audio-translator/internal/transcribe"
	"github.com/snarg/audio-translator/internal/translate"
)

// Request is one user action: an uploaded file plus language choices.
type Request struct {
	AudioData []byte
	Filename  string

	// SourceLanguage is a code or display name; "" or "Auto-detect" sends no hint.
	SourceLanguage string
	TargetLanguage string

	// APIKey, when non-blank, takes precedence over the configured default.
	APIKey string
}

// Result holds both texts and the names they download under.
type Result struct {
	JobID           string  `json:"job_id"`
	Transcript      string  `json:"transcript"`
	Translation     string  `json:"translation"`
	SourceCode      string  `json:"source_code"`
	TargetCode      string  `json:"target_code"`
	TargetName      string  `json:"target_name"`
	Timestamp       string  `json:"timestamp"`
	TranscriptFile  string  `json:"transcript_file"`
	TranslationFile string  `json:"translation_file"`
	// Store keys of the exported artifacts; empty when not exported.
	TranscriptKey   string  `json:"transcript_key,omitempty"`
	TranslationKey  string  `json:"translation_key,omitempty"`
	Segments        int     `json:"segments"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ProviderFactory builds a transcription provider for one API key.
type ProviderFactory func(apiKey string) transcribe.Provider

// TranslatorFactory builds a translator for one API key.
type TranslatorFactory func(apiKey string) translate.Translator

// Options configures a Runner.
type Options struct {
	Codec         codec.Codec
	NewProvider   ProviderFactory
	NewTranslator TranslatorFactory

	// DefaultAPIKey is used when a request carries none.
	DefaultAPIKey string

	// TempDir is the parent of per-run workspaces; "" means os.TempDir().
	TempDir           string
	MaxSegmentSeconds float64
	Retry             remote.Policy

	// Optional.
	Notifier Notifier
	Store    storage.ArtifactStore
	Now      func() time.Time

	Log zerolog.Logger
}

// Runner executes the upload → convert → split → transcribe → translate
// pipeline. It is safe for concurrent use; each Run gets its own workspace.
type Runner struct {
	opts     Options
	log      zerolog.Logger
	inFlight atomic.Int64
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.MaxSegmentSeconds <= 0 {
		opts.MaxSegmentSeconds = segment.DefaultMaxSeconds
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = remote.DefaultPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		opts: opts,
		log:  opts.Log.With().Str("component", "pipeline").Logger(),
	}
}

// NewFromConfig wires a Runner to the OpenAI clients described by cfg.
func NewFromConfig(cfg *config.Config, c codec.Codec, notifier Notifier, store storage.ArtifactStore, log zerolog.Logger) *Runner {
	return New(Options{
		Codec: c,
		NewProvider: func(apiKey string) transcribe.Provider {
			return transcribe.NewOpenAIClient(cfg.OpenAIBaseURL, apiKey, cfg.TranscribeModel, cfg.RequestTimeout)
		},
		NewTranslator: func(apiKey string) translate.Translator {
			return translate.NewOpenAIClient(cfg.OpenAIBaseURL, apiKey, cfg.TranslateModel, cfg.RequestTimeout)
		},
		DefaultAPIKey:     cfg.OpenAIAPIKey,
		TempDir:           cfg.TempDir,
		MaxSegmentSeconds: cfg.SegmentMaxSeconds,
		Retry:             remote.Policy{MaxAttempts: cfg.RetryMaxAttempts, Base: cfg.RetryBaseDelay},
		Notifier:          notifier,
		Store:             store,
		Log:               log,
	})
}

// InFlight returns the number of runs currently executing.
func (r *Runner) InFlight() int { return int(r.inFlight.Load()) }

// Run processes one request. Every temporary file the run creates is
// removed before Run returns, whatever the outcome. Errors are *Error.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	start := r.opts.Now()
	res := &Result{JobID: uuid.NewString()}
	log := r.log.With().Str("job_id", res.JobID).Str("filename", req.Filename).Logger()

	err := r.run(ctx, req, res, log)

	elapsed := r.opts.Now().Sub(start)
	metrics.PipelineDuration.Observe(elapsed.Seconds())
	ev := Event{
		JobID:           res.JobID,
		Filename:        req.Filename,
		SourceCode:      res.SourceCode,
		TargetCode:      res.TargetCode,
		Segments:        res.Segments,
		DurationSeconds: res.DurationSeconds,
		ElapsedSeconds:  elapsed.Seconds(),
		Time:            r.opts.Now(),
	}
	if err != nil {
		stage := StageOf(err)
		metrics.PipelineRunsTotal.WithLabelValues(string(stage)).Inc()
		log.Error().Err(err).Str("stage", string(stage)).Dur("elapsed", elapsed).Msg("pipeline failed")
		ev.Type, ev.Stage, ev.Error = EventFailed, stage, err.Error()
		r.notify(ctx, ev)
		return nil, err
	}

	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	log.Info().
		Int("segments", res.Segments).
		Float64("audio_seconds", res.DurationSeconds).
		Int("transcript_chars", len(res.Transcript)).
		Int("translation_chars", len(res.Translation)).
		Dur("elapsed", elapsed).
		Msg("pipeline complete")

	r.export(ctx, res, log)
	ev.Type, ev.TranscriptFile, ev.TranslationFile = EventCompleted, res.TranscriptFile, res.TranslationFile
	ev.TranscriptKey, ev.TranslationKey = res.TranscriptKey, res.TranslationKey
	r.notify(ctx, ev)
	return res, nil
}

func (r *Runner) run(ctx context.Context, req Request, res *Result, log zerolog.Logger) error {
	apiKey, err := config.ResolveAPIKey(req.APIKey, r.opts.DefaultAPIKey)
	if err != nil {
		return fail(StageConfig, err)
	}
	log.Debug().Str("api_key", config.MaskAPIKey(apiKey)).Msg("credential resolved")

	target, err := language.Target(req.TargetLanguage)
	if err != nil {
		return fail(StageValidation, err)
	}
	source, err := language.Source(req.SourceLanguage)
	if err != nil {
		return fail(StageValidation, err)
	}
	if len(req.AudioData) == 0 {
		return fail(StageValidation, errors.New("uploaded file is empty"))
	}

	res.SourceCode = source
	if source == "" {
		res.SourceCode = storage.OriginalCode
	}
	res.TargetCode, res.TargetName = target.Code, target.Name
	r.notify(ctx, Event{
		JobID:      res.JobID,
		Type:       EventStarted,
		Filename:   req.Filename,
		SourceCode: res.SourceCode,
		TargetCode: res.TargetCode,
		Time:       r.opts.Now(),
	})

	workspace, err := os.MkdirTemp(r.opts.TempDir, "audio-translator-"+res.JobID+"-*")
	if err != nil {
		return fail(StageInternal, fmt.Errorf("create workspace: %w", err))
	}
	var tracked []string
	defer func() {
		fileutil.RemoveFiles(log, tracked...)
		if err := os.RemoveAll(workspace); err != nil {
			log.Warn().Err(err).Str("dir", workspace).Msg("failed to remove workspace")
		}
	}()

	input := filepath.Join(workspace, "upload"+uploadExt(req.Filename))
	if err := os.WriteFile(input, req.AudioData, 0o600); err != nil {
		return fail(StageInternal, fmt.Errorf("write upload: %w", err))
	}
	tracked = append(tracked, input)

	converted, err := r.opts.Codec.Reencode(ctx, input)
	if err != nil {
		return fail(StageConversion, err)
	}
	tracked = append(tracked, converted)

	res.DurationSeconds = r.opts.Codec.Duration(ctx, converted)
	res.Segments = max(1, len(segment.Plan(res.DurationSeconds, r.opts.MaxSegmentSeconds)))
	log.Debug().Float64("audio_seconds", res.DurationSeconds).Int("segments", res.Segments).Msg("audio converted")

	orch := transcribe.NewOrchestrator(transcribe.OrchestratorOptions{
		Splitter:          segment.NewSplitter(r.opts.Codec, log),
		Provider:          r.opts.NewProvider(apiKey),
		MaxSegmentSeconds: r.opts.MaxSegmentSeconds,
		Retry:             r.opts.Retry,
		Log:               log,
	})
	transcript, err := orch.Transcribe(ctx, segment.Resource{Path: converted, Duration: res.DurationSeconds}, source)
	if err != nil {
		return fail(StageTranscription, err)
	}
	res.Transcript = transcript

	// Silence yields an empty transcript; there is nothing to translate.
	if strings.TrimSpace(transcript) != "" {
		inv := translate.NewInvoker(r.opts.NewTranslator(apiKey), r.opts.Retry, log)
		translation, err := inv.Translate(ctx, transcript, target.Name)
		if err != nil {
			return fail(StageTranslation, err)
		}
		res.Translation = translation
	} else {
		log.Warn().Msg("empty transcript, translation skipped")
	}

	res.Timestamp = storage.Timestamp(r.opts.Now())
	res.TranscriptFile = storage.ArtifactName(res.SourceCode, res.Timestamp)
	res.TranslationFile = storage.ArtifactName(res.TargetCode, res.Timestamp)
	return nil
}

// export saves both artifacts to the configured store under per-run keys.
// Failures are logged; the caller already holds the result.
func (r *Runner) export(ctx context.Context, res *Result, log zerolog.Logger) {
	if r.opts.Store == nil {
		return
	}
	artifacts := []struct {
		kind, name, text string
		key              *string
	}{
		{storage.KindTranscript, res.TranscriptFile, res.Transcript, &res.TranscriptKey},
		{storage.KindTranslation, res.TranslationFile, res.Translation, &res.TranslationKey},
	}
	for _, a := range artifacts {
		key := storage.ArtifactKey(res.JobID, a.kind, a.name)
		if err := r.opts.Store.Save(ctx, key, []byte(a.text), "text/plain; charset=utf-8"); err != nil {
			log.Warn().Err(err).Str("artifact", key).Str("store", r.opts.Store.Type()).Msg("artifact export failed")
			continue
		}
		*a.key = key
		log.Debug().Str("artifact", key).Str("store", r.opts.Store.Type()).Msg("artifact exported")
	}
}

func (r *Runner) notify(ctx context.Context, ev Event) {
	if r.opts.Notifier != nil {
		r.opts.Notifier.Notify(ctx, ev)
	}
}

// uploadExt keeps the upload's extension so the converter can recognize the
// container. Names are never used as paths.
func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 || strings.ContainsAny(ext, `/\ `) {
		return ".bin"
	}
	return ext
}
