package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/metrics"
	"github.com/snarg/audio-translator/internal/remote"
)

var (
	ErrEmptyText = errors.New("nothing to translate")
	ErrNoTarget  = errors.New("target language is required")
)

// Translator converts text into a named target language ("German", "Japanese").
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Invoker sends a whole transcript to a Translator in one call, retrying
// transient failures per its policy.
type Invoker struct {
	translator Translator
	retry      remote.Policy
	log        zerolog.Logger
}

// NewInvoker wraps translator with the retry policy.
func NewInvoker(translator Translator, retry remote.Policy, log zerolog.Logger) *Invoker {
	return &Invoker{
		translator: translator,
		retry:      retry,
		log:        log.With().Str("component", "translator").Logger(),
	}
}

// Translate returns text translated into targetLanguage. The text is not
// chunked; very long transcripts may exceed the service's request limit.
func (iv *Invoker) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	if strings.TrimSpace(targetLanguage) == "" {
		return "", ErrNoTarget
	}

	p := iv.retry
	next := p.OnRetry
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.RemoteRetriesTotal.WithLabelValues("translation").Inc()
		iv.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("translation failed, retrying")
		if next != nil {
			next(attempt, err, delay)
		}
	}

	start := time.Now()
	out, err := remote.Call(ctx, p, func() (string, error) {
		return iv.translator.Translate(ctx, text, targetLanguage)
	})
	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues("translation", remote.KindOf(err).String()).Inc()
		return "", err
	}
	metrics.RemoteCallsTotal.WithLabelValues("translation", "ok").Inc()

	iv.log.Debug().
		Str("target", targetLanguage).
		Int("input_chars", len(text)).
		Int("output_chars", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("translation complete")
	return out, nil
}
