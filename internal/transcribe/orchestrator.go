package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/fileutil"
	"github.com/snarg/audio-translator/internal/metrics"
	"github.com/snarg/audio-translator/internal/remote"
	"github.com/snarg/audio-translator/internal/segment"
)

// Splitter turns one audio resource into the ordered segments to transcribe.
type Splitter interface {
	Split(ctx context.Context, res segment.Resource, maxSeconds float64) ([]segment.Resource, error)
}

// SegmentError reports which segment's transcription failed.
type SegmentError struct {
	Index int
	Total int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("transcribe segment %d/%d: %v", e.Index+1, e.Total, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Splitter          Splitter
	Provider          Provider
	MaxSegmentSeconds float64
	Retry             remote.Policy
	Log               zerolog.Logger
}

// Orchestrator transcribes audio of any length by splitting it, sending each
// segment to the provider in order, and joining the results.
type Orchestrator struct {
	splitter   Splitter
	provider   Provider
	maxSegment float64
	retry      remote.Policy
	log        zerolog.Logger
}

// NewOrchestrator creates a transcription orchestrator.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.MaxSegmentSeconds <= 0 {
		opts.MaxSegmentSeconds = segment.DefaultMaxSeconds
	}
	return &Orchestrator{
		splitter:   opts.Splitter,
		provider:   opts.Provider,
		maxSegment: opts.MaxSegmentSeconds,
		retry:      opts.Retry,
		log:        opts.Log.With().Str("component", "transcriber").Logger(),
	}
}

// Transcribe returns the newline-joined transcript of res. languageHint may
// be empty.
//
// Segments are transcribed sequentially; the first failure aborts the rest
// and no partial transcript is returned. Every segment file created by the
// splitter is deleted before Transcribe returns, on success or failure.
// res itself is never deleted.
func (o *Orchestrator) Transcribe(ctx context.Context, res segment.Resource, languageHint string) (string, error) {
	parts, err := o.splitter.Split(ctx, res, o.maxSegment)
	defer o.release(res, parts)
	if err != nil {
		return "", fmt.Errorf("split audio: %w", err)
	}

	fragments := make([]string, 0, len(parts))
	for i, part := range parts {
		start := time.Now()
		resp, err := remote.Call(ctx, o.policy(i), func() (*Response, error) {
			return o.provider.Transcribe(ctx, part.Path, TranscribeOpts{Language: languageHint})
		})
		if err != nil {
			metrics.RemoteCallsTotal.WithLabelValues("transcription", remote.KindOf(err).String()).Inc()
			return "", &SegmentError{Index: i, Total: len(parts), Err: err}
		}
		metrics.RemoteCallsTotal.WithLabelValues("transcription", "ok").Inc()
		metrics.SegmentsTotal.Inc()

		fragments = append(fragments, strings.TrimSpace(resp.Text))
		o.log.Debug().
			Int("segment", i).
			Int("segments", len(parts)).
			Str("model", o.provider.Model()).
			Dur("elapsed", time.Since(start)).
			Msg("segment transcribed")
	}

	return strings.Join(fragments, "\n"), nil
}

func (o *Orchestrator) policy(segmentIndex int) remote.Policy {
	p := o.retry
	next := p.OnRetry
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.RemoteRetriesTotal.WithLabelValues("transcription").Inc()
		o.log.Warn().Err(err).
			Int("segment", segmentIndex).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("transcription failed, retrying")
		if next != nil {
			next(attempt, err, delay)
		}
	}
	return p
}

// release deletes the chunk files the splitter created. The comparison is by
// path, so a one-element result that is a fresh chunk is still deleted while
// the original resource is always kept.
func (o *Orchestrator) release(original segment.Resource, parts []segment.Resource) {
	generated := segment.Generated(original, parts)
	if len(generated) == 0 {
		return
	}
	paths := make([]string, len(generated))
	for i, g := range generated {
		paths[i] = g.Path
	}
	n := fileutil.RemoveFiles(o.log, paths...)
	o.log.Debug().Int("removed", n).Int("segments", len(generated)).Msg("segment files released")
}
