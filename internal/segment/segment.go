package segment

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMaxSeconds is the longest stretch of audio sent in one
// transcription request.
const DefaultMaxSeconds = 1200.0

// Resource is an audio file addressed by path. Two resources are the same
// resource when their paths are equal.
type Resource struct {
	Path string
	// Duration in seconds, when already known. Zero means unknown.
	Duration float64
}

// Window is one time slice [Start, Start+Length) of a source file, in seconds.
type Window struct {
	Index  int
	Start  float64
	Length float64
}

// End returns the exclusive end of the window.
func (w Window) End() float64 { return w.Start + w.Length }

// Plan divides duration into contiguous windows of at most maxSeconds.
// It returns nil when no split is needed: the audio fits in one window, or
// either value is not a positive finite number (an unknown duration is 0).
func Plan(duration, maxSeconds float64) []Window {
	if !positive(duration) || !positive(maxSeconds) || duration <= maxSeconds {
		return nil
	}

	n := int(math.Ceil(duration / maxSeconds))
	windows := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		start := float64(i) * maxSeconds
		windows = append(windows, Window{
			Index:  i,
			Start:  start,
			Length: math.Min(maxSeconds, duration-start),
		})
	}
	return windows
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Codec is the subset of the audio codec the splitter needs.
type Codec interface {
	Duration(ctx context.Context, path string) float64
	Extract(ctx context.Context, srcPath, dstPath string, start, length float64) error
}

// Splitter materializes a Plan as chunk files next to the source.
type Splitter struct {
	codec Codec
	log   zerolog.Logger
}

// NewSplitter creates a splitter backed by codec.
func NewSplitter(codec Codec, log zerolog.Logger) *Splitter {
	return &Splitter{
		codec: codec,
		log:   log.With().Str("component", "segmenter").Logger(),
	}
}

// Split returns the audio to transcribe, in chronological order.
//
// When no split is needed the result is exactly []Resource{res} and no file
// is created. Otherwise every element is a new file named
// <base>_part<i><ext> that the caller owns and must delete.
//
// res.Duration is used as the source length when positive; otherwise the
// codec probes the file.
//
// On failure Split stops at the first window that cannot be encoded and
// returns the chunks created so far (including the failed one, which may be
// partially written) together with the error.
func (s *Splitter) Split(ctx context.Context, res Resource, maxSeconds float64) ([]Resource, error) {
	duration := res.Duration
	if !positive(duration) {
		duration = s.codec.Duration(ctx, res.Path)
	}
	windows := Plan(duration, maxSeconds)
	if len(windows) == 0 {
		s.log.Debug().
			Str("path", res.Path).
			Float64("duration", duration).
			Msg("no split needed")
		return []Resource{res}, nil
	}

	ext := filepath.Ext(res.Path)
	base := strings.TrimSuffix(res.Path, ext)

	parts := make([]Resource, 0, len(windows))
	for _, w := range windows {
		part := Resource{Path: fmt.Sprintf("%s_part%d%s", base, w.Index, ext), Duration: w.Length}
		parts = append(parts, part)
		if err := s.codec.Extract(ctx, res.Path, part.Path, w.Start, w.Length); err != nil {
			return parts, fmt.Errorf("extract segment %d [%.3fs, %.3fs): %w", w.Index, w.Start, w.End(), err)
		}
	}

	s.log.Info().
		Str("path", res.Path).
		Float64("duration", duration).
		Int("segments", len(parts)).
		Msg("audio split into segments")
	return parts, nil
}

// Generated returns the elements of parts that are not original itself,
// i.e. the files a Split call created and the caller must release.
func Generated(original Resource, parts []Resource) []Resource {
	var out []Resource
	for _, p := range parts {
		if p.Path != original.Path {
			out = append(out, p)
		}
	}
	return out
}
