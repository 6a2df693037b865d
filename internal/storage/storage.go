package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/config"
)

// ArtifactStore is a destination for finished transcript files.
type ArtifactStore interface {
	// Save stores data under key, e.g. "<job_id>/transcript/transcript_en_20240115_143022.txt".
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// New creates an ArtifactStore from config. It returns a nil store when
// neither an output directory nor a bucket is configured, and an error if
// S3 is configured but unreachable.
func New(cfg config.S3Config, outputDir string, log zerolog.Logger) (ArtifactStore, error) {
	if !cfg.Enabled() {
		if outputDir == "" {
			return nil, nil
		}
		return NewLocalStore(outputDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if outputDir == "" {
		return s3store, nil
	}
	return NewTieredStore(s3store, NewLocalStore(outputDir), log), nil
}

// TimestampLayout formats artifact timestamps as YYYYMMDD_HHMMSS.
const TimestampLayout = "20060102_150405"

// OriginalCode stands in for the language code of an auto-detected transcript.
const OriginalCode = "original"

// Timestamp formats t for use in artifact names.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Artifact kinds, used as the middle segment of store keys.
const (
	KindTranscript  = "transcript"
	KindTranslation = "translation"
)

// ArtifactKey returns the store key <jobID>/<kind>/<name>. Keys are distinct
// per run and per kind even when two download names coincide.
func ArtifactKey(jobID, kind, name string) string {
	return path.Join(jobID, kind, name)
}

// ArtifactName returns the download name for a transcript in the given
// language, e.g. transcript_en_20240115_143022.txt.
func ArtifactName(code, timestamp string) string {
	if code == "" {
		code = OriginalCode
	}
	return fmt.Sprintf("transcript_%s_%s.txt", code, timestamp)
}
