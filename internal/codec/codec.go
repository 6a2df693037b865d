package codec

import (
	"context"
	"fmt"
)

// Codec is the audio capability the pipeline depends on: re-encoding an
// upload to a normalized container, probing its length, and cutting time
// windows out of it. Backends may shell out or decode in-process.
type Codec interface {
	// Reencode converts inputPath to the normalized format and returns the
	// path of the new file. The input is left in place.
	Reencode(ctx context.Context, inputPath string) (string, error)

	// Duration returns the audio length in seconds, or 0 if it cannot be
	// determined. It never fails; callers treat 0 as "no splitting needed".
	Duration(ctx context.Context, path string) float64

	// Extract encodes [start, start+length) seconds of srcPath into dstPath.
	Extract(ctx context.Context, srcPath, dstPath string, start, length float64) error
}

// ConversionError is returned when the re-encode step fails.
type ConversionError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("convert %s: %v: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("convert %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }
