package fileutil

import (
	"errors"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/metrics"
)

// RemoveFiles deletes each non-empty path. Paths that no longer exist are
// skipped; other failures are logged and do not stop the remaining
// deletions. It returns the number of files removed.
func RemoveFiles(log zerolog.Logger, paths ...string) int {
	removed := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("path", p).Msg("failed to delete temp file")
			}
			continue
		}
		removed++
	}
	metrics.TempFilesRemovedTotal.Add(float64(removed))
	return removed
}
