package codec

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// NormalizedExt is the container every upload is re-encoded to.
const NormalizedExt = ".mp3"

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// FFmpeg implements Codec by running the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	log         zerolog.Logger
}

// NewFFmpeg creates a process-based codec. Empty paths fall back to the
// binaries in PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string, log zerolog.Logger) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log.With().Str("component", "ffmpeg").Logger(),
	}
}

// Check verifies ffmpeg is runnable. A missing ffprobe only costs the fast
// probe path, so it is logged rather than returned.
func (f *FFmpeg) Check() error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found (%s): %w", f.ffmpegPath, err)
	}
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		f.log.Warn().Str("ffprobe", f.ffprobePath).Msg("ffprobe not found; probing durations via ffmpeg")
		f.ffprobePath = ""
	}
	return nil
}

// Reencode writes an MP3 copy of inputPath next to it.
//
//	ffmpeg -i input -y output.mp3
func (f *FFmpeg) Reencode(ctx context.Context, inputPath string) (string, error) {
	outPath := ConvertedPath(inputPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-vn",
		"-y", outPath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return "", &ConversionError{Path: inputPath, Stderr: lastLine(stderr.String()), Err: err}
	}

	f.log.Debug().Str("input", inputPath).Str("output", outPath).Msg("audio re-encoded")
	return outPath, nil
}

// Duration probes with ffprobe first and falls back to the "Duration:"
// banner ffmpeg prints for its input. Any failure yields 0.
func (f *FFmpeg) Duration(ctx context.Context, path string) float64 {
	if f.ffprobePath != "" {
		out, err := exec.CommandContext(ctx, f.ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		).Output()
		if err == nil {
			if d, ok := ParseSeconds(string(out)); ok {
				return d
			}
		}
	}

	// ffmpeg exits non-zero without an output file but still prints the banner.
	out, _ := exec.CommandContext(ctx, f.ffmpegPath, "-hide_banner", "-i", path).CombinedOutput()
	if d, ok := ParseFFmpegDuration(string(out)); ok {
		return d
	}

	f.log.Warn().Str("path", path).Msg("could not determine audio duration")
	return 0
}

// Extract cuts one window out of srcPath, re-encoding into dstPath's container.
func (f *FFmpeg) Extract(ctx context.Context, srcPath, dstPath string, start, length float64) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", srcPath,
		"-vn",
		"-y", dstPath,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg extract: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg extract: %w", err)
	}
	return nil
}

// ConvertedPath derives the output path for Reencode. An input that is
// already an MP3 gets a suffix so the original is never overwritten.
func ConvertedPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	if strings.EqualFold(ext, NormalizedExt) {
		return base + "_converted" + NormalizedExt
	}
	return base + NormalizedExt
}

// ParseSeconds parses ffprobe's bare duration output ("1800.024000").
func ParseSeconds(s string) (float64, bool) {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, false
	}
	return d, true
}

// ParseFFmpegDuration extracts "Duration: HH:MM:SS.xx" from ffmpeg stderr.
func ParseFFmpegDuration(output string) (float64, bool) {
	m := durationRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(h)*3600 + float64(mins)*60 + sec, true
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
