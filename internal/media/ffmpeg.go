// Package media wraps the external ffmpeg/ffprobe tools used for decoding,
// duration probing and clip extraction. The pipeline never parses container
// formats itself; everything enters as 16-bit mono PCM WAV produced here.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoDuration is returned when ffprobe reports no duration for a source.
var ErrNoDuration = errors.New("media: ffprobe returned no duration")

// Converter shells out to ffmpeg and ffprobe. The zero value uses the tools
// from PATH.
type Converter struct {
	FFmpegPath  string
	FFprobePath string
}

func (c *Converter) ffmpeg() string {
	if c.FFmpegPath != "" {
		return c.FFmpegPath
	}
	return "ffmpeg"
}

func (c *Converter) ffprobe() string {
	if c.FFprobePath != "" {
		return c.FFprobePath
	}
	return "ffprobe"
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media: %s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}

// ProbeDuration returns the container duration of the source in seconds.
func (c *Converter) ProbeDuration(ctx context.Context, sourcePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.ffprobe(),
		"-v", "error",
		"-show_format",
		"-of", "json",
		sourcePath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("media: ffprobe %s: %w", filepath.Base(sourcePath), err)
	}
	var info struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return 0, fmt.Errorf("media: parse ffprobe output: %w", err)
	}
	if info.Format.Duration == "" {
		return 0, ErrNoDuration
	}
	d, err := strconv.ParseFloat(info.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("media: parse duration %q: %w", info.Format.Duration, err)
	}
	return d, nil
}

// ConvertToWAV decodes the source into a 16-bit PCM WAV at the given sample
// rate and channel count, dropping any video stream.
func (c *Converter) ConvertToWAV(ctx context.Context, sourcePath, outPath string, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("media: create output dir: %w", err)
	}
	return run(ctx, c.ffmpeg(),
		"-y",
		"-i", sourcePath,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-vn",
		"-acodec", "pcm_s16le",
		outPath,
	)
}

// ExtractWAVSegment writes the [start, start+duration) sub-range of the
// source as a 16-bit PCM WAV clip. Used for per-interval ASR input and for
// the exported per-block audio files.
func (c *Converter) ExtractWAVSegment(ctx context.Context, sourcePath, outPath string, startSeconds, durationSeconds float64, sampleRate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("media: create output dir: %w", err)
	}
	return run(ctx, c.ffmpeg(),
		"-y",
		"-i", sourcePath,
		"-ss", fmt.Sprintf("%.3f", startSeconds),
		"-t", fmt.Sprintf("%.3f", durationSeconds),
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-vn",
		"-acodec", "pcm_s16le",
		outPath,
	)
}

// Version returns the first line of `<tool> -version`, or "unavailable".
func version(ctx context.Context, name string) string {
	out, err := exec.CommandContext(ctx, name, "-version").Output()
	if err != nil {
		return "unavailable"
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

// FFmpegVersion reports the ffmpeg version line for provenance metadata.
func (c *Converter) FFmpegVersion(ctx context.Context) string {
	return version(ctx, c.ffmpeg())
}

// FFprobeVersion reports the ffprobe version line for provenance metadata.
func (c *Converter) FFprobeVersion(ctx context.Context) string {
	return version(ctx, c.ffprobe())
}
