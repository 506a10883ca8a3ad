package pipeline

import (
	"fmt"
	"os"
	"time"
)

// RunOptions carries the per-invocation knobs that are not configuration:
// where the recording sits in time.
type RunOptions struct {
	// DateOverride forces the date directory (YYYY-MM-DD). Empty derives it
	// from the source file's modification time.
	DateOverride string
	// StartTime anchors the recording to an absolute wall-clock start
	// (ISO-8601; a missing zone means local time).
	StartTime string
	// UseMtime anchors the recording to the source file's modification
	// time when no explicit start time is given.
	UseMtime bool
}

// Start time sources recorded in the metadata artifact.
const (
	startSourceUserSet   = "user_set"
	startSourceFileMtime = "file_mtime"
	startSourceUnknown   = "unknown"
)

var startTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// resolveStartTime applies the user_set | file_mtime | unknown trio.
func resolveStartTime(inputPath string, opts RunOptions) (*time.Time, string, error) {
	if opts.StartTime != "" {
		for _, layout := range startTimeLayouts {
			if t, err := time.ParseInLocation(layout, opts.StartTime, time.Local); err == nil {
				return &t, startSourceUserSet, nil
			}
		}
		return nil, "", fmt.Errorf("pipeline: unrecognized start time %q", opts.StartTime)
	}
	if opts.UseMtime {
		info, err := os.Stat(inputPath)
		if err != nil {
			return nil, "", fmt.Errorf("pipeline: stat input: %w", err)
		}
		t := info.ModTime()
		return &t, startSourceFileMtime, nil
	}
	return nil, startSourceUnknown, nil
}

// resolveDate picks the date directory for a recording: the override if
// given, else the source file's modification date.
func resolveDate(inputPath, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return "", fmt.Errorf("pipeline: stat input: %w", err)
	}
	return info.ModTime().Format("2006-01-02"), nil
}
