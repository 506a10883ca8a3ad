// Package validate checks a recording's produced artifacts against the
// pipeline's structural and temporal invariants. It is a reporting tool,
// not a gate: every defect found is collected and returned, nothing is
// thrown away at the first violation.
package validate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DurationSlackSeconds is how far an event's t1 may overrun the probed
// duration before it is flagged. Padding legitimately pushes segment ends
// slightly past the container duration.
const DurationSlackSeconds = 1.0

// RequiredArtifacts lists the files every processed recording must have,
// even when the recording contained no speech at all.
var RequiredArtifacts = []string{
	"recording.json",
	"segments.json",
	"transcript.json",
	"transcript.txt",
	"events.jsonl",
	"events.csv",
}

// ProcessedDir validates the artifacts in one processed directory and
// returns all violations found. An empty result means the directory passes.
func ProcessedDir(dir string) []string {
	var violations []string

	for _, name := range RequiredArtifacts {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			violations = append(violations, fmt.Sprintf("missing %s", name))
		}
	}

	duration, ok := probedDuration(filepath.Join(dir, "recording.json"))
	violations = append(violations, eventLogViolations(filepath.Join(dir, "events.jsonl"), duration, ok)...)
	return violations
}

// probedDuration pulls input.duration_s out of recording.json.
func probedDuration(path string) (float64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var meta struct {
		Input struct {
			DurationS *float64 `json:"duration_s"`
		} `json:"input"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Input.DurationS == nil {
		return 0, false
	}
	return *meta.Input.DurationS, true
}

// eventLogViolations scans events.jsonl line by line for parse errors,
// missing t0/t1, non-monotonic t0 and duration overruns.
func eventLogViolations(path string, duration float64, haveDuration bool) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil // absence already reported by the artifact check
	}
	defer f.Close()

	var violations []string
	lastT0 := -1.0
	lineNo := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event struct {
			T0 *float64 `json:"t0"`
			T1 *float64 `json:"t1"`
		}
		if err := json.Unmarshal(line, &event); err != nil {
			violations = append(violations, fmt.Sprintf("events.jsonl line %d: invalid JSON", lineNo))
			continue
		}
		if event.T0 == nil || event.T1 == nil {
			violations = append(violations, fmt.Sprintf("events.jsonl line %d: missing t0/t1", lineNo))
			continue
		}
		if *event.T0 < lastT0 {
			violations = append(violations, fmt.Sprintf("events.jsonl line %d: not monotonic (t0 %.3f after %.3f)", lineNo, *event.T0, lastT0))
		}
		lastT0 = *event.T0
		if haveDuration && *event.T1 > duration+DurationSlackSeconds {
			violations = append(violations, fmt.Sprintf("events.jsonl line %d: t1 %.3f exceeds duration %.3f", lineNo, *event.T1, duration))
		}
	}
	if err := scanner.Err(); err != nil {
		violations = append(violations, fmt.Sprintf("events.jsonl: read failed: %v", err))
	}
	return violations
}
