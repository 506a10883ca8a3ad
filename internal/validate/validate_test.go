package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeArtifacts(t *testing.T, dir string, eventsJSONL string) {
	t.Helper()
	files := map[string]string{
		"recording.json":  `{"input": {"duration_s": 10.0}}`,
		"segments.json":   `{"segments": []}`,
		"transcript.json": `{"chunks": []}`,
		"transcript.txt":  "",
		"events.jsonl":    eventsJSONL,
		"events.csv":      "event_id,event_type\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func hasViolation(violations []string, substr string) bool {
	for _, v := range violations {
		if strings.Contains(v, substr) {
			return true
		}
	}
	return false
}

func TestProcessedDir_CleanLogPasses(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, `{"t0": 0.0, "t1": 1.0}
{"t0": 0.5, "t1": 2.0}
{"t0": 3.0, "t1": 10.5}
`)
	if got := ProcessedDir(dir); len(got) != 0 {
		t.Errorf("expected no violations, got %v", got)
	}
}

func TestProcessedDir_MissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	got := ProcessedDir(dir)
	for _, name := range RequiredArtifacts {
		if !hasViolation(got, "missing "+name) {
			t.Errorf("expected missing %s to be flagged, got %v", name, got)
		}
	}
}

func TestProcessedDir_CollectsAllViolations(t *testing.T) {
	dir := t.TempDir()
	// Four distinct defects: bad JSON, missing fields, non-monotonic t0,
	// duration overrun. All must be reported, not just the first.
	writeArtifacts(t, dir, `{"t0": 5.0, "t1": 6.0}
not json at all
{"t0": 1.0}
{"t0": 2.0, "t1": 3.0}
{"t0": 4.0, "t1": 99.0}
`)
	got := ProcessedDir(dir)
	if !hasViolation(got, "line 2: invalid JSON") {
		t.Errorf("expected invalid JSON flagged, got %v", got)
	}
	if !hasViolation(got, "line 3: missing t0/t1") {
		t.Errorf("expected missing t0/t1 flagged, got %v", got)
	}
	if !hasViolation(got, "not monotonic") {
		t.Errorf("expected monotonicity violation flagged, got %v", got)
	}
	if !hasViolation(got, "exceeds duration") {
		t.Errorf("expected duration overrun flagged, got %v", got)
	}
}

func TestProcessedDir_SlackTolerated(t *testing.T) {
	dir := t.TempDir()
	// t1 within one second of probed duration is legitimate padding overrun.
	writeArtifacts(t, dir, `{"t0": 0.0, "t1": 10.9}
`)
	if got := ProcessedDir(dir); len(got) != 0 {
		t.Errorf("expected overrun within slack tolerated, got %v", got)
	}
}

func TestProcessedDir_EmptyEventLogPasses(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, "")
	if got := ProcessedDir(dir); len(got) != 0 {
		t.Errorf("expected empty log to pass, got %v", got)
	}
}
