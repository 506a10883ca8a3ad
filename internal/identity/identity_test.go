package identity

import (
	"strings"
	"testing"
	"time"
)

func TestRecordingID_Deterministic(t *testing.T) {
	a := RecordingID("ab12cd", 3601.5)
	b := RecordingID("ab12cd", 3601.5)
	if a != b {
		t.Errorf("expected identical ids for identical inputs, got %s and %s", a, b)
	}
}

func TestRecordingID_SensitiveToContentAndDuration(t *testing.T) {
	base := RecordingID("ab12cd", 3601.5)
	if RecordingID("ab12ce", 3601.5) == base {
		t.Error("expected different id for different content hash")
	}
	if RecordingID("ab12cd", 3601.6) == base {
		t.Error("expected different id for different duration")
	}
	// Duration rounds to 3 decimals before hashing.
	if RecordingID("ab12cd", 3601.5000004) != base {
		t.Error("expected identical id for sub-millisecond duration difference")
	}
}

func TestEventID_Deterministic(t *testing.T) {
	rec := RecordingID("ab12cd", 10.0)
	a := EventID(rec, "speech_segment", 1.234, 5.678, "")
	b := EventID(rec, "speech_segment", 1.234, 5.678, "")
	if a != b {
		t.Errorf("expected stable event id, got %s and %s", a, b)
	}
	if EventID(rec, "transcript_chunk", 1.234, 5.678, "") == a {
		t.Error("expected event type to separate ids")
	}
	other := RecordingID("ffffff", 10.0)
	if EventID(other, "speech_segment", 1.234, 5.678, "") == a {
		t.Error("expected recording namespace to separate ids")
	}
}

func TestNewRunID_Fresh(t *testing.T) {
	if NewRunID() == NewRunID() {
		t.Error("expected distinct run ids per invocation")
	}
}

func TestChunkID_ClockDerived(t *testing.T) {
	rec := RecordingID("ab12cd", 10.0)
	start := time.Date(2026, 1, 10, 7, 12, 0, 0, time.Local)
	got := ChunkID(rec, &start, 30.5)
	if got != "20260110-071230" {
		t.Errorf("expected 20260110-071230, got %s", got)
	}
}

func TestChunkID_FallbackNamespaced(t *testing.T) {
	rec := RecordingID("ab12cd", 10.0)
	got := ChunkID(rec, nil, 125.9)
	prefix := rec.String()[:8]
	if !strings.HasPrefix(got, prefix+"-chunk-") {
		t.Errorf("expected fallback id prefixed with %s-chunk-, got %s", prefix, got)
	}
	if !strings.HasSuffix(got, "000125") {
		t.Errorf("expected integer second offset 000125, got %s", got)
	}

	other := RecordingID("ffffff", 10.0)
	if ChunkID(other, nil, 125.9) == got {
		t.Error("expected fallback ids from distinct recordings to differ")
	}
}
