// Package models defines the data structures that flow through the pipeline:
// time intervals, speech segments, transcript chunks and the canonical Event.
package models

// SchemaVersion stamps every produced artifact. Bump when any output
// format changes shape.
const SchemaVersion = "1.0"

// PipelineVersion identifies the pipeline implementation that produced a run.
const PipelineVersion = "daylog-go/1.0.0"

// Event types, in their fixed sort order for equal t0.
const (
	EventTypeSpeechSegment   = "speech_segment"
	EventTypeTranscriptChunk = "transcript_chunk"
)

// Interval is a (t0, t1) time range in seconds relative to the start of the
// recording's audio buffer. Always t0 >= 0 and t1 > t0 for intervals produced
// by the pipeline. Intervals are ephemeral values with no identity.
type Interval struct {
	T0 float64
	T1 float64
}

// Duration returns t1 - t0 in seconds.
func (iv Interval) Duration() float64 {
	return iv.T1 - iv.T0
}

// SpeechSegment is a speech interval that survived the full VAD cascade.
// Confidence is monotonically meaningful but not calibrated.
type SpeechSegment struct {
	T0         float64 `json:"t0"`
	T1         float64 `json:"t1"`
	Confidence float64 `json:"vad_confidence"`
}

// Interval returns the segment's time interval.
func (s SpeechSegment) Interval() Interval {
	return Interval{T0: s.T0, T1: s.T1}
}

// TranscriptChunk is one transcribed span of audio. When transcription of an
// interval fails, Text is empty and Error carries the failure so the timeline
// is preserved rather than silently losing the gap.
type TranscriptChunk struct {
	ChunkID    string   `json:"chunk_id"`
	T0         float64  `json:"t0"`
	T1         float64  `json:"t1"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
	Error      string   `json:"error,omitempty"`
}

// TextSpan is a single recognized span returned by an ASR backend, with
// offsets in seconds relative to the transcribed clip (not the recording).
type TextSpan struct {
	Start      float64
	End        float64
	Text       string
	Confidence *float64
}

// Provenance records which pipeline produced an event.
type Provenance struct {
	PipelineVersion string `json:"pipeline_version"`
}

// Event is the canonical output unit. One Event is built per SpeechSegment
// and per TranscriptChunk; the full set for one recording forms the event
// log, totally ordered by (t0, event_type).
//
// Pointer fields serialize as JSON null when absent, matching the artifact
// schema: a speech segment has no text, an untimed recording has no ISO
// timestamps.
type Event struct {
	EventID       string     `json:"event_id"`
	RecordingID   string     `json:"recording_id"`
	RunID         string     `json:"run_id"`
	EventType     string     `json:"event_type"`
	T0            float64    `json:"t0"`
	T1            float64    `json:"t1"`
	StartISO      *string    `json:"start_iso"`
	EndISO        *string    `json:"end_iso"`
	SpeakerID     *string    `json:"speaker_id"`
	Text          *string    `json:"text"`
	Error         *string    `json:"error"`
	VADConfidence *float64   `json:"vad_confidence"`
	ASRConfidence *float64   `json:"asr_confidence"`
	SchemaVersion string     `json:"schema_version"`
	Provenance    Provenance `json:"provenance"`
}
