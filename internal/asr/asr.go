// Package asr defines the Transcriber interface for speech-to-text
// backends. Each call is scoped to one short clip: an interval that already
// passed the VAD cascade, possibly sub-split to the backend's duration cap.
package asr

import (
	"context"

	"daylog/internal/models"
)

// Options carries recognition hints for a transcription call.
type Options struct {
	// Language is a language hint (e.g. "en"). Empty lets the backend
	// detect the language, if it can.
	Language string
	// WordTimestamps requests per-word offsets where the backend supports
	// them.
	WordTimestamps bool
}

// Result is the outcome of transcribing one clip.
type Result struct {
	// Spans are the recognized text spans with offsets in seconds relative
	// to the clip.
	Spans []models.TextSpan
	// Language is the detected (or configured) language of the clip.
	Language string
}

// Transcriber is the external ASR capability.
//
// Implementations must be safe for concurrent use; the pipeline may
// transcribe several intervals in parallel.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, opts Options) (Result, error)
	// Name identifies the backend for provenance metadata.
	Name() string
}
