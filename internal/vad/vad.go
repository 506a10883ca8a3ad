// Package vad implements the three-stage voice-activity cascade that turns
// a raw audio buffer into speech intervals: a cheap energy gate, a spectral
// band-ratio filter, and finally a neural classifier behind the Classifier
// interface. Each stage only ever narrows what the previous stage passed.
package vad

import (
	"context"
)

// SpeechSpan is one speech region reported by a neural classifier, in
// sample offsets relative to the audio it was given.
type SpeechSpan struct {
	StartSample int
	EndSample   int
}

// ClassifyOptions carries the sensitivity parameters handed to a neural
// classifier backend.
type ClassifyOptions struct {
	// Threshold is the speech probability above which a frame counts as
	// speech. Range (0, 1).
	Threshold float64
	// MinSpeechMs drops detections shorter than this many milliseconds.
	MinSpeechMs int
	// MinSilenceMs is the silence run needed to end a detection.
	MinSilenceMs int
	// PaddingMs widens each detection on both sides.
	PaddingMs int
}

// Classifier is the external neural VAD capability. Given a mono sample
// buffer it returns speech spans in sample offsets within that buffer.
//
// The classifier is the precision-determining stage of the cascade: if it
// is unavailable or fails, the whole recording fails rather than silently
// degrading to the cheaper stages' output.
type Classifier interface {
	Classify(ctx context.Context, samples []float32, sampleRate int, opts ClassifyOptions) ([]SpeechSpan, error)
	// Name identifies the backend for provenance metadata.
	Name() string
}
