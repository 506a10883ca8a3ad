// Package mock provides a configurable vad.Classifier for tests.
package mock

import (
	"context"

	"daylog/internal/vad"
)

// Classifier implements vad.Classifier with an injectable function. The
// zero value reports the entire input as one speech span.
type Classifier struct {
	// ClassifyFunc overrides Classify when set.
	ClassifyFunc func(ctx context.Context, samples []float32, sampleRate int, opts vad.ClassifyOptions) ([]vad.SpeechSpan, error)

	// Calls counts Classify invocations.
	Calls int
}

var _ vad.Classifier = (*Classifier)(nil)

func (m *Classifier) Classify(ctx context.Context, samples []float32, sampleRate int, opts vad.ClassifyOptions) ([]vad.SpeechSpan, error) {
	m.Calls++
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, samples, sampleRate, opts)
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return []vad.SpeechSpan{{StartSample: 0, EndSample: len(samples)}}, nil
}

func (m *Classifier) Name() string { return "mock" }
