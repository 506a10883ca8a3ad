// Package mock provides a configurable asr.Transcriber for tests.
package mock

import (
	"context"
	"sync"

	"daylog/internal/asr"
	"daylog/internal/models"
)

// Transcriber implements asr.Transcriber with an injectable function. The
// zero value returns a single fixed span covering the whole clip.
type Transcriber struct {
	// TranscribeFunc overrides Transcribe when set.
	TranscribeFunc func(ctx context.Context, samples []float32, sampleRate int, opts asr.Options) (asr.Result, error)

	// Text is the span text returned by the default behavior.
	Text string

	mu    sync.Mutex
	calls int
}

var _ asr.Transcriber = (*Transcriber)(nil)

func (m *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts asr.Options) (asr.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, samples, sampleRate, opts)
	}
	text := m.Text
	if text == "" {
		text = "mock transcript"
	}
	end := float64(len(samples)) / float64(sampleRate)
	return asr.Result{
		Spans:    []models.TextSpan{{Start: 0, End: end, Text: text}},
		Language: opts.Language,
	}, nil
}

// Calls reports how many times Transcribe has been invoked.
func (m *Transcriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Transcriber) Name() string { return "mock" }
