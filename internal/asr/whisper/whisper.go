// Package whisper implements asr.Transcriber with the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"daylog/internal/asr"
	"daylog/internal/models"
)

// Transcriber runs whisper.cpp inference on in-memory samples. The model is
// loaded once and shared; each Transcribe call creates its own whisper
// context, so concurrent calls do not interfere.
type Transcriber struct {
	model   whisperlib.Model
	threads int

	// The bindings allow concurrent contexts over one model, but context
	// creation itself is serialized to stay clear of the loader's shared
	// state.
	mu sync.Mutex
}

var _ asr.Transcriber = (*Transcriber)(nil)

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithThreads sets the inference thread count. Defaults to the binding's
// own default when zero.
func WithThreads(n int) Option {
	return func(t *Transcriber) { t.threads = n }
}

// New loads the whisper model from the given path. The caller owns the
// returned Transcriber and must Close it; per the shared-handle ownership
// rule the model is constructed once per process and passed into pipeline
// invocations, never re-loaded per recording.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	t := &Transcriber{model: model}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Close releases the model.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

func (t *Transcriber) Name() string { return "whisper.cpp" }

// Transcribe runs inference over the clip and returns one span per whisper
// segment, with offsets relative to the clip. Span confidence is the mean
// token probability when token data is available.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts asr.Options) (asr.Result, error) {
	if err := ctx.Err(); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: context cancelled: %w", err)
	}
	if sampleRate != whisperlib.SampleRate {
		return asr.Result{}, fmt.Errorf("whisper: need %d Hz input, got %d", whisperlib.SampleRate, sampleRate)
	}

	wctx, err := t.newContext(opts)
	if err != nil {
		return asr.Result{}, err
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return asr.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var spans []models.TextSpan
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return asr.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		spans = append(spans, models.TextSpan{
			Start:      segment.Start.Seconds(),
			End:        segment.End.Seconds(),
			Text:       text,
			Confidence: meanTokenProbability(segment.Tokens),
		})
	}

	lang := opts.Language
	if lang == "" {
		lang = wctx.DetectedLanguage()
	}
	return asr.Result{Spans: spans, Language: lang}, nil
}

func (t *Transcriber) newContext(opts asr.Options) (whisperlib.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}
	if t.threads > 0 {
		wctx.SetThreads(uint(t.threads))
	}
	wctx.SetTokenTimestamps(opts.WordTimestamps)
	return wctx, nil
}

func meanTokenProbability(tokens []whisperlib.Token) *float64 {
	if len(tokens) == 0 {
		return nil
	}
	var sum float64
	for _, tok := range tokens {
		sum += float64(tok.P)
	}
	mean := sum / float64(len(tokens))
	return &mean
}
