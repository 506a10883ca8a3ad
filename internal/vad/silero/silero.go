// Package silero adapts an external Silero VAD runner process to the
// vad.Classifier interface. The runner is any executable that reads one
// JSON request on stdin — sensitivity options plus base64 raw float32
// little-endian samples — and writes one JSON response with speech spans in
// sample offsets. The model stays loaded inside the runner process; this
// side only pays serialization per call.
package silero

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"daylog/internal/vad"
)

// ErrRunnerNotConfigured is returned when no runner command is set.
var ErrRunnerNotConfigured = errors.New("silero: runner command not configured")

// Classifier shells out to a Silero VAD runner per classification call.
type Classifier struct {
	// Command is the runner invocation, e.g. "python3 silero_runner.py".
	Command []string
}

var _ vad.Classifier = (*Classifier)(nil)

// New builds a Classifier from a space-separated runner command line.
func New(command string) (*Classifier, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrRunnerNotConfigured
	}
	return &Classifier{Command: fields}, nil
}

func (c *Classifier) Name() string { return "silero" }

type request struct {
	SampleRate   int     `json:"sample_rate"`
	Threshold    float64 `json:"threshold"`
	MinSpeechMs  int     `json:"min_speech_ms"`
	MinSilenceMs int     `json:"min_silence_ms"`
	PaddingMs    int     `json:"padding_ms"`
	// PCMF32LE is base64-encoded raw little-endian float32 samples.
	PCMF32LE string `json:"pcm_f32le"`
}

type response struct {
	Segments [][2]int `json:"segments"`
	Error    string   `json:"error,omitempty"`
}

// Classify sends the samples to the runner and decodes the reported spans.
func (c *Classifier) Classify(ctx context.Context, samples []float32, sampleRate int, opts vad.ClassifyOptions) ([]vad.SpeechSpan, error) {
	if len(c.Command) == 0 {
		return nil, ErrRunnerNotConfigured
	}

	req := request{
		SampleRate:   sampleRate,
		Threshold:    opts.Threshold,
		MinSpeechMs:  opts.MinSpeechMs,
		MinSilenceMs: opts.MinSilenceMs,
		PaddingMs:    opts.PaddingMs,
		PCMF32LE:     encodeSamples(samples),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("silero: marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("silero: runner failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("silero: decode runner output: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("silero: runner error: %s", resp.Error)
	}

	spans := make([]vad.SpeechSpan, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		if seg[1] <= seg[0] {
			continue
		}
		spans = append(spans, vad.SpeechSpan{StartSample: seg[0], EndSample: seg[1]})
	}
	return spans, nil
}

func encodeSamples(samples []float32) string {
	raw := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
