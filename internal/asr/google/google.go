// Package google provides a Google Cloud Speech-to-Text asr.Transcriber.
// It uses the synchronous Recognize API, which fits the pipeline's clips:
// intervals are split to at most 30 seconds before transcription, well
// under the API's one-minute limit for inline audio.
package google

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"daylog/internal/asr"
	"daylog/internal/models"
)

const defaultLanguage = "en-US"

// Transcriber implements asr.Transcriber against Google Cloud Speech.
type Transcriber struct {
	client *speech.Client
}

var _ asr.Transcriber = (*Transcriber)(nil)

// New creates a Transcriber. Requires GOOGLE_APPLICATION_CREDENTIALS to be
// set in the environment.
func New(ctx context.Context) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google asr: create client: %w", err)
	}
	return &Transcriber{client: c}, nil
}

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	return t.client.Close()
}

func (t *Transcriber) Name() string { return "google-cloud-speech" }

// Transcribe sends the clip inline and maps each recognition result to a
// text span. Word time offsets bound the span when requested; otherwise the
// span covers the whole clip.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int, opts asr.Options) (asr.Result, error) {
	lang := opts.Language
	if lang == "" {
		lang = defaultLanguage
	}

	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:              speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:       int32(sampleRate),
			LanguageCode:          lang,
			EnableWordTimeOffsets: opts.WordTimestamps,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: float32ToLinear16(samples),
			},
		},
	})
	if err != nil {
		return asr.Result{}, fmt.Errorf("google asr: recognize: %w", err)
	}

	clipSeconds := float64(len(samples)) / float64(sampleRate)
	var spans []models.TextSpan
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		alt := result.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}
		start, end := 0.0, clipSeconds
		if n := len(alt.Words); n > 0 {
			start = alt.Words[0].StartTime.AsDuration().Seconds()
			end = alt.Words[n-1].EndTime.AsDuration().Seconds()
		}
		conf := float64(alt.Confidence)
		spans = append(spans, models.TextSpan{
			Start:      start,
			End:        end,
			Text:       alt.Transcript,
			Confidence: &conf,
		})
	}
	return asr.Result{Spans: spans, Language: lang}, nil
}

// float32ToLinear16 converts normalized samples to 16-bit little-endian PCM.
func float32ToLinear16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}
