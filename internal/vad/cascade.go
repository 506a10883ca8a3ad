package vad

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"daylog/internal/audio"
	"daylog/internal/interval"
	"daylog/internal/models"
	"daylog/internal/observability/metrics"
)

// ErrNoClassifier is returned when the cascade is run without a neural
// classifier backend.
var ErrNoClassifier = errors.New("vad: no neural classifier configured")

// ParameterError reports a cascade parameter the stages cannot run with.
type ParameterError struct {
	Param  string
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("vad: %s: %s", e.Param, e.Reason)
}

// CascadeConfig holds the parameters of all three stages plus the interval
// algebra applied to the classifier output.
type CascadeConfig struct {
	// Stage 1: energy gate.
	BlockSeconds      float64
	EnergyThresholdDB float64

	// Stage 2: spectral band-ratio filter.
	WindowSeconds      float64
	BandRatioThreshold float64

	// Stage 3: neural classifier.
	RegionMergeGapSeconds float64
	Threshold             float64
	MinSpeechMs           int
	MinSilenceMs          int
	PaddingMs             int

	// Output algebra.
	PadPreSeconds    float64
	PadPostSeconds   float64
	MergeGapSeconds  float64
	MinSpeechSeconds float64
}

// DefaultCascadeConfig returns the stock cascade parameters.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		BlockSeconds:          1.0,
		EnergyThresholdDB:     -50.0,
		WindowSeconds:         0.5,
		BandRatioThreshold:    0.4,
		RegionMergeGapSeconds: 0.5,
		Threshold:             0.5,
		MinSpeechMs:           250,
		MinSilenceMs:          100,
		PaddingMs:             30,
		PadPreSeconds:         0.3,
		PadPostSeconds:        0.3,
		MergeGapSeconds:       0.6,
		MinSpeechSeconds:      0.4,
	}
}

// Validate rejects parameter combinations the cascade cannot run with. All
// failures are *ParameterError values.
func (c CascadeConfig) Validate() error {
	if c.BlockSeconds <= 0 {
		return &ParameterError{"block_seconds", fmt.Sprintf("must be positive, got %g", c.BlockSeconds)}
	}
	if c.WindowSeconds <= 0 {
		return &ParameterError{"window_seconds", fmt.Sprintf("must be positive, got %g", c.WindowSeconds)}
	}
	if c.WindowSeconds > c.BlockSeconds {
		return &ParameterError{"window_seconds", fmt.Sprintf("%gs exceeds energy block %gs", c.WindowSeconds, c.BlockSeconds)}
	}
	if c.BandRatioThreshold < 0 || c.BandRatioThreshold > 1 {
		return &ParameterError{"band_ratio_threshold", fmt.Sprintf("must be in [0,1], got %g", c.BandRatioThreshold)}
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return &ParameterError{"threshold", fmt.Sprintf("must be in (0,1), got %g", c.Threshold)}
	}
	if c.MinSpeechSeconds < 0 {
		return &ParameterError{"min_speech_seconds", fmt.Sprintf("must not be negative, got %g", c.MinSpeechSeconds)}
	}
	return nil
}

// Cascade runs the three-stage funnel over one audio buffer.
type Cascade struct {
	cfg        CascadeConfig
	classifier Classifier
	log        zerolog.Logger
	metrics    *metrics.Metrics
}

// NewCascade builds a cascade. The configuration must already be validated.
func NewCascade(cfg CascadeConfig, classifier Classifier, log zerolog.Logger) *Cascade {
	return &Cascade{cfg: cfg, classifier: classifier, log: log, metrics: metrics.DefaultMetrics}
}

// segmentConfidence is the confidence stamped on surviving segments. The
// classifier backends in use report timestamp pairs without a continuous
// score; a backend that exposes one can replace this per span.
const segmentConfidence = 1.0

// Run narrows the buffer through all three stages and applies padding,
// merging and minimum-duration filtering to the classifier output. The
// returned segments are sorted and disjoint.
//
// A classifier failure fails the whole recording: the neural stage decides
// precision, and falling back to the cheaper stages would produce
// misleadingly confident results.
func (c *Cascade) Run(ctx context.Context, buf *audio.Buffer) ([]models.SpeechSegment, error) {
	if c.classifier == nil {
		return nil, ErrNoClassifier
	}

	candidates := energyGate(buf, c.cfg.BlockSeconds, c.cfg.EnergyThresholdDB)
	c.log.Debug().Int("regions", len(candidates)).Msg("energy gate done")

	candidates = spectralFilter(buf, candidates, c.cfg.WindowSeconds, c.cfg.BandRatioThreshold)
	c.log.Debug().Int("regions", len(candidates)).Msg("spectral filter done")

	// Merge close survivors so the classifier sees a few regions instead of
	// thousands of tiny clips.
	candidates = interval.MergeByGap(candidates, c.cfg.RegionMergeGapSeconds)

	speech, err := c.classifyRegions(ctx, buf, candidates)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Int("intervals", len(speech)).Msg("neural classifier done")

	padded := make([]models.Interval, 0, len(speech))
	for _, iv := range speech {
		padded = append(padded, interval.Pad(iv, c.cfg.PadPreSeconds, c.cfg.PadPostSeconds))
	}
	merged := interval.MergeByGap(padded, c.cfg.MergeGapSeconds)
	kept := interval.FilterMinDuration(merged, c.cfg.MinSpeechSeconds)
	c.metrics.RecordSegmentsDropped("min_duration", len(merged)-len(kept))

	segments := make([]models.SpeechSegment, 0, len(kept))
	for _, iv := range kept {
		segments = append(segments, models.SpeechSegment{
			T0:         iv.T0,
			T1:         iv.T1,
			Confidence: segmentConfidence,
		})
	}
	return segments, nil
}

// classifyRegions feeds each candidate region to the neural classifier and
// translates the resulting sample spans back into buffer-absolute
// intervals.
func (c *Cascade) classifyRegions(ctx context.Context, buf *audio.Buffer, regions []models.Interval) ([]models.Interval, error) {
	opts := ClassifyOptions{
		Threshold:    c.cfg.Threshold,
		MinSpeechMs:  c.cfg.MinSpeechMs,
		MinSilenceMs: c.cfg.MinSilenceMs,
		PaddingMs:    c.cfg.PaddingMs,
	}

	var out []models.Interval
	for _, region := range regions {
		samples := buf.Slice(region.T0, region.T1)
		if len(samples) == 0 {
			continue
		}
		spans, err := c.classifier.Classify(ctx, samples, buf.SampleRate, opts)
		if err != nil {
			return nil, fmt.Errorf("vad: classifier %s on region [%.3f, %.3f]: %w",
				c.classifier.Name(), region.T0, region.T1, err)
		}
		for _, span := range spans {
			out = append(out, models.Interval{
				T0: region.T0 + float64(span.StartSample)/float64(buf.SampleRate),
				T1: region.T0 + float64(span.EndSample)/float64(buf.SampleRate),
			})
		}
	}
	return out, nil
}
