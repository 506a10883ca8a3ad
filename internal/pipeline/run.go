// Package pipeline orchestrates the full recording flow: preserve the
// original, normalize audio, detect speech, transcribe, cluster, and write
// the event log and its sibling artifacts.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"daylog/internal/asr"
	"daylog/internal/audio"
	"daylog/internal/cluster"
	"daylog/internal/config"
	"daylog/internal/eventlog"
	"daylog/internal/events"
	"daylog/internal/identity"
	"daylog/internal/interval"
	"daylog/internal/media"
	"daylog/internal/models"
	"daylog/internal/observability/logging"
	"daylog/internal/observability/metrics"
	"daylog/internal/vad"
)

// ErrNoAudioFiles is returned when a batch input yields nothing to process.
var ErrNoAudioFiles = errors.New("pipeline: no audio files found")

// audioExts are the source extensions picked up when walking a directory.
var audioExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
}

// MediaConverter is the external media tool contract the pipeline relies
// on. *media.Converter is the production implementation.
type MediaConverter interface {
	ProbeDuration(ctx context.Context, sourcePath string) (float64, error)
	ConvertToWAV(ctx context.Context, sourcePath, outPath string, sampleRate, channels int) error
	ExtractWAVSegment(ctx context.Context, sourcePath, outPath string, startSeconds, durationSeconds float64, sampleRate, channels int) error
	FFmpegVersion(ctx context.Context) string
	FFprobeVersion(ctx context.Context) string
}

var _ MediaConverter = (*media.Converter)(nil)

// Runner processes recordings with a fixed set of backends. One Runner may
// process many recordings; no state is shared between them.
type Runner struct {
	Cfg         *config.Config
	Converter   MediaConverter
	Classifier  vad.Classifier
	Transcriber asr.Transcriber
	Publisher   *events.Publisher
	Metrics     *metrics.Metrics
}

// NewRunner builds a Runner around validated configuration and constructed
// backends. A nil publisher disables progress and event publishing.
func NewRunner(cfg *config.Config, conv MediaConverter, classifier vad.Classifier, transcriber asr.Transcriber, pub *events.Publisher) *Runner {
	return &Runner{
		Cfg:         cfg,
		Converter:   conv,
		Classifier:  classifier,
		Transcriber: transcriber,
		Publisher:   pub,
		Metrics:     metrics.DefaultMetrics,
	}
}

// Run processes one file or every audio file under a directory. One
// recording's failure is logged and counted but does not abort the batch.
// It returns the recording directories that were produced (or found already
// processed).
func (r *Runner) Run(ctx context.Context, input string, opts RunOptions) ([]string, error) {
	files, err := collectInputFiles(input)
	if err != nil {
		return nil, err
	}

	log := logging.WithComponent("pipeline")

	var dirs []string
	for _, file := range files {
		dir, err := r.Process(ctx, file, opts)
		if err != nil {
			if ctx.Err() != nil {
				return dirs, ctx.Err()
			}
			log.Error().Err(err).Str("input", file).Msg("Recording failed")
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// collectInputFiles resolves a path to the ordered list of recordings to
// process.
func collectInputFiles(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if !info.IsDir() {
		return []string{input}, nil
	}

	var files []string
	err = filepath.WalkDir(input, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audioExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: walk %s: %w", input, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w at %s", ErrNoAudioFiles, input)
	}
	sort.Strings(files)
	return files, nil
}

// Process runs one recording end to end and returns its recording
// directory.
func (r *Runner) Process(ctx context.Context, inputPath string, opts RunOptions) (string, error) {
	processStart := time.Now()

	date, err := resolveDate(inputPath, opts.DateOverride)
	if err != nil {
		return "", err
	}

	fileHash, err := sha256File(inputPath)
	if err != nil {
		return "", fmt.Errorf("pipeline: hash %s: %w", inputPath, err)
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	recordingName := fmt.Sprintf("%s_%s", stem, fileHash[:8])
	paths := BuildPaths(r.Cfg.Output.Root, date, recordingName, filepath.Ext(inputPath))

	if err := os.MkdirAll(paths.ProcessedDir, 0o755); err != nil {
		return "", fmt.Errorf("pipeline: create output dirs: %w", err)
	}

	if _, err := os.Stat(paths.OriginalCopy); errors.Is(err, os.ErrNotExist) {
		if err := copyFile(inputPath, paths.OriginalCopy); err != nil {
			return "", fmt.Errorf("pipeline: preserve original: %w", err)
		}
	}

	duration, err := r.Converter.ProbeDuration(ctx, paths.OriginalCopy)
	if err != nil {
		return "", err
	}

	recordingID := identity.RecordingID(fileHash, duration)
	log := logging.WithRecording(recordingID.String(), "")

	if !r.Cfg.Output.Overwrite && alreadyProcessed(paths.RecordingJSON, recordingID.String()) {
		log.Info().Str("input", inputPath).Msg("Recording already processed, skipping")
		r.Metrics.RecordRecordingSkipped()
		return paths.RecordingDir, nil
	}

	runID := identity.NewRunID()
	log = logging.WithRecording(recordingID.String(), runID.String())

	start, startSource, err := resolveStartTime(inputPath, opts)
	if err != nil {
		return "", err
	}

	r.Metrics.RecordRecordingStart()
	r.Metrics.RecordAudioSeconds(duration)
	success := false
	defer func() {
		r.Metrics.RecordRecordingEnd(success, time.Since(processStart).Seconds())
	}()

	log.Info().
		Str("input", inputPath).
		Float64("durationS", duration).
		Str("startTimeSource", startSource).
		Msg("Processing recording")

	// Stage: audio normalization.
	err = r.stage(ctx, recordingID.String(), runID.String(), inputPath, "convert", func() error {
		return r.Converter.ConvertToWAV(ctx, paths.OriginalCopy, paths.AudioWAV, r.Cfg.Audio.SampleRate, 1)
	})
	if err != nil {
		return "", err
	}

	buf, err := audio.ReadWAV(paths.AudioWAV)
	if err != nil {
		return "", err
	}

	// Stage: speech detection.
	var segments []models.SpeechSegment
	err = r.stage(ctx, recordingID.String(), runID.String(), inputPath, "vad", func() error {
		cascade := vad.NewCascade(r.Cfg.Cascade(), r.Classifier, logging.WithStage(recordingID.String(), runID.String(), "vad"))
		var cascadeErr error
		segments, cascadeErr = cascade.Run(ctx, buf)
		return cascadeErr
	})
	if err != nil {
		return "", err
	}
	r.Metrics.RecordSegmentsDetected(len(segments))
	if segments == nil {
		segments = []models.SpeechSegment{}
	}

	if err := writeJSON(paths.SegmentsJSON, segmentsRecord{
		SchemaVersion: models.SchemaVersion,
		RecordingID:   recordingID.String(),
		Segments:      segments,
	}); err != nil {
		return "", fmt.Errorf("pipeline: write segments: %w", err)
	}

	// Stage: transcription.
	chunks := []models.TranscriptChunk{}
	var language *string
	if len(segments) > 0 {
		err = r.stage(ctx, recordingID.String(), runID.String(), inputPath, "transcribe", func() error {
			var asrErr error
			chunks, language, asrErr = r.transcribeSegments(ctx, paths, segments, log)
			return asrErr
		})
		if err != nil {
			return "", err
		}
		if chunks == nil {
			chunks = []models.TranscriptChunk{}
		}
	} else {
		log.Info().Msg("No speech segments found, skipping transcription")
	}

	for i := range chunks {
		chunks[i].ChunkID = identity.ChunkID(recordingID, start, chunks[i].T0)
	}

	if err := writeJSON(paths.TranscriptJSON, transcriptRecord{
		SchemaVersion: models.SchemaVersion,
		RecordingID:   recordingID.String(),
		Language:      language,
		Chunks:        chunks,
	}); err != nil {
		return "", fmt.Errorf("pipeline: write transcript: %w", err)
	}

	// Stage: clustering and event assembly.
	var evts []models.Event
	err = r.stage(ctx, recordingID.String(), runID.String(), inputPath, "assemble", func() error {
		blocks := cluster.Merge(chunks, r.Cfg.Cluster.GapSeconds)
		for i := range blocks {
			blocks[i].ChunkID = identity.ChunkID(recordingID, start, blocks[i].T0)
		}

		if err := writeTranscriptText(paths.TranscriptTXT, blocks); err != nil {
			return fmt.Errorf("pipeline: write transcript text: %w", err)
		}

		evts = eventlog.Build(recordingID, runID, start, segments, blocks)
		if err := writeJSONL(paths.EventsJSONL, evts); err != nil {
			return fmt.Errorf("pipeline: write event log: %w", err)
		}
		if err := writeCSV(paths.EventsCSV, eventlog.CSVHeader, eventlog.CSVRows(evts)); err != nil {
			return fmt.Errorf("pipeline: write event csv: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	for _, ev := range evts {
		r.Metrics.RecordEventEmitted(ev.EventType)
	}

	record, err := buildRecordingRecord(
		recordingID.String(), runID.String(),
		paths.OriginalCopy, fileHash, duration,
		start, startSource,
		toolVersions{
			FFmpeg:     r.Converter.FFmpegVersion(ctx),
			FFprobe:    r.Converter.FFprobeVersion(ctx),
			Classifier: r.Classifier.Name(),
			ASR:        r.Transcriber.Name(),
		},
		r.Cfg,
	)
	if err != nil {
		return "", err
	}
	if err := writeJSON(paths.RecordingJSON, record); err != nil {
		return "", fmt.Errorf("pipeline: write recording metadata: %w", err)
	}

	if !r.Cfg.Output.KeepIntermediate {
		if err := os.RemoveAll(paths.ChunkDir); err != nil {
			log.Warn().Err(err).Msg("Could not remove intermediate clips")
		}
	}

	r.publishEvents(ctx, recordingID.String(), evts)

	success = true
	log.Info().
		Int("segments", len(segments)).
		Int("chunks", len(chunks)).
		Int("events", len(evts)).
		Str("dir", paths.RecordingDir).
		Msg("Recording processed")
	return paths.RecordingDir, nil
}

// stage runs one pipeline stage with progress publishing and stage metrics
// around it.
func (r *Runner) stage(ctx context.Context, recordingID, runID, source, name string, fn func() error) error {
	r.publishProgress(ctx, events.StageProgress{
		RecordingID: recordingID,
		RunID:       runID,
		Source:      source,
		Stage:       name,
		Status:      "started",
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	})

	stageStart := time.Now()
	err := fn()
	elapsed := time.Since(stageStart).Seconds()
	r.Metrics.RecordStage(name, err, elapsed)

	progress := events.StageProgress{
		RecordingID: recordingID,
		RunID:       runID,
		Source:      source,
		Stage:       name,
		Status:      "completed",
		ElapsedS:    elapsed,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err != nil {
		progress.Status = "failed"
		progress.Detail = err.Error()
	}
	r.publishProgress(ctx, progress)
	return err
}

func (r *Runner) publishProgress(ctx context.Context, p events.StageProgress) {
	if r.Publisher == nil {
		return
	}
	if err := r.Publisher.PublishProgress(ctx, p.RecordingID, p); err != nil {
		l := logging.WithComponent("pipeline")
		l.Warn().Err(err).Msg("Progress publish failed")
	}
}

func (r *Runner) publishEvents(ctx context.Context, recordingID string, evts []models.Event) {
	if r.Publisher == nil {
		return
	}
	for _, ev := range evts {
		if err := r.Publisher.PublishEvent(ctx, recordingID, ev); err != nil {
			l := logging.WithComponent("pipeline")
			l.Warn().Err(err).Msg("Event publish failed")
			return
		}
	}
}

// transcribeSegments extracts a clip per (sub-split) interval, transcribes
// the clips with bounded parallelism, and returns the chunks in time order.
// A failed interval becomes a chunk with empty text and a populated error,
// never a dropped gap.
func (r *Runner) transcribeSegments(ctx context.Context, paths RecordingPaths, segments []models.SpeechSegment, log zerolog.Logger) ([]models.TranscriptChunk, *string, error) {
	ivs := make([]models.Interval, 0, len(segments))
	for _, seg := range segments {
		ivs = append(ivs, seg.Interval())
	}
	ivs = interval.SplitLong(ivs, r.Cfg.ASR.MaxClipSeconds)

	if err := os.MkdirAll(paths.ChunkDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("pipeline: create clip dir: %w", err)
	}

	hint := r.Cfg.ASR.Language
	if hint == "auto" {
		hint = ""
	}
	opts := asr.Options{Language: hint, WordTimestamps: true}

	results := make([][]models.TranscriptChunk, len(ivs))
	langs := make([]string, len(ivs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Cfg.ASR.Parallelism)
	for i, iv := range ivs {
		g.Go(func() error {
			results[i], langs[i] = r.transcribeClip(gctx, paths, i, iv, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var chunks []models.TranscriptChunk
	var language *string
	for i := range ivs {
		chunks = append(chunks, results[i]...)
		if language == nil && langs[i] != "" {
			lang := langs[i]
			language = &lang
		}
	}
	// Completion order must not leak into the output.
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].T0 < chunks[j].T0 })

	log.Info().Int("clips", len(ivs)).Int("chunks", len(chunks)).Msg("Transcription done")
	return chunks, language, nil
}

// transcribeClip handles one clip and reports failure as an error chunk
// covering the whole interval.
func (r *Runner) transcribeClip(ctx context.Context, paths RecordingPaths, idx int, iv models.Interval, opts asr.Options) ([]models.TranscriptChunk, string) {
	duration := iv.Duration()
	if duration <= 0 {
		return nil, ""
	}

	errChunk := func(err error) []models.TranscriptChunk {
		return []models.TranscriptChunk{{T0: iv.T0, T1: iv.T1, Error: err.Error()}}
	}

	clipPath := filepath.Join(paths.ChunkDir, fmt.Sprintf("chunk_%04d.wav", idx))
	if err := r.Converter.ExtractWAVSegment(ctx, paths.AudioWAV, clipPath, iv.T0, duration, r.Cfg.Audio.SampleRate, 1); err != nil {
		return errChunk(err), ""
	}

	buf, err := audio.ReadWAV(clipPath)
	if err != nil {
		return errChunk(err), ""
	}

	asrStart := time.Now()
	res, err := r.Transcriber.Transcribe(ctx, buf.Samples, buf.SampleRate, opts)
	r.Metrics.RecordASR(r.Transcriber.Name(), err, time.Since(asrStart).Seconds())
	if err != nil {
		return errChunk(err), ""
	}

	chunks := make([]models.TranscriptChunk, 0, len(res.Spans))
	for _, span := range res.Spans {
		text := strings.TrimSpace(span.Text)
		chunks = append(chunks, models.TranscriptChunk{
			T0:         iv.T0 + span.Start,
			T1:         iv.T0 + span.End,
			Text:       text,
			Confidence: span.Confidence,
		})
	}
	return chunks, res.Language
}

// writeTranscriptText writes the human-readable transcript: one line per
// non-empty merged block, prefixed with the block's chunk id.
func writeTranscriptText(path string, blocks []models.TranscriptChunk) error {
	var sb strings.Builder
	for _, block := range blocks {
		if block.Text == "" {
			continue
		}
		fmt.Fprintf(&sb, "[%s] %s\n", block.ChunkID, block.Text)
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// alreadyProcessed reports whether the recording directory holds metadata
// for the same recording id, the skip key for idempotent re-runs.
func alreadyProcessed(recordingJSONPath, recordingID string) bool {
	data, err := os.ReadFile(recordingJSONPath)
	if err != nil {
		return false
	}
	var record struct {
		RecordingID string `json:"recording_id"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return false
	}
	return record.RecordingID == recordingID
}
