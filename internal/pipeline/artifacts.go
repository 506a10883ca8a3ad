package pipeline

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"daylog/internal/config"
	"daylog/internal/models"
)

// sha256File returns the lowercase hex SHA-256 of the file's content.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies src to dst, preserving the source's modification time so
// mtime-derived start times survive the copy.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if info, err := os.Stat(src); err == nil {
		_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func writeJSONL(path string, items []models.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// segmentsRecord is the segments.json artifact.
type segmentsRecord struct {
	SchemaVersion string                 `json:"schema_version"`
	RecordingID   string                 `json:"recording_id"`
	Segments      []models.SpeechSegment `json:"segments"`
}

// transcriptRecord is the transcript.json artifact.
type transcriptRecord struct {
	SchemaVersion string                   `json:"schema_version"`
	RecordingID   string                   `json:"recording_id"`
	Language      *string                  `json:"language"`
	Chunks        []models.TranscriptChunk `json:"chunks"`
}

// inputRecord describes the preserved source file.
type inputRecord struct {
	Path      string  `json:"path"`
	SizeBytes int64   `json:"size_bytes"`
	MTime     string  `json:"mtime"`
	SHA256    string  `json:"sha256"`
	DurationS float64 `json:"duration_s"`
}

// toolVersions records the exact tooling behind one run.
type toolVersions struct {
	Go         string `json:"go"`
	FFmpeg     string `json:"ffmpeg,omitempty"`
	FFprobe    string `json:"ffprobe,omitempty"`
	Classifier string `json:"vad_classifier"`
	ASR        string `json:"asr_provider"`
}

// recordingRecord is the recording.json artifact: everything needed to
// audit how one recording was processed.
type recordingRecord struct {
	SchemaVersion   string         `json:"schema_version"`
	PipelineVersion string         `json:"pipeline_version"`
	RecordingID     string         `json:"recording_id"`
	RunID           string         `json:"run_id"`
	Input           inputRecord    `json:"input"`
	StartTime       *string        `json:"start_time"`
	EndTime         *string        `json:"end_time"`
	StartTimeSource string         `json:"start_time_source"`
	ToolVersions    toolVersions   `json:"tool_versions"`
	Config          *config.Config `json:"config"`
}

func buildRecordingRecord(
	recordingID, runID string,
	inputPath string,
	fileHash string,
	durationS float64,
	start *time.Time,
	startSource string,
	versions toolVersions,
	cfg *config.Config,
) (recordingRecord, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return recordingRecord{}, fmt.Errorf("pipeline: stat input: %w", err)
	}

	var startISO, endISO *string
	if start != nil {
		s := start.Format(time.RFC3339Nano)
		e := start.Add(time.Duration(durationS * float64(time.Second))).Format(time.RFC3339Nano)
		startISO, endISO = &s, &e
	}

	versions.Go = runtime.Version()

	return recordingRecord{
		SchemaVersion:   models.SchemaVersion,
		PipelineVersion: models.PipelineVersion,
		RecordingID:     recordingID,
		RunID:           runID,
		Input: inputRecord{
			Path:      inputPath,
			SizeBytes: info.Size(),
			MTime:     info.ModTime().Format(time.RFC3339Nano),
			SHA256:    fileHash,
			DurationS: durationS,
		},
		StartTime:       startISO,
		EndTime:         endISO,
		StartTimeSource: startSource,
		ToolVersions:    versions,
		Config:          cfg,
	}, nil
}
