package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"daylog/internal/asr"
	asrmock "daylog/internal/asr/mock"
	"daylog/internal/audio"
	"daylog/internal/config"
	"daylog/internal/events"
	"daylog/internal/models"
	vadmock "daylog/internal/vad/mock"
)

// writeWAV writes a minimal 16-bit PCM mono WAV file.
func writeWAV(t *testing.T, path string, sampleRate int, samples []float32) {
	t.Helper()
	var data bytes.Buffer
	for _, s := range samples {
		v := int16(s * 32767)
		binary.Write(&data, binary.LittleEndian, v)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func silentSamples(sampleRate int, seconds float64) []float32 {
	return make([]float32, int(seconds*float64(sampleRate)))
}

func toneSamples(sampleRate int, seconds, freq float64) []float32 {
	n := int(seconds * float64(sampleRate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

// fakeConverter stands in for ffmpeg/ffprobe. It only understands the WAV
// files the tests write.
type fakeConverter struct {
	probeErr error
}

func (f *fakeConverter) ProbeDuration(ctx context.Context, src string) (float64, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	buf, err := audio.ReadWAV(src)
	if err != nil {
		return 0, err
	}
	return buf.Duration(), nil
}

func (f *fakeConverter) ConvertToWAV(ctx context.Context, src, out string, sampleRate, channels int) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func (f *fakeConverter) ExtractWAVSegment(ctx context.Context, src, out string, startSeconds, durationSeconds float64, sampleRate, channels int) error {
	buf, err := audio.ReadWAV(src)
	if err != nil {
		return err
	}
	slice := buf.Slice(startSeconds, startSeconds+durationSeconds)

	var data bytes.Buffer
	for _, s := range slice {
		binary.Write(&data, binary.LittleEndian, int16(s*32767))
	}
	var w bytes.Buffer
	w.WriteString("RIFF")
	binary.Write(&w, binary.LittleEndian, uint32(36+data.Len()))
	w.WriteString("WAVE")
	w.WriteString("fmt ")
	binary.Write(&w, binary.LittleEndian, uint32(16))
	binary.Write(&w, binary.LittleEndian, uint16(1))
	binary.Write(&w, binary.LittleEndian, uint16(1))
	binary.Write(&w, binary.LittleEndian, uint32(buf.SampleRate))
	binary.Write(&w, binary.LittleEndian, uint32(buf.SampleRate*2))
	binary.Write(&w, binary.LittleEndian, uint16(2))
	binary.Write(&w, binary.LittleEndian, uint16(16))
	w.WriteString("data")
	binary.Write(&w, binary.LittleEndian, uint32(data.Len()))
	w.Write(data.Bytes())
	return os.WriteFile(out, w.Bytes(), 0o644)
}

func (f *fakeConverter) FFmpegVersion(ctx context.Context) string  { return "fake ffmpeg" }
func (f *fakeConverter) FFprobeVersion(ctx context.Context) string { return "fake ffprobe" }

func testConfig(root string) *config.Config {
	return &config.Config{
		Tool:  config.ToolConfig{Principal: "daylog-test"},
		Audio: config.AudioConfig{SampleRate: 16000},
		VAD: config.VADConfig{
			BlockSeconds:          1.0,
			EnergyThresholdDB:     -50.0,
			WindowSeconds:         0.5,
			BandRatioThreshold:    0.4,
			RegionMergeGapSeconds: 0.5,
			Classifier:            "mock",
			Threshold:             0.5,
			MinSpeechMs:           250,
			MinSilenceMs:          100,
			PaddingMs:             30,
			PadPre:                0.3,
			PadPost:               0.3,
			MergeGap:              0.6,
			MinSpeech:             0.4,
		},
		ASR: config.ASRConfig{
			Provider:       "mock",
			Language:       "auto",
			Threads:        2,
			MaxClipSeconds: 30.0,
			Parallelism:    2,
		},
		Cluster: config.ClusterConfig{GapSeconds: 15.0},
		Output:  config.OutputConfig{Root: root},
	}
}

func newTestRunner(root string) *Runner {
	return NewRunner(testConfig(root), &fakeConverter{}, &vadmock.Classifier{}, &asrmock.Transcriber{}, nil)
}

func TestBuildPaths(t *testing.T) {
	p := BuildPaths("/out", "2026-01-10", "morning_ab12cd34", ".m4a")

	if p.RecordingDir != filepath.Join("/out", "2026-01-10", "morning_ab12cd34") {
		t.Errorf("unexpected recording dir %s", p.RecordingDir)
	}
	if p.OriginalCopy != filepath.Join(p.RecordingDir, "original.m4a") {
		t.Errorf("unexpected original copy %s", p.OriginalCopy)
	}
	if p.EventsJSONL != filepath.Join(p.RecordingDir, "processed", "events.jsonl") {
		t.Errorf("unexpected events path %s", p.EventsJSONL)
	}
}

func TestResolveStartTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.wav")
	writeWAV(t, path, 16000, silentSamples(16000, 0.1))

	start, source, err := resolveStartTime(path, RunOptions{StartTime: "2026-01-10T07:12:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "user_set" {
		t.Errorf("expected source user_set, got %s", source)
	}
	if start == nil || start.Hour() != 7 || start.Minute() != 12 {
		t.Errorf("unexpected start time %v", start)
	}

	start, source, err = resolveStartTime(path, RunOptions{UseMtime: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "file_mtime" || start == nil {
		t.Errorf("expected mtime anchor, got %s %v", source, start)
	}

	start, source, err = resolveStartTime(path, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != "unknown" || start != nil {
		t.Errorf("expected unknown anchor, got %s %v", source, start)
	}

	if _, _, err := resolveStartTime(path, RunOptions{StartTime: "yesterday-ish"}); err == nil {
		t.Error("expected error for unparseable start time")
	}
}

func requireArtifacts(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{
		"recording.json", "segments.json", "transcript.json",
		"transcript.txt", "events.jsonl", "events.csv",
	} {
		if _, err := os.Stat(filepath.Join(dir, "processed", name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
}

func TestProcess_SilentRecording(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "quiet.wav")
	writeWAV(t, input, 16000, silentSamples(16000, 1.0))

	r := newTestRunner(filepath.Join(dir, "out"))
	recDir, err := r.Process(context.Background(), input, RunOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	requireArtifacts(t, recDir)

	var segs segmentsRecord
	data, err := os.ReadFile(filepath.Join(recDir, "processed", "segments.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &segs); err != nil {
		t.Fatal(err)
	}
	if segs.Segments == nil || len(segs.Segments) != 0 {
		t.Errorf("expected empty segment list, got %v", segs.Segments)
	}

	var tr transcriptRecord
	data, err = os.ReadFile(filepath.Join(recDir, "processed", "transcript.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.Chunks) != 0 {
		t.Errorf("expected no chunks for silence, got %d", len(tr.Chunks))
	}

	events, err := os.ReadFile(filepath.Join(recDir, "processed", "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(bytes.TrimSpace(events)) != 0 {
		t.Errorf("expected empty event log, got %q", events)
	}
}

func readEvents(t *testing.T, recDir string) []models.Event {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(recDir, "processed", "events.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	var out []models.Event
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var ev models.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestProcess_SpeechRecording(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.wav")
	writeWAV(t, input, 16000, toneSamples(16000, 3.0, 1000))

	r := newTestRunner(filepath.Join(dir, "out"))
	recDir, err := r.Process(context.Background(), input, RunOptions{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	requireArtifacts(t, recDir)

	evts := readEvents(t, recDir)
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].EventType != models.EventTypeSpeechSegment {
		t.Errorf("expected speech_segment first on t0 tie, got %s", evts[0].EventType)
	}
	if evts[1].EventType != models.EventTypeTranscriptChunk {
		t.Errorf("expected transcript_chunk second, got %s", evts[1].EventType)
	}
	if evts[1].Text == nil || *evts[1].Text != "mock transcript" {
		t.Errorf("unexpected chunk text %v", evts[1].Text)
	}
	for _, ev := range evts {
		if ev.StartISO != nil {
			t.Errorf("expected null start_iso without an absolute anchor, got %v", *ev.StartISO)
		}
	}

	txt, err := os.ReadFile(filepath.Join(recDir, "processed", "transcript.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := strings.TrimSpace(string(txt))
	if !strings.HasSuffix(line, "] mock transcript") || !strings.Contains(line, "-chunk-") {
		t.Errorf("unexpected transcript line %q", line)
	}

	csv, err := os.ReadFile(filepath.Join(recDir, "processed", "events.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected header plus one text-bearing row, got %d lines", len(lines))
	}

	// A repeated run over the same file is skipped: the run id on disk does
	// not change.
	before := readRunID(t, recDir)
	if _, err := r.Process(context.Background(), input, RunOptions{}); err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if after := readRunID(t, recDir); after != before {
		t.Errorf("expected skip on re-run, run id changed %s -> %s", before, after)
	}
}

func readRunID(t *testing.T, recDir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(recDir, "processed", "recording.json"))
	if err != nil {
		t.Fatal(err)
	}
	var record struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatal(err)
	}
	return record.RunID
}

func TestProcess_StartTimeAnchorsChunkIDs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.wav")
	writeWAV(t, input, 16000, toneSamples(16000, 2.0, 1000))

	r := newTestRunner(filepath.Join(dir, "out"))
	recDir, err := r.Process(context.Background(), input, RunOptions{StartTime: "2026-01-10T07:12:00"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	txt, err := os.ReadFile(filepath.Join(recDir, "processed", "transcript.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(txt)), "[20260110-0712") {
		t.Errorf("expected clock-derived chunk id prefix, got %q", txt)
	}

	evts := readEvents(t, recDir)
	for _, ev := range evts {
		if ev.StartISO == nil || ev.EndISO == nil {
			t.Errorf("expected ISO timestamps with an absolute anchor, got %+v", ev)
		}
	}
}

func TestProcess_ASRFailureProducesErrorChunks(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.wav")
	writeWAV(t, input, 16000, toneSamples(16000, 2.0, 1000))

	transcriber := &asrmock.Transcriber{
		TranscribeFunc: func(ctx context.Context, samples []float32, sampleRate int, opts asr.Options) (asr.Result, error) {
			return asr.Result{}, errors.New("model exploded")
		},
	}
	r := NewRunner(testConfig(filepath.Join(dir, "out")), &fakeConverter{}, &vadmock.Classifier{}, transcriber, nil)

	recDir, err := r.Process(context.Background(), input, RunOptions{})
	if err != nil {
		t.Fatalf("Process should recover per-interval ASR failures, got %v", err)
	}

	var tr transcriptRecord
	data, err := os.ReadFile(filepath.Join(recDir, "processed", "transcript.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.Chunks) == 0 {
		t.Fatal("expected error chunks preserving the timeline")
	}
	for _, chunk := range tr.Chunks {
		if chunk.Text != "" {
			t.Errorf("expected empty text on failed chunk, got %q", chunk.Text)
		}
		if !strings.Contains(chunk.Error, "model exploded") {
			t.Errorf("expected error carried on chunk, got %q", chunk.Error)
		}
	}

	// Failed chunks carry no text, so the CSV projection is header-only.
	csv, err := os.ReadFile(filepath.Join(recDir, "processed", "events.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(csv)), "\n"); len(lines) != 1 {
		t.Errorf("expected header-only csv, got %d lines", len(lines))
	}
}

func TestProcess_ZeroSpanTranscriptionKeepsEmptyChunkList(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.wav")
	writeWAV(t, input, 16000, toneSamples(16000, 2.0, 1000))

	// Transcription succeeds but recognizes nothing.
	transcriber := &asrmock.Transcriber{
		TranscribeFunc: func(ctx context.Context, samples []float32, sampleRate int, opts asr.Options) (asr.Result, error) {
			return asr.Result{}, nil
		},
	}
	r := NewRunner(testConfig(filepath.Join(dir, "out")), &fakeConverter{}, &vadmock.Classifier{}, transcriber, nil)

	recDir, err := r.Process(context.Background(), input, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(recDir, "processed", "transcript.json"))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(raw["chunks"])); got == "null" {
		t.Fatal("expected empty chunk list, got null")
	}
	var tr transcriptRecord
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatal(err)
	}
	if len(tr.Chunks) != 0 {
		t.Errorf("expected no chunks, got %v", tr.Chunks)
	}
}

func TestProcess_DisabledPublisher(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "talk.wav")
	writeWAV(t, input, 16000, toneSamples(16000, 2.0, 1000))

	pub := events.New(&events.Config{Enabled: false, Principal: "daylog-batch"})
	r := NewRunner(testConfig(filepath.Join(dir, "out")), &fakeConverter{}, &vadmock.Classifier{}, &asrmock.Transcriber{}, pub)

	recDir, err := r.Process(context.Background(), input, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	requireArtifacts(t, recDir)
}

func TestRun_BatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	inputs := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(inputs, 0o755); err != nil {
		t.Fatal(err)
	}
	writeWAV(t, filepath.Join(inputs, "a_good.wav"), 16000, silentSamples(16000, 0.5))
	if err := os.WriteFile(filepath.Join(inputs, "b_corrupt.wav"), []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRunner(filepath.Join(dir, "out"))
	dirs, err := r.Run(context.Background(), inputs, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(dirs) != 1 {
		t.Errorf("expected 1 processed recording, got %d", len(dirs))
	}
}

func TestRun_NoAudioFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRunner(filepath.Join(dir, "out"))
	if _, err := r.Run(context.Background(), dir, RunOptions{}); !errors.Is(err, ErrNoAudioFiles) {
		t.Errorf("expected ErrNoAudioFiles, got %v", err)
	}
}

func TestCollectInputFiles_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.mp3")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := collectInputFiles(path)
	if err != nil {
		t.Fatalf("collectInputFiles: %v", err)
	}
	if len(files) != 1 || files[0] != path {
		t.Errorf("unexpected files %v", files)
	}
}

func TestCollectInputFiles_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.wav", "a.m4a", "b.txt", "d.FLAC"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := collectInputFiles(dir)
	if err != nil {
		t.Fatalf("collectInputFiles: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	want := fmt.Sprintf("%v", []string{"a.m4a", "c.wav", "d.FLAC"})
	if got := fmt.Sprintf("%v", names); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
