package pipeline

import "path/filepath"

// RecordingPaths is the on-disk layout of one recording's artifacts:
//
//	<root>/<date>/<stem>_<hash8>/original.<ext>
//	<root>/<date>/<stem>_<hash8>/processed/...
type RecordingPaths struct {
	RecordingDir   string
	ProcessedDir   string
	ChunkDir       string
	OriginalCopy   string
	AudioWAV       string
	SegmentsJSON   string
	TranscriptJSON string
	TranscriptTXT  string
	EventsJSONL    string
	EventsCSV      string
	RecordingJSON  string
}

// BuildPaths lays out the artifact paths for one recording. originalExt
// keeps the source file's extension (including the dot) on the preserved
// copy.
func BuildPaths(outputRoot, date, recordingName, originalExt string) RecordingPaths {
	recordingDir := filepath.Join(outputRoot, date, recordingName)
	processedDir := filepath.Join(recordingDir, "processed")
	return RecordingPaths{
		RecordingDir:   recordingDir,
		ProcessedDir:   processedDir,
		ChunkDir:       filepath.Join(processedDir, "chunks"),
		OriginalCopy:   filepath.Join(recordingDir, "original"+originalExt),
		AudioWAV:       filepath.Join(processedDir, "audio_16k_mono.wav"),
		SegmentsJSON:   filepath.Join(processedDir, "segments.json"),
		TranscriptJSON: filepath.Join(processedDir, "transcript.json"),
		TranscriptTXT:  filepath.Join(processedDir, "transcript.txt"),
		EventsJSONL:    filepath.Join(processedDir, "events.jsonl"),
		EventsCSV:      filepath.Join(processedDir, "events.csv"),
		RecordingJSON:  filepath.Join(processedDir, "recording.json"),
	}
}
