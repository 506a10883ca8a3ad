// Package eventlog assembles VAD segments and transcript chunks into the
// ordered, schema-stamped event stream and its tabular projection.
package eventlog

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"daylog/internal/identity"
	"daylog/internal/models"
)

// Build constructs one Event per speech segment and per transcript chunk,
// derives ISO timestamps from the absolute start time when one is known,
// stamps schema and pipeline versions, and returns the set sorted ascending
// by (t0, event_type) with speech_segment ordering before transcript_chunk
// on ties.
//
// Build is deterministic: the same inputs always produce the same events in
// the same order, regardless of the order segments and chunks arrive in.
func Build(recordingID, runID uuid.UUID, start *time.Time, segments []models.SpeechSegment, chunks []models.TranscriptChunk) []models.Event {
	events := make([]models.Event, 0, len(segments)+len(chunks))

	for _, seg := range segments {
		conf := seg.Confidence
		events = append(events, models.Event{
			EventID:       identity.EventID(recordingID, models.EventTypeSpeechSegment, seg.T0, seg.T1, ""),
			RecordingID:   recordingID.String(),
			RunID:         runID.String(),
			EventType:     models.EventTypeSpeechSegment,
			T0:            round3(seg.T0),
			T1:            round3(seg.T1),
			StartISO:      isoAt(start, seg.T0),
			EndISO:        isoAt(start, seg.T1),
			VADConfidence: &conf,
			SchemaVersion: models.SchemaVersion,
			Provenance:    models.Provenance{PipelineVersion: models.PipelineVersion},
		})
	}

	for _, chunk := range chunks {
		text := chunk.Text
		events = append(events, models.Event{
			EventID:       identity.EventID(recordingID, models.EventTypeTranscriptChunk, chunk.T0, chunk.T1, ""),
			RecordingID:   recordingID.String(),
			RunID:         runID.String(),
			EventType:     models.EventTypeTranscriptChunk,
			T0:            round3(chunk.T0),
			T1:            round3(chunk.T1),
			StartISO:      isoAt(start, chunk.T0),
			EndISO:        isoAt(start, chunk.T1),
			Text:          &text,
			Error:         optional(chunk.Error),
			ASRConfidence: chunk.Confidence,
			SchemaVersion: models.SchemaVersion,
			Provenance:    models.Provenance{PipelineVersion: models.PipelineVersion},
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].T0 != events[j].T0 {
			return events[i].T0 < events[j].T0
		}
		return events[i].EventType < events[j].EventType
	})
	return events
}

// CSVHeader is the column list of the tabular projection.
var CSVHeader = []string{"event_id", "event_type", "t0", "t1", "start_iso", "end_iso", "text", "error"}

// CSVRows flattens the text-bearing events into rows matching CSVHeader.
// Speech-only marker events carry no text and are excluded here; they
// remain in the full event log.
func CSVRows(events []models.Event) [][]string {
	var rows [][]string
	for _, ev := range events {
		if ev.Text == nil || *ev.Text == "" {
			continue
		}
		rows = append(rows, []string{
			ev.EventID,
			ev.EventType,
			formatSeconds(ev.T0),
			formatSeconds(ev.T1),
			deref(ev.StartISO),
			deref(ev.EndISO),
			*ev.Text,
			deref(ev.Error),
		})
	}
	return rows
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// isoAt maps an interval offset to an ISO-8601 timestamp, or nil when the
// recording has no absolute start time.
func isoAt(start *time.Time, offsetSeconds float64) *string {
	if start == nil {
		return nil
	}
	iso := start.Add(time.Duration(offsetSeconds * float64(time.Second))).Format(time.RFC3339Nano)
	return &iso
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
