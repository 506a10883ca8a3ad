// Package identity derives the stable identifiers used across the pipeline.
//
// Recording and speech-segment ids are content-derived (UUIDv5), so
// re-running an unchanged recording with unchanged configuration reproduces
// them exactly. Transcript-chunk ids favor human traceability: they are
// clock-derived when the recording's absolute start time is known, because
// the same id names the exported audio clip on disk.
package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChunkIDTimeLayout is the compact local-clock layout for chunk ids,
// e.g. "20260110-071230".
const ChunkIDTimeLayout = "20060102-150405"

// RecordingID derives the deterministic recording identifier from the
// source file's content hash and its probed duration. Identical bytes and
// identical duration always yield the identical id, independent of
// filename, path or invocation time.
func RecordingID(sha256Hex string, durationSeconds float64) uuid.UUID {
	basis := fmt.Sprintf("%s:%.3f", sha256Hex, durationSeconds)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(basis))
}

// NewRunID returns a fresh random identifier distinguishing repeated runs
// over the same recording.
func NewRunID() uuid.UUID {
	return uuid.New()
}

// EventID derives a deterministic event identifier namespaced under the
// recording id. Stable across re-runs as long as the cascade is
// deterministic and configuration is unchanged.
func EventID(recordingID uuid.UUID, eventType string, t0, t1 float64, speakerID string) string {
	basis := fmt.Sprintf("%s:%.3f:%.3f:%s", eventType, t0, t1, speakerID)
	return uuid.NewSHA1(recordingID, []byte(basis)).String()
}

// ChunkID derives the transcript-chunk identifier for the chunk starting at
// offset t0 seconds. With a known absolute start time the id is the local
// wall-clock time of the chunk, which doubles as the exported clip's
// filename. Without one, the id falls back to the integer second offset,
// prefixed with the first 8 hex digits of the recording id so ids from
// distinct untimed recordings cannot collide.
func ChunkID(recordingID uuid.UUID, start *time.Time, t0 float64) string {
	if start != nil {
		at := start.Add(time.Duration(t0 * float64(time.Second)))
		return at.Format(ChunkIDTimeLayout)
	}
	return fmt.Sprintf("%s-chunk-%06d", recordingID.String()[:8], int(t0))
}
