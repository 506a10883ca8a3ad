// Package cluster collapses fine-grained transcript chunks into coherent
// merged blocks separated by silence gaps above a threshold.
//
// The gap threshold here is deliberately much coarser than the VAD's own
// merge gap: the goal is human-reviewable paragraphs, not VAD-tight
// segments. The join is lossy on purpose; per-chunk texts are not
// recoverable from a merged block.
package cluster

import (
	"sort"
	"strings"

	"daylog/internal/models"
)

// DefaultGapSeconds is the silence gap above which two chunks start
// separate blocks.
const DefaultGapSeconds = 15.0

// accumulator is the open block being extended during the fold.
type accumulator struct {
	t0    float64
	t1    float64
	texts []string
	err   string
}

func (a *accumulator) block() models.TranscriptChunk {
	return models.TranscriptChunk{
		T0:    a.t0,
		T1:    a.t1,
		Text:  strings.Join(a.texts, " "),
		Error: a.err,
	}
}

// Merge folds time-sorted chunks into merged blocks. Chunks are re-sorted
// defensively by t0 first. A chunk whose gap to the open block is below gap
// seconds extends the block: t1 advances to the later end, non-empty text
// is appended in order, and the first error encountered is kept. An empty
// input yields an empty output; no blocks are fabricated.
//
// The returned blocks carry no chunk ids or confidences; the caller assigns
// ids appropriate to the merged time range.
func Merge(chunks []models.TranscriptChunk, gap float64) []models.TranscriptChunk {
	if len(chunks) == 0 {
		return nil
	}
	sorted := make([]models.TranscriptChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].T0 < sorted[j].T0 })

	open := newAccumulator(sorted[0])
	var blocks []models.TranscriptChunk
	for _, c := range sorted[1:] {
		if c.T0-open.t1 < gap {
			extend(open, c)
			continue
		}
		blocks = append(blocks, open.block())
		open = newAccumulator(c)
	}
	return append(blocks, open.block())
}

func newAccumulator(c models.TranscriptChunk) *accumulator {
	a := &accumulator{t0: c.T0, t1: c.T1, err: c.Error}
	if c.Text != "" {
		a.texts = append(a.texts, c.Text)
	}
	return a
}

func extend(a *accumulator, c models.TranscriptChunk) {
	// A chunk fully inside the open block (ASR span overrun) must not
	// shrink it.
	if c.T1 > a.t1 {
		a.t1 = c.T1
	}
	if c.Text != "" {
		a.texts = append(a.texts, c.Text)
	}
	if a.err == "" {
		a.err = c.Error
	}
}
