// Package interval provides pure functions over (t0, t1) time intervals:
// padding, gap-based merging, minimum-duration filtering and splitting of
// long intervals. All functions leave their inputs unmodified.
package interval

import (
	"math"
	"sort"

	"daylog/internal/models"
)

// Pad widens an interval by pre seconds before t0 (clamped at zero) and post
// seconds after t1. The upper bound is not clamped; callers that know the
// recording duration are responsible for any cap.
func Pad(iv models.Interval, pre, post float64) models.Interval {
	return models.Interval{
		T0: math.Max(0, iv.T0-pre),
		T1: iv.T1 + post,
	}
}

// MergeByGap sorts intervals ascending by t0 and folds adjacent ones
// together whenever the gap between them is at most gap seconds. The result
// is sorted and disjoint by construction. Merging its own output with the
// same gap is a no-op.
func MergeByGap(ivs []models.Interval, gap float64) []models.Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]models.Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].T0 < sorted[j].T0 })

	merged := []models.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.T0-last.T1 <= gap {
			last.T1 = math.Max(last.T1, iv.T1)
		} else {
			merged = append(merged, iv)
		}
	}
	return merged
}

// FilterMinDuration drops intervals shorter than min seconds. Surviving
// intervals are returned unchanged; the output is always a subset of the
// input.
func FilterMinDuration(ivs []models.Interval, min float64) []models.Interval {
	var kept []models.Interval
	for _, iv := range ivs {
		if iv.Duration() >= min {
			kept = append(kept, iv)
		}
	}
	return kept
}

// SplitLong divides any interval longer than max seconds into
// ceil(duration/max) equal-length contiguous sub-intervals, so no trailing
// remainder chunk is starved. Intervals at or under the cap pass through
// unchanged.
func SplitLong(ivs []models.Interval, max float64) []models.Interval {
	var out []models.Interval
	for _, iv := range ivs {
		d := iv.Duration()
		if d <= max {
			out = append(out, iv)
			continue
		}
		n := int(math.Ceil(d / max))
		step := d / float64(n)
		for i := 0; i < n; i++ {
			t0 := iv.T0 + float64(i)*step
			t1 := iv.T0 + float64(i+1)*step
			if i == n-1 {
				t1 = iv.T1
			}
			out = append(out, models.Interval{T0: t0, T1: t1})
		}
	}
	return out
}
