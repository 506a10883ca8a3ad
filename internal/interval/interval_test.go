package interval

import (
	"math"
	"testing"

	"daylog/internal/models"
)

func ivs(pairs ...float64) []models.Interval {
	var out []models.Interval
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.Interval{T0: pairs[i], T1: pairs[i+1]})
	}
	return out
}

func equal(a, b []models.Interval) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i].T0-b[i].T0) > 1e-9 || math.Abs(a[i].T1-b[i].T1) > 1e-9 {
			return false
		}
	}
	return true
}

func TestPad_ClampsAtZero(t *testing.T) {
	got := Pad(models.Interval{T0: 0.1, T1: 1.0}, 0.3, 0.3)
	want := models.Interval{T0: 0.0, T1: 1.3}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPad_NoUpperClamp(t *testing.T) {
	got := Pad(models.Interval{T0: 5.0, T1: 6.0}, 0.5, 2.0)
	want := models.Interval{T0: 4.5, T1: 8.0}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeByGap_JoinsWithinGap(t *testing.T) {
	got := MergeByGap(ivs(0.0, 1.0, 1.4, 2.0, 3.0, 3.5), 0.5)
	want := ivs(0.0, 2.0, 3.0, 3.5)
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeByGap_KeepsBeyondGap(t *testing.T) {
	got := MergeByGap(ivs(0.0, 1.0, 1.7, 2.0), 0.5)
	want := ivs(0.0, 1.0, 1.7, 2.0)
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeByGap_SortsInput(t *testing.T) {
	got := MergeByGap(ivs(3.0, 3.5, 0.0, 1.0, 1.4, 2.0), 0.5)
	want := ivs(0.0, 2.0, 3.0, 3.5)
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeByGap_ContainedInterval(t *testing.T) {
	// A contained interval must not shrink the accumulator's end.
	got := MergeByGap(ivs(0.0, 5.0, 1.0, 2.0), 0.5)
	want := ivs(0.0, 5.0)
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMergeByGap_Idempotent(t *testing.T) {
	once := MergeByGap(ivs(0.0, 1.0, 1.4, 2.0, 3.0, 3.5, 3.6, 4.0), 0.5)
	twice := MergeByGap(once, 0.5)
	if !equal(once, twice) {
		t.Errorf("expected idempotent merge, got %v then %v", once, twice)
	}
}

func TestMergeByGap_Empty(t *testing.T) {
	if got := MergeByGap(nil, 0.5); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestFilterMinDuration_SubsetOfInput(t *testing.T) {
	in := ivs(0.0, 0.3, 1.0, 2.0, 3.0, 3.39)
	got := FilterMinDuration(in, 0.4)
	want := ivs(1.0, 2.0)
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	// Output intervals are unmodified members of the input.
	if got[0] != in[1] {
		t.Errorf("expected surviving interval to be unchanged")
	}
}

func TestSplitLong_ShortPassesThrough(t *testing.T) {
	got := SplitLong(ivs(0.0, 10.0), 30.0)
	if !equal(got, ivs(0.0, 10.0)) {
		t.Errorf("expected pass-through, got %v", got)
	}
}

func TestSplitLong_EqualChunks(t *testing.T) {
	got := SplitLong(ivs(0.0, 70.0), 30.0)
	// ceil(70/30) = 3 chunks of ~23.33 s each, not 30+30+10.
	if len(got) != 3 {
		t.Fatalf("expected 3 sub-intervals, got %d: %v", len(got), got)
	}
	for i, iv := range got {
		d := iv.Duration()
		if math.Abs(d-70.0/3.0) > 1e-9 {
			t.Errorf("chunk %d: expected equal duration %.3f, got %.3f", i, 70.0/3.0, d)
		}
	}
	if got[0].T0 != 0.0 || math.Abs(got[2].T1-70.0) > 1e-9 {
		t.Errorf("expected contiguous cover of [0,70], got %v", got)
	}
	for i := 1; i < len(got); i++ {
		if math.Abs(got[i].T0-got[i-1].T1) > 1e-9 {
			t.Errorf("expected contiguous sub-intervals, got %v", got)
		}
	}
}

func TestSplitLong_ExactCap(t *testing.T) {
	got := SplitLong(ivs(0.0, 30.0), 30.0)
	if !equal(got, ivs(0.0, 30.0)) {
		t.Errorf("expected interval at cap to pass through, got %v", got)
	}
}
