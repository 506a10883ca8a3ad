// Package audio holds the in-memory audio representation consumed by the
// VAD cascade and the WAV decoding needed to produce it.
package audio

// Buffer is an immutable mono PCM buffer at a fixed sample rate. It is
// derived once per pipeline invocation from the media conversion step and
// never mutated afterwards; slices returned by Slice alias the underlying
// samples and must be treated as read-only.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// SampleAt converts a time offset in seconds to a clamped sample index.
func (b *Buffer) SampleAt(seconds float64) int {
	idx := int(seconds * float64(b.SampleRate))
	if idx < 0 {
		return 0
	}
	if idx > len(b.Samples) {
		return len(b.Samples)
	}
	return idx
}

// Slice returns the samples between t0 and t1 seconds, clamped to the
// buffer bounds. The returned slice shares storage with the buffer.
func (b *Buffer) Slice(t0, t1 float64) []float32 {
	start := b.SampleAt(t0)
	end := b.SampleAt(t1)
	if end < start {
		end = start
	}
	return b.Samples[start:end]
}
