package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// wavBytes builds a minimal 16-bit PCM mono WAV stream.
func wavBytes(t *testing.T, sampleRate int, samples []int16) []byte {
	t.Helper()
	var data bytes.Buffer
	for _, s := range samples {
		binary.Write(&data, binary.LittleEndian, s)
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
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767, -32768}
	b, err := DecodeWAV(bytes.NewReader(wavBytes(t, 16000, samples)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", b.SampleRate)
	}
	if len(b.Samples) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(b.Samples))
	}
	if math.Abs(float64(b.Samples[1])-0.5) > 1e-3 {
		t.Errorf("expected ~0.5 for 16384, got %f", b.Samples[1])
	}
	if b.Samples[4] != -1.0 {
		t.Errorf("expected -1.0 for -32768, got %f", b.Samples[4])
	}
}

func TestDecodeWAV_RejectsStereo(t *testing.T) {
	raw := wavBytes(t, 16000, []int16{0, 0})
	raw[22] = 2 // channel count
	if _, err := DecodeWAV(bytes.NewReader(raw)); err == nil {
		t.Error("expected error for stereo input")
	}
}

func TestDecodeWAV_RejectsNonRIFF(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Error("expected error for non-RIFF input")
	}
}

func TestBuffer_DurationAndSlice(t *testing.T) {
	b := &Buffer{Samples: make([]float32, 32000), SampleRate: 16000}
	if b.Duration() != 2.0 {
		t.Errorf("expected 2.0 s, got %f", b.Duration())
	}
	if got := len(b.Slice(0.5, 1.0)); got != 8000 {
		t.Errorf("expected 8000 samples, got %d", got)
	}
	// Clamped at both ends.
	if got := len(b.Slice(-1.0, 99.0)); got != 32000 {
		t.Errorf("expected full buffer for out-of-range slice, got %d", got)
	}
	if got := len(b.Slice(1.5, 1.0)); got != 0 {
		t.Errorf("expected empty slice for inverted range, got %d", got)
	}
}
