package vad

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"daylog/internal/audio"
	"daylog/internal/models"
)

// Frequency bands in Hz. Speech energy concentrates in the telephony band;
// rumble and broadband noise live below and above it.
const (
	noiseBandLowHz   = 20.0
	noiseBandHighHz  = 200.0
	speechBandLowHz  = 300.0
	speechBandHighHz = 3400.0
)

// spectralFilter slides a fixed window across each candidate region,
// computes the FFT magnitude spectrum per window and keeps contiguous runs
// of windows whose speech-band energy ratio exceeds the threshold. A
// trailing sliver shorter than one window is not scored; the energy gate
// already vouched for the region as a whole and the neural stage re-decides
// boundaries anyway.
func spectralFilter(buf *audio.Buffer, regions []models.Interval, windowSeconds, ratioThreshold float64) []models.Interval {
	winSamples := int(windowSeconds * float64(buf.SampleRate))
	if winSamples <= 0 {
		return nil
	}
	fft := fourier.NewFFT(winSamples)
	window := make([]float64, winSamples)

	var out []models.Interval
	for _, region := range regions {
		samples := buf.Slice(region.T0, region.T1)
		nWindows := len(samples) / winSamples

		openStart := -1.0 // t0 of the open run, <0 when closed
		for w := 0; w < nWindows; w++ {
			for i := 0; i < winSamples; i++ {
				window[i] = float64(samples[w*winSamples+i])
			}
			ratio := speechBandRatio(fft, window, buf.SampleRate)
			t0 := region.T0 + float64(w)*windowSeconds
			t1 := t0 + windowSeconds

			switch {
			case ratio > ratioThreshold && openStart < 0:
				openStart = t0
			case ratio <= ratioThreshold && openStart >= 0:
				out = append(out, models.Interval{T0: openStart, T1: t0})
				openStart = -1
			}
			if w == nWindows-1 && openStart >= 0 {
				out = append(out, models.Interval{T0: openStart, T1: t1})
			}
		}
	}
	return out
}

// speechBandRatio returns the fraction of spectral energy in the speech
// band relative to the speech, low-noise and high bands combined.
func speechBandRatio(fft *fourier.FFT, window []float64, sampleRate int) float64 {
	coeffs := fft.Coefficients(nil, window)
	binHz := float64(sampleRate) / float64(len(window))

	var speech, noise, high float64
	for i, c := range coeffs {
		hz := float64(i) * binHz
		e := cmplx.Abs(c)
		e *= e
		switch {
		case hz >= speechBandLowHz && hz <= speechBandHighHz:
			speech += e
		case hz >= noiseBandLowHz && hz <= noiseBandHighHz:
			noise += e
		case hz > speechBandHighHz:
			high += e
		}
	}
	total := speech + noise + high
	if total == 0 {
		return 0
	}
	return speech / total
}
