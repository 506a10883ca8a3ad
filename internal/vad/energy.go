package vad

import (
	"math"

	"daylog/internal/audio"
	"daylog/internal/models"
)

const rmsEpsilon = 1e-10

// energyGate partitions the buffer into fixed-size blocks, computes each
// block's RMS energy in dB and keeps contiguous runs of blocks above the
// threshold as candidate regions. A trailing partial block is scored over
// the samples it has.
func energyGate(buf *audio.Buffer, blockSeconds float64, thresholdDB float64) []models.Interval {
	blockSamples := int(blockSeconds * float64(buf.SampleRate))
	if blockSamples <= 0 || len(buf.Samples) == 0 {
		return nil
	}

	var regions []models.Interval
	open := -1 // index of the first block in the open run, -1 when closed
	nBlocks := (len(buf.Samples) + blockSamples - 1) / blockSamples

	for i := 0; i < nBlocks; i++ {
		start := i * blockSamples
		end := start + blockSamples
		if end > len(buf.Samples) {
			end = len(buf.Samples)
		}
		loud := blockDB(buf.Samples[start:end]) > thresholdDB

		switch {
		case loud && open < 0:
			open = i
		case !loud && open >= 0:
			regions = append(regions, blockInterval(open, i, blockSeconds))
			open = -1
		}
	}
	if open >= 0 {
		regions = append(regions, models.Interval{
			T0: float64(open) * blockSeconds,
			T1: buf.Duration(),
		})
	}
	return regions
}

func blockInterval(startBlock, endBlock int, blockSeconds float64) models.Interval {
	return models.Interval{
		T0: float64(startBlock) * blockSeconds,
		T1: float64(endBlock) * blockSeconds,
	}
}

// blockDB computes 20*log10(rms + eps) of the block.
func blockDB(samples []float32) float64 {
	if len(samples) == 0 {
		return 20 * math.Log10(rmsEpsilon)
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return 20 * math.Log10(rms+rmsEpsilon)
}
