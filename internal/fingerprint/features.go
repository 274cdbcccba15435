// Package fingerprint turns spectrograms into compact landmark fingerprints
// and scores fingerprints against each other.
package fingerprint

import (
	"math"
	"sort"

	"github.com/soundprint/audiodetective/internal/dsp"
)

// FeatureParams controls spectral feature point extraction.
type FeatureParams struct {
	// TimeWindow is the non-max suppression half-width along time, in seconds.
	TimeWindow float64
	// SuppressionTimeWindow is the weak-value suppression half-width, in frames.
	SuppressionTimeWindow int
	// MinFrequencyWindow is the smallest non-max suppression half-width along
	// frequency, in frequency-axis units.
	MinFrequencyWindow float64
	// FrequencyDivisor sets the frequency-proportional suppression half-width:
	// frequency/FrequencyDivisor, floored at MinFrequencyWindow.
	FrequencyDivisor float64
	// SuppressionPercentile is the local percentile below which values are
	// considered weak and suppressed.
	SuppressionPercentile float64
}

// DefaultFeatureParams returns the feature extraction parameters used by the
// default fingerprinting pipeline.
func DefaultFeatureParams() FeatureParams {
	return FeatureParams{
		TimeWindow:            0.25,
		SuppressionTimeWindow: 4,
		MinFrequencyWindow:    32,
		FrequencyDivisor:      4,
		SuppressionPercentile: 75,
	}
}

// ExtractFeaturePoints finds sparse, noise-robust landmark points in a
// spectrogram. Two independent passes are combined: non-max suppression keeps
// only cells that are joint local maxima within an adaptive time-frequency
// neighborhood, and weak-value suppression zeroes cells below a local
// percentile threshold. A cell survives only if it passes both. The result is
// two parallel index slices (time, frequency) in row-major scan order, and is
// deterministic for identical input. Degenerate input yields empty slices,
// never an error.
func ExtractFeaturePoints(spectrogram *dsp.Spectrogram, params FeatureParams) (timeIndices, frequencyIndices []int) {
	if len(spectrogram.Grid) == 0 || len(spectrogram.Grid[0]) == 0 {
		return nil, nil
	}
	filtered := nonMaxSuppression(spectrogram, params)
	suppressed := weakSuppression(spectrogram, params)
	for t := range filtered {
		for f := range filtered[t] {
			if suppressed[t][f] == 0 {
				filtered[t][f] = 0
			}
			if filtered[t][f] != 0 {
				timeIndices = append(timeIndices, t)
				frequencyIndices = append(frequencyIndices, f)
			}
		}
	}
	return timeIndices, frequencyIndices
}

// nonMaxSuppression max-filters the spectrogram along frequency with an
// adaptive window, then along time with a fixed window, and keeps only cells
// whose original value equals the filtered one.
func nonMaxSuppression(spectrogram *dsp.Spectrogram, params FeatureParams) [][]float64 {
	filtered := maxFilterFrequency(spectrogram, params.MinFrequencyWindow, params.FrequencyDivisor)
	filtered = maxFilterTime(filtered, spectrogram.Times, params.TimeWindow)
	for t, row := range spectrogram.Grid {
		for f, value := range row {
			if filtered[t][f] != value {
				filtered[t][f] = 0
			}
		}
	}
	return filtered
}

// maxFilterFrequency max-filters along the frequency axis. The half-width at
// each bin is max(frequency/divisor, minWindow), so windows widen with
// frequency for a log-like spacing of surviving peaks.
func maxFilterFrequency(spectrogram *dsp.Spectrogram, minWindow, divisor float64) [][]float64 {
	frequencies := spectrogram.Frequencies
	bins := len(frequencies)
	lo := make([]int, bins)
	hi := make([]int, bins)
	for i, frequency := range frequencies {
		window := frequency / divisor
		if window < minWindow {
			window = minWindow
		}
		lo[i] = sort.SearchFloat64s(frequencies, frequency-window)
		hi[i] = i
		for hi[i]+1 < bins && frequencies[hi[i]+1] <= frequency+window {
			hi[i]++
		}
	}
	filtered := make([][]float64, len(spectrogram.Grid))
	for t, row := range spectrogram.Grid {
		out := make([]float64, bins)
		for i := range out {
			max := row[lo[i]]
			for j := lo[i] + 1; j <= hi[i]; j++ {
				if row[j] > max {
					max = row[j]
				}
			}
			out[i] = max
		}
		filtered[t] = out
	}
	return filtered
}

// maxFilterTime max-filters along the time axis with a half-width of window
// seconds, mapped through the time axis.
func maxFilterTime(grid [][]float64, times []float64, window float64) [][]float64 {
	frames := len(grid)
	filtered := make([][]float64, frames)
	for i, time := range times {
		lo := sort.SearchFloat64s(times, time-window)
		hi := i
		for hi+1 < frames && times[hi+1] <= time+window {
			hi++
		}
		out := make([]float64, len(grid[i]))
		copy(out, grid[lo])
		for j := lo + 1; j <= hi; j++ {
			for f, value := range grid[j] {
				if value > out[f] {
					out[f] = value
				}
			}
		}
		filtered[i] = out
	}
	return filtered
}

// weakSuppression zeroes, per frame, every value below the configured
// percentile of all values within +/- window frames. The threshold is local
// rather than global so quiet passages keep their own strongest peaks.
func weakSuppression(spectrogram *dsp.Spectrogram, params FeatureParams) [][]float64 {
	grid := spectrogram.Grid
	frames := len(grid)
	bins := len(grid[0])
	filtered := make([][]float64, frames)
	for i := range grid {
		lo := i - params.SuppressionTimeWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + params.SuppressionTimeWindow
		if hi > frames-1 {
			hi = frames - 1
		}
		values := make([]float64, 0, (hi-lo+1)*bins)
		for j := lo; j <= hi; j++ {
			values = append(values, grid[j]...)
		}
		threshold := percentile(values, params.SuppressionPercentile)
		out := make([]float64, bins)
		for f, value := range grid[i] {
			if value >= threshold {
				out[f] = value
			}
		}
		filtered[i] = out
	}
	return filtered
}

// percentile computes the p-th percentile with linear interpolation between
// the two nearest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	fraction := rank - float64(lo)
	return sorted[lo]*(1-fraction) + sorted[hi]*fraction
}
