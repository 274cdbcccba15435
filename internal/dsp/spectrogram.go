package dsp

import "math/cmplx"

// Spectrogram is a power-spectral-density grid over time and frequency.
// Grid is indexed [frame][bin]; Times holds the center of each frame in
// seconds and Frequencies the center of each bin in Hz, both ascending.
type Spectrogram struct {
	Grid        [][]float64
	Times       []float64
	Frequencies []float64
}

// RealSpectrogram computes the one-sided PSD spectrogram of a real signal.
// Only the first dftCount/2+1 bins are kept. Values are scaled by
// 1/(sum(window^2)*fs) and doubled for every bin except DC and Nyquist to
// fold the negative-frequency energy back in. A dftCount of 0 uses the
// window length.
func RealSpectrogram(signal []float64, samplingFrequency float64, window []float64, overlap, dftCount int) (*Spectrogram, error) {
	if dftCount == 0 {
		dftCount = len(window)
	}
	realCount := dftCount/2 + 1

	var windowEnergy float64
	for _, w := range window {
		windowEnergy += w * w
	}
	scale := 1 / (windowEnergy * samplingFrequency)

	stft, err := STFT(signal, window, overlap, dftCount)
	if err != nil {
		return nil, err
	}

	grid := make([][]float64, len(stft))
	for t, spectrum := range stft {
		row := make([]float64, realCount)
		for i := 0; i < realCount; i++ {
			magnitude := cmplx.Abs(spectrum[i])
			density := magnitude * magnitude * scale
			if i != 0 && i != realCount-1 {
				density *= 2
			}
			row[i] = density
		}
		grid[t] = row
	}

	return &Spectrogram{
		Grid:        grid,
		Times:       TimeBinCenters(len(grid), len(window), overlap, samplingFrequency),
		Frequencies: FrequencyBinCenters(dftCount, samplingFrequency)[:realCount],
	}, nil
}

// TrimEdges returns a spectrogram without the DC bin and the two highest
// bins. The fingerprinting pipeline operates on this view; the time axis is
// shared with the receiver.
func (s *Spectrogram) TrimEdges() *Spectrogram {
	lo, hi := 1, len(s.Frequencies)-2
	if hi < lo {
		lo, hi = 0, 0
	}
	grid := make([][]float64, len(s.Grid))
	for t, row := range s.Grid {
		trimmed := make([]float64, hi-lo)
		copy(trimmed, row[lo:hi])
		grid[t] = trimmed
	}
	frequencies := make([]float64, hi-lo)
	copy(frequencies, s.Frequencies[lo:hi])
	return &Spectrogram{Grid: grid, Times: s.Times, Frequencies: frequencies}
}
