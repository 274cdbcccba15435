package dsp

// DefaultFilterOrder is the FIR low-pass order used for anti-alias filtering
// when decimating.
const DefaultFilterOrder = 30

// Decimate downsamples a signal by an integer factor after low-pass filtering
// it at the new Nyquist frequency. The filter order must be even. This is the
// decimation path that avoids aliasing; Downsample alone folds any content
// above the new Nyquist rate back into the spectrum.
func Decimate(signal []float64, factor, order int) ([]float64, error) {
	filtered, err := AntiAliasingFilter(signal, 1/float64(factor), order)
	if err != nil {
		return nil, err
	}
	return Downsample(filtered, factor), nil
}

// AntiAliasingFilter convolves a signal with an anti-aliasing window. cutoff
// is relative to the Nyquist frequency, (0, 1).
func AntiAliasingFilter(signal []float64, cutoff float64, order int) ([]float64, error) {
	window, err := AntiAliasingWindow(cutoff, order)
	if err != nil {
		return nil, err
	}
	return Convolve(signal, window), nil
}

// AntiAliasingWindow creates low-pass FIR coefficients tapered by a
// matching-length Hamming window to reduce ripple.
func AntiAliasingWindow(cutoff float64, order int) ([]float64, error) {
	fir, err := FIR(order+1, cutoff)
	if err != nil {
		return nil, err
	}
	hamming := Hamming(len(fir))
	window := make([]float64, len(fir))
	for i := range window {
		window[i] = fir[i] * hamming[i]
	}
	return window, nil
}

// Downsample keeps every factor-th sample starting at index 0. No filtering
// is applied.
func Downsample(signal []float64, factor int) []float64 {
	out := make([]float64, 0, (len(signal)+factor-1)/factor)
	for i := 0; i < len(signal); i += factor {
		out = append(out, signal[i])
	}
	return out
}
