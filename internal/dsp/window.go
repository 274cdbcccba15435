package dsp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFilterSpec reports a FIR filter request with an even tap count or
// a cutoff outside (0, 1).
var ErrInvalidFilterSpec = errors.New("dsp: FIR filter requires an odd tap count and a cutoff in (0, 1)")

// Hamming creates a Hamming window of the given length.
func Hamming(count int) []float64 {
	return Cosine([]float64{0.54, -0.46}, count)
}

// Cosine creates a raised-cosine window from the given coefficients. An even
// count produces a periodic (DFT-even) window for spectral analysis; an odd
// count produces a symmetric window for filter design.
func Cosine(coefficients []float64, count int) []float64 {
	if count%2 == 0 {
		// Periodic: symmetric window one sample longer, last sample dropped.
		return symmetricCosine(coefficients, count+1)[:count]
	}
	return symmetricCosine(coefficients, count)
}

// symmetricCosine generates a symmetric cosine window. Length must be odd.
func symmetricCosine(coefficients []float64, count int) []float64 {
	window := make([]float64, count)
	for n := range window {
		var sum float64
		for k, coefficient := range coefficients {
			sum += coefficient * math.Cos((2*math.Pi*float64(k)*float64(n))/float64(count-1))
		}
		window[n] = sum
	}
	return window
}

// FIR creates ideal low-pass filter coefficients using the windowed-sinc
// formula. count is the number of taps (filter order + 1) and must be odd.
// cutoff is relative to the Nyquist frequency and must lie in (0, 1). The
// center tap equals cutoff.
func FIR(count int, cutoff float64) ([]float64, error) {
	if count%2 == 0 || cutoff <= 0 || cutoff >= 1 {
		return nil, fmt.Errorf("%w: %d taps, cutoff %g", ErrInvalidFilterSpec, count, cutoff)
	}
	order := count - 1
	window := make([]float64, count)
	for i := range window {
		window[i] = cutoff
	}
	for i := 0; i < order/2; i++ {
		sample := float64(i) - float64(order)/2
		coefficient := math.Sin(math.Pi*cutoff*sample) / (math.Pi * sample)
		window[i] = coefficient
		window[count-1-i] = coefficient
	}
	return window, nil
}

// Convolve computes the zero-padded linear convolution of a signal with a
// kernel, centered so the output has the same length as the input.
func Convolve(signal, kernel []float64) []float64 {
	padding := len(kernel) / 2
	padded := make([]float64, len(signal)+2*padding)
	copy(padded[padding:], signal)
	out := make([]float64, len(signal))
	for n := range out {
		var sum float64
		for i := range kernel {
			sum += padded[n+i] * kernel[len(kernel)-1-i]
		}
		out[n] = sum
	}
	return out
}
