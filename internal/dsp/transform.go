// Package dsp implements the signal-processing primitives behind the
// fingerprinting pipeline: Fourier transforms, analysis windows, FIR
// filtering, decimation and spectrogram construction.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
	"runtime"
	"sync"
)

var (
	// ErrInvalidTransformLength reports an FFT length that is not a power of two.
	ErrInvalidTransformLength = errors.New("dsp: transform length must be a power of two")
	// ErrInvalidOverlap reports an STFT overlap that is not smaller than the window.
	ErrInvalidOverlap = errors.New("dsp: overlap must be smaller than the window length")
)

// DFT computes the discrete Fourier transform directly from its definition.
// It is O(n^2) and exists as a correctness reference for FFT; use FFT on
// performance paths.
func DFT(signal []float64) []complex128 {
	count := len(signal)
	out := make([]complex128, count)
	for k := 0; k < count; k++ {
		var sum complex128
		for n, x := range signal {
			angle := -2 * math.Pi * float64(k) * float64(n) / float64(count)
			sum += complex(x, 0) * cmplx.Exp(complex(0, angle))
		}
		out[k] = sum
	}
	return out
}

// FFT computes the DFT using the Cooley-Tukey radix-2 decimation-in-time
// algorithm. A count of 0 means the raw input length is used, which must then
// be a power of two. A nonzero count truncates or zero-pads the signal to
// exactly count samples; count itself must be a power of two.
func FFT(signal []float64, count int) ([]complex128, error) {
	if count == 0 {
		count = len(signal)
	}
	if !isPowerOfTwo(count) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTransformLength, count)
	}
	buf := make([]complex128, count)
	for i := 0; i < count && i < len(signal); i++ {
		buf[i] = complex(signal[i], 0)
	}
	return cooleyTukey(buf), nil
}

// cooleyTukey recurses on the even and odd index subsequences and combines
// them with twiddle factors. Length must be a power of two.
func cooleyTukey(signal []complex128) []complex128 {
	count := len(signal)
	if count == 1 {
		return signal
	}
	half := count / 2
	even := make([]complex128, half)
	odd := make([]complex128, half)
	for i := 0; i < half; i++ {
		even[i] = signal[2*i]
		odd[i] = signal[2*i+1]
	}
	even = cooleyTukey(even)
	odd = cooleyTukey(odd)
	out := make([]complex128, count)
	for k := 0; k < half; k++ {
		angle := -2 * math.Pi * float64(k) / float64(count)
		t := cmplx.Exp(complex(0, angle)) * odd[k]
		out[k] = even[k] + t
		out[k+half] = even[k] - t
	}
	return out
}

// STFT computes the short-time Fourier transform: the signal is framed with a
// step of len(window)-overlap, each frame is multiplied elementwise by the
// window and transformed. No scaling compensates for the window's gain;
// callers normalize separately. Trailing samples that do not fill a whole
// frame are dropped. A dftCount of 0 uses the window length, which must then
// be a power of two.
//
// Frames are independent of each other and are transformed concurrently; the
// returned spectra are in time order.
func STFT(signal, window []float64, overlap, dftCount int) ([][]complex128, error) {
	count := len(window)
	if overlap >= count {
		return nil, fmt.Errorf("%w: overlap %d, window length %d", ErrInvalidOverlap, overlap, count)
	}
	if dftCount == 0 {
		dftCount = count
	}
	if !isPowerOfTwo(dftCount) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTransformLength, dftCount)
	}

	step := count - overlap
	var starts []int
	for i := 0; i < len(signal)-count; i += step {
		starts = append(starts, i)
	}

	frames := make([][]complex128, len(starts))
	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	if workers > len(starts) {
		workers = len(starts)
	}
	next := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range next {
				start := starts[f]
				buf := make([]complex128, dftCount)
				for i := 0; i < count && i < dftCount; i++ {
					buf[i] = complex(signal[start+i]*window[i], 0)
				}
				frames[f] = cooleyTukey(buf)
			}
		}()
	}
	for f := range starts {
		next <- f
	}
	close(next)
	wg.Wait()
	return frames, nil
}

// Magnitude returns the elementwise magnitude of a spectrum.
func Magnitude(spectrum []complex128) []float64 {
	out := make([]float64, len(spectrum))
	for i, x := range spectrum {
		out[i] = cmplx.Abs(x)
	}
	return out
}

// Phase returns the elementwise phase of a spectrum.
func Phase(spectrum []complex128) []float64 {
	out := make([]float64, len(spectrum))
	for i, x := range spectrum {
		out[i] = math.Atan2(imag(x), real(x))
	}
	return out
}

// FrequencyBinCenters returns the center frequency in Hz of each DFT bin.
func FrequencyBinCenters(count int, samplingFrequency float64) []float64 {
	resolution := samplingFrequency / float64(count)
	out := make([]float64, count)
	for k := range out {
		out[k] = float64(k) * resolution
	}
	return out
}

// TimeBinCenters returns the center time in seconds of each STFT frame.
func TimeBinCenters(count, segmentLength, overlap int, samplingFrequency float64) []float64 {
	out := make([]float64, count)
	for k := range out {
		out[k] = (float64(k*(segmentLength-overlap)) + float64(segmentLength)/2) / samplingFrequency
	}
	return out
}

// CeilPowerOfTwo returns the smallest power of two greater than or equal to n.
func CeilPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func isPowerOfTwo(n int) bool {
	return n != 0 && n&(n-1) == 0
}
