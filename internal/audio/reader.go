// Package audio decodes audio files into sample slices the fingerprinting
// pipeline consumes, and shells out to ffmpeg for format conversion.
package audio

import (
	"errors"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV file into float64 samples in [-1, 1] and returns
// the sampling frequency. Multi-channel audio is mixed down to mono by
// averaging the channels.
func ReadWAV(path string) ([]float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid wav file: %s", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding pcm data: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, errors.New("wav file has no decodable audio")
	}

	samples := mixdown(buf, int(decoder.BitDepth))
	return samples, float64(buf.Format.SampleRate), nil
}

// mixdown averages interleaved channels into a mono float64 signal scaled to
// [-1, 1] by the bit depth.
func mixdown(buf *gaudio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	scale := 1 / float64(int(1)<<(bitDepth-1))
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		samples[i] = sum / float64(channels) * scale
	}
	return samples
}
