package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV encodes 16-bit PCM data to a temporary WAV file.
func writeTestWAV(t *testing.T, sampleRate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating wav file: %v", err)
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		t.Fatalf("encoding wav data: %v", err)
	}
	if err := encoder.Close(); err != nil {
		t.Fatalf("closing encoder: %v", err)
	}
	return path
}

func TestReadWAVMono(t *testing.T) {
	data := []int{0, 16384, -16384, 32767, -32768}
	path := writeTestWAV(t, 11025, 1, data)

	samples, samplingFrequency, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if samplingFrequency != 11025 {
		t.Errorf("sampling frequency = %g, want 11025", samplingFrequency)
	}
	if len(samples) != len(data) {
		t.Fatalf("decoded %d samples, want %d", len(samples), len(data))
	}
	for i, raw := range data {
		want := float64(raw) / 32768
		if math.Abs(samples[i]-want) > 1e-9 {
			t.Errorf("sample %d = %g, want %g", i, samples[i], want)
		}
	}
}

func TestReadWAVStereoMixdown(t *testing.T) {
	// Interleaved stereo frames: (1000, 3000) and (-2000, 2000).
	data := []int{1000, 3000, -2000, 2000}
	path := writeTestWAV(t, 44100, 2, data)

	samples, samplingFrequency, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if samplingFrequency != 44100 {
		t.Errorf("sampling frequency = %g, want 44100", samplingFrequency)
	}
	want := []float64{2000.0 / 32768, 0}
	if len(samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(samples), len(want))
	}
	for i := range want {
		if math.Abs(samples[i]-want[i]) > 1e-9 {
			t.Errorf("sample %d = %g, want %g", i, samples[i], want[i])
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(path, []byte("not a wav file at all"), 0o644); err != nil {
		t.Fatalf("writing garbage file: %v", err)
	}
	if _, _, err := ReadWAV(path); err == nil {
		t.Error("ReadWAV accepted a non-WAV file")
	}
}

func TestReadWAVMissingFile(t *testing.T) {
	if _, _, err := ReadWAV(filepath.Join(t.TempDir(), "absent.wav")); err == nil {
		t.Error("ReadWAV of a missing file succeeded")
	}
}
