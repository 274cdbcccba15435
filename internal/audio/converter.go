package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ConvertConfig configures audio conversion.
type ConvertConfig struct {
	// SampleRate of the produced WAV, e.g. 11025, 22050, 44100.
	SampleRate int
}

const defaultConvertTimeout = 30 * time.Second

// ConvertToMonoWAV converts an audio file (mp3, flac, wav, ...) to mono
// 16-bit PCM WAV at the configured sample rate using ffmpeg, writing the
// result into outputDir. Returns the path of the converted file.
func ConvertToMonoWAV(ctx context.Context, inputPath, outputDir string, cfg ConvertConfig) (string, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultConvertTimeout)
		defer cancel()
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	base := filepath.Base(inputPath)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".wav"
	outputPath := filepath.Join(outputDir, base)
	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		tmpPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %w (%s)", err, out)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return "", fmt.Errorf("moving converted file: %w", err)
	}
	return outputPath, nil
}
