// Package service orchestrates the fingerprinting pipeline: learning songs
// into the index and identifying unknown clips against it.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/soundprint/audiodetective/internal/audio"
	"github.com/soundprint/audiodetective/internal/dsp"
	"github.com/soundprint/audiodetective/internal/fingerprint"
	"github.com/soundprint/audiodetective/internal/storage"
	"github.com/soundprint/audiodetective/pkg/logger"
)

// learnableExtensions are the file types Learn picks up when walking a
// directory.
var learnableExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
}

// Match is one ranked identification candidate.
type Match struct {
	SongID string
	Title  string
	// Score is the matcher's alignment score: the number of landmark
	// correspondences consistent with the best global time offset.
	Score int
	// SharedDescriptors is the number of descriptors the candidate shares
	// with the query, used as a tie breaker.
	SharedDescriptors int
}

// Service wires audio decoding, the DSP pipeline and the fingerprint index
// together.
type Service struct {
	store  *storage.Store
	log    *logger.Logger
	config *Config
}

// New creates a service, opening the configured database unless a store is
// injected.
func New(opts ...Option) (*Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	store := cfg.Store
	if store == nil {
		var err error
		store, err = storage.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}
	return &Service{store: store, log: cfg.Logger, config: cfg}, nil
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

// AddSong fingerprints an audio file and stores it under the given title.
func (s *Service) AddSong(ctx context.Context, path, title string) (string, error) {
	signal, samplingFrequency, err := s.loadSignal(ctx, path)
	if err != nil {
		return "", err
	}
	return s.AddSignal(title, signal, samplingFrequency)
}

// AddSignal fingerprints a raw signal and stores it under the given title.
func (s *Service) AddSignal(title string, signal []float64, samplingFrequency float64) (string, error) {
	fp, err := s.fingerprintSignal(signal, samplingFrequency)
	if err != nil {
		return "", err
	}
	if len(fp) == 0 {
		s.log.Warnf("song %q produced an empty fingerprint", title)
	}
	songID, err := s.store.Insert(title, fp)
	if err != nil {
		return "", fmt.Errorf("storing song %q: %w", title, err)
	}
	s.log.Infof("stored %q with %d descriptors", title, len(fp))
	return songID, nil
}

// Learn walks a directory, fingerprints every audio file in it and stores
// each under its file name (without extension). Returns the number of songs
// learned.
func (s *Service) Learn(ctx context.Context, dir string) (int, error) {
	learned := 0
	start := time.Now()
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !learnableExtensions[filepath.Ext(entry.Name())] {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		title := entry.Name()[:len(entry.Name())-len(filepath.Ext(entry.Name()))]
		fileStart := time.Now()
		if _, err := s.AddSong(ctx, path, title); err != nil {
			return fmt.Errorf("learning %s: %w", path, err)
		}
		s.log.Infof("learned %q in %.1fs", title, time.Since(fileStart).Seconds())
		learned++
		return nil
	})
	if err != nil {
		return learned, err
	}
	s.log.Infof("learned %d songs in %s", learned, time.Since(start).Round(time.Second))
	return learned, nil
}

// Identify fingerprints an audio file and returns stored songs ranked by how
// well they match it. An empty result means no identification was possible.
func (s *Service) Identify(ctx context.Context, path string) ([]Match, error) {
	signal, samplingFrequency, err := s.loadSignal(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.IdentifySignal(ctx, signal, samplingFrequency)
}

// IdentifySignal matches a raw signal against the stored songs. Candidates
// are narrowed with a shared-descriptor threshold proportional to the query
// duration, scored independently and concurrently, and ranked by
// (score, shared descriptor count) descending.
func (s *Service) IdentifySignal(ctx context.Context, signal []float64, samplingFrequency float64) ([]Match, error) {
	duration := float64(len(signal)) / samplingFrequency
	fp, err := s.fingerprintSignal(signal, samplingFrequency)
	if err != nil {
		return nil, err
	}
	if len(fp) == 0 {
		s.log.Warnf("query produced no descriptors, cannot identify")
		return nil, nil
	}

	threshold := int(s.config.MinMatchesPerSecond * duration)
	if threshold < 1 {
		threshold = 1
	}
	candidates, err := s.store.Search(fp, threshold)
	if err != nil {
		return nil, fmt.Errorf("searching candidates: %w", err)
	}
	s.log.Debugf("query has %d descriptors, %d candidates above threshold %d",
		len(fp), len(candidates), threshold)
	if len(candidates) == 0 {
		return nil, nil
	}

	matches := s.scoreCandidates(ctx, fp, candidates)
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].SharedDescriptors > matches[j].SharedDescriptors
	})

	for i := range matches {
		title, err := s.store.Title(matches[i].SongID)
		if err != nil {
			return nil, err
		}
		matches[i].Title = title
	}
	return matches, nil
}

// scoreCandidates runs the matcher once per candidate. Candidates are
// independent, so they are scored concurrently; the query fingerprint is only
// read.
func (s *Service) scoreCandidates(ctx context.Context, query fingerprint.Fingerprint, candidates map[string]fingerprint.Fingerprint) []Match {
	matches := make([]Match, 0, len(candidates))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	for songID, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(songID string, candidate fingerprint.Fingerprint) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			score := fingerprint.Match(candidate, query, s.config.MatchParams)
			mu.Lock()
			matches = append(matches, Match{
				SongID:            songID,
				Score:             score,
				SharedDescriptors: len(candidate),
			})
			mu.Unlock()
		}(songID, candidate)
	}
	wg.Wait()
	return matches
}

// Songs lists the stored songs.
func (s *Service) Songs() ([]storage.Song, error) {
	return s.store.Songs()
}

// Delete removes a stored song and its fingerprint.
func (s *Service) Delete(songID string) error {
	return s.store.Delete(songID)
}

// loadSignal converts an audio file to mono WAV at the configured rate and
// decodes it.
func (s *Service) loadSignal(ctx context.Context, path string) ([]float64, float64, error) {
	wavPath, err := audio.ConvertToMonoWAV(ctx, path, s.config.TempDir, audio.ConvertConfig{
		SampleRate: s.config.SampleRate,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("converting %s: %w", path, err)
	}
	signal, samplingFrequency, err := audio.ReadWAV(wavPath)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", wavPath, err)
	}
	return signal, samplingFrequency, nil
}

// fingerprintSignal decimates a signal to the pipeline rate and fingerprints
// it. Both learning and identification go through here so fingerprints stay
// comparable.
func (s *Service) fingerprintSignal(signal []float64, samplingFrequency float64) (fingerprint.Fingerprint, error) {
	if factor := s.config.DownsampleFactor; factor > 1 {
		decimated, err := dsp.Decimate(signal, factor, dsp.DefaultFilterOrder)
		if err != nil {
			return nil, fmt.Errorf("decimating signal: %w", err)
		}
		signal = decimated
		samplingFrequency /= float64(factor)
	}
	return fingerprint.FromSignal(signal, samplingFrequency, s.config.Params)
}
