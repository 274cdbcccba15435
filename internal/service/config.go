package service

import (
	"github.com/soundprint/audiodetective/internal/fingerprint"
	"github.com/soundprint/audiodetective/internal/storage"
	"github.com/soundprint/audiodetective/pkg/logger"
)

// Config holds the service configuration.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string
	// TempDir receives the intermediate WAV files produced by conversion.
	TempDir string
	// SampleRate is the rate audio files are converted to before
	// preprocessing.
	SampleRate int
	// DownsampleFactor decimates converted audio before fingerprinting; the
	// effective pipeline rate is SampleRate/DownsampleFactor. A factor of 1
	// disables decimation.
	DownsampleFactor int
	// MinMatchesPerSecond sets the candidate search threshold: a stored song
	// must share at least MinMatchesPerSecond*queryDuration descriptors with
	// the query to be scored. Lower is slower but misses fewer songs.
	MinMatchesPerSecond float64

	Params      fingerprint.Params
	MatchParams fingerprint.MatchParams

	Logger *logger.Logger
	Store  *storage.Store
}

// Option mutates the service configuration.
type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) { c.DBPath = path }
}

func WithTempDir(dir string) Option {
	return func(c *Config) { c.TempDir = dir }
}

func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

func WithDownsampleFactor(factor int) Option {
	return func(c *Config) { c.DownsampleFactor = factor }
}

func WithMinMatchesPerSecond(rate float64) Option {
	return func(c *Config) { c.MinMatchesPerSecond = rate }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) { c.Logger = log }
}

// WithStore uses an already-open store instead of opening DBPath.
func WithStore(store *storage.Store) Option {
	return func(c *Config) { c.Store = store }
}

func defaultConfig() *Config {
	return &Config{
		DBPath:              storage.DefaultDBFile,
		TempDir:             "/tmp",
		SampleRate:          44100,
		DownsampleFactor:    4,
		MinMatchesPerSecond: 2,
		Params:              fingerprint.DefaultParams(),
		MatchParams:         fingerprint.DefaultMatchParams(),
	}
}
