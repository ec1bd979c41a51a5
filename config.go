package sidscore

import (
	"log/slog"

	"github.com/cbegin/sidscore-go/internal/audio"
	"github.com/cbegin/sidscore-go/internal/effects"
	"github.com/cbegin/sidscore-go/internal/sid"
)

const (
	DefaultSampleRate = 44100
	DefaultBlockSize  = 512
)

type Backend = audio.Backend

const (
	BackendEbiten = audio.BackendEbiten
	BackendOto    = audio.BackendOto
)

// Block is one rendered block handed to listeners.
type Block = audio.Block

// Sink receives rendered blocks; see Session.AddSink.
type Sink = audio.Sink

// Config controls a render session.
type Config struct {
	SampleRate int
	BlockSize  int
	// Oversample overrides the automatic factor when positive.
	Oversample int
	Model      sid.Model
	// Waveforms is an optional directory or C header with combined-waveform
	// tables. Tables it lacks are generated.
	Waveforms string
	Backend   audio.Backend
	// Device enables realtime output.
	Device   bool
	WAVPath  string
	Listener func(Block)
	Volume   float64
	Logger   *slog.Logger

	gain *effects.Gain
}

func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		BlockSize:  DefaultBlockSize,
		Model:      sid.MOS6581,
		Backend:    audio.BackendEbiten,
		Volume:     1,
		Logger:     slog.New(slog.DiscardHandler),
	}
}

type Option func(*Config)

func WithSampleRate(sampleRate int) Option {
	return func(cfg *Config) {
		cfg.SampleRate = sampleRate
	}
}

func WithBlockSize(n int) Option {
	return func(cfg *Config) {
		cfg.BlockSize = n
	}
}

// WithOversample forces the oversampling factor. Zero restores the automatic
// choice.
func WithOversample(factor int) Option {
	return func(cfg *Config) {
		cfg.Oversample = factor
	}
}

func WithModel(m sid.Model) Option {
	return func(cfg *Config) {
		cfg.Model = m
	}
}

func WithWaveforms(path string) Option {
	return func(cfg *Config) {
		cfg.Waveforms = path
	}
}

func WithBackend(b audio.Backend) Option {
	return func(cfg *Config) {
		cfg.Backend = b
	}
}

// WithDevice turns realtime output on or off.
func WithDevice(enabled bool) Option {
	return func(cfg *Config) {
		cfg.Device = enabled
	}
}

// WithWAVOutput also writes the mix to a 16-bit mono WAV file.
func WithWAVOutput(path string) Option {
	return func(cfg *Config) {
		cfg.WAVPath = path
	}
}

// WithSampleListener installs a callback invoked with each rendered block.
// The callback runs on the render goroutine; keep work brief and
// non-blocking, and copy any samples it keeps.
func WithSampleListener(fn func(Block)) Option {
	return func(cfg *Config) {
		cfg.Listener = fn
	}
}

// WithVolume sets the master volume scalar, 0..1.
func WithVolume(v float64) Option {
	return func(cfg *Config) {
		cfg.Volume = v
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

func withGain(g *effects.Gain) Option {
	return func(cfg *Config) {
		cfg.gain = g
	}
}

func buildConfig(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

// ParseBackend accepts "ebiten" (the default) and "oto".
func ParseBackend(raw string) (Backend, error) {
	return audio.ParseBackend(raw)
}
