package sidscore

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/cbegin/sidscore-go/internal/audio"
	"github.com/cbegin/sidscore-go/internal/effects"
	"github.com/cbegin/sidscore-go/internal/sequencer"
	"github.com/cbegin/sidscore-go/internal/sid"
)

// ErrSessionUsed is returned when Run is called a second time.
var ErrSessionUsed = errors.New("session already ran")

// Result summarizes a finished session.
type Result struct {
	Samples    int
	SampleRate int
	Oversample int
	// Stopped is true when the context was cancelled before every voice ran
	// out of events.
	Stopped bool
}

func (r Result) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Samples) * time.Second / time.Duration(r.SampleRate)
}

// Session is a single render pass over a timed score.
type Session struct {
	cfg   Config
	ts    *TimedScore
	seq   *sequencer.Sequencer
	sinks []audio.Sink
	log   *slog.Logger
	ran   atomic.Bool
}

// NewSession prepares a render pass. Frame streams are compiled here, once,
// and shared by every sink the session feeds.
func NewSession(ts *TimedScore, opts ...Option) (*Session, error) {
	if ts == nil {
		return nil, errors.New("nil timed score")
	}
	cfg := buildConfig(opts)
	log := cfg.Logger

	tables, err := sid.LoadTables(cfg.Model, cfg.Waveforms)
	if err != nil {
		log.Warn("waveform tables not loaded; using generated tables", "path", cfg.Waveforms, "err", err)
	}

	gain := cfg.gain
	if gain == nil {
		gain = effects.NewGain(cfg.Volume)
	}
	seq := sequencer.New(ts, sequencer.Options{
		SampleRate: cfg.SampleRate,
		Oversample: cfg.Oversample,
		Model:      cfg.Model,
		Tables:     &tables,
		Post:       effects.NewChain(gain, effects.Clip{Limit: 1}),
	})
	return &Session{cfg: cfg, ts: ts, seq: seq, log: log}, nil
}

// AddSink registers an extra sink. It is closed when Run returns.
func (s *Session) AddSink(sink audio.Sink) {
	s.sinks = append(s.sinks, sink)
}

func (s *Session) Oversample() int { return s.seq.Oversample() }

func (s *Session) openSinks() ([]audio.Sink, error) {
	var sinks []audio.Sink
	if s.cfg.WAVPath != "" {
		w, err := audio.NewWAVSink(s.cfg.WAVPath, s.cfg.SampleRate)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, w)
	}
	if s.cfg.Listener != nil {
		sinks = append(sinks, audio.NewListenerSink(s.cfg.Listener, nil))
	}
	if s.cfg.Device {
		d, err := audio.OpenDevice(s.cfg.Backend, s.cfg.SampleRate)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, d)
	}
	return append(sinks, s.sinks...), nil
}

// Run renders until every voice is done or ctx is cancelled. Cancellation is
// checked once per block and is not an error. Every sink is closed on return;
// on cancellation queued device audio is discarded instead of drained.
func (s *Session) Run(ctx context.Context) (res Result, err error) {
	if !s.ran.CompareAndSwap(false, true) {
		return res, ErrSessionUsed
	}
	res.SampleRate = s.cfg.SampleRate
	res.Oversample = s.seq.Oversample()

	sinks, err := s.openSinks()
	defer func() {
		drain := err == nil && !res.Stopped
		for _, sink := range sinks {
			if cerr := sink.Close(drain); cerr != nil {
				s.log.Error("sink close failed", "err", cerr)
				if err == nil {
					err = cerr
				}
			}
		}
	}()
	if err != nil {
		return res, err
	}

	s.log.Info("session start",
		"title", s.ts.Title,
		"voices", len(s.ts.Voices),
		"sample_rate", s.cfg.SampleRate,
		"oversample", res.Oversample,
		"model", s.cfg.Model,
		"sinks", len(sinks),
	)
	started := time.Now()

	n := s.cfg.BlockSize
	block := audio.Block{Mix: make([]float32, n), SampleRate: s.cfg.SampleRate}
	for i := range block.Voices {
		block.Voices[i] = make([]float32, n)
	}
	for {
		if ctx.Err() != nil {
			res.Stopped = true
			break
		}
		s.seq.Process(block.Mix, &block.Voices)
		for _, sink := range sinks {
			if err = sink.WriteBlock(block); err != nil {
				return res, err
			}
		}
		res.Samples += n
		if s.seq.Done() {
			break
		}
	}

	s.log.Info("session finished",
		"samples", res.Samples,
		"duration", res.Duration(),
		"stopped", res.Stopped,
		"elapsed", time.Since(started),
	)
	return res, nil
}
