// Package sequencer renders compiled frame streams through the chip model:
// three voices, sync and ring routing, the shared filter and the output
// reconstruction stage.
package sequencer

import (
	"fmt"

	"github.com/cbegin/sidscore-go/internal/effects"
	"github.com/cbegin/sidscore-go/internal/frames"
	"github.com/cbegin/sidscore-go/internal/score"
	"github.com/cbegin/sidscore-go/internal/sid"
)

const (
	DefaultSampleRate = 44100
	NumVoices         = 3

	// reconstructionHz is the corner of the output smoothing lowpass.
	reconstructionHz = 12000.0
)

// modIndex maps each voice to the voice that modulates it for sync and ring:
// V1<-V3, V2<-V1, V3<-V2.
var modIndex = [NumVoices]int{2, 0, 1}

type Options struct {
	SampleRate int
	// Oversample overrides the automatic factor (2, or 4 when any voice
	// uses ring modulation) when positive.
	Oversample int
	Model      sid.Model
	// Tables selects the combined-waveform tables. Nil uses the generated
	// tables for Model.
	Tables *sid.TableSet
	// Post runs on every output sample after reconstruction. Nil clips to
	// ±1.
	Post effects.Effector
}

type Sequencer struct {
	voices     [NumVoices]*voiceState
	filter     *filterRuntime
	recon      *effects.LowPass
	post       effects.Effector
	oversample int
	sampleRate int
	done       bool
}

// New compiles the frame streams of ts and builds a sequencer over them.
func New(ts *score.TimedScore, opts Options) *Sequencer {
	return NewWithFrames(ts, frames.CompileScore(ts), opts)
}

// NewWithFrames builds a sequencer over precompiled streams. It panics when
// a stream is malformed; streams produced by frames.Compile never are.
func NewWithFrames(ts *score.TimedScore, streams [NumVoices][]frames.Event, opts Options) *Sequencer {
	for i, s := range streams {
		if err := frames.Validate(s); err != nil {
			panic(fmt.Sprintf("sequencer: voice %d: %v", i+1, err))
		}
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	tables := opts.Tables
	if tables == nil {
		t := sid.GenerateTables(opts.Model)
		tables = &t
	}
	post := opts.Post
	if post == nil {
		post = effects.Clip{Limit: 1}
	}

	oversample := opts.Oversample
	if oversample <= 0 {
		oversample = autoOversample(ts)
	}
	srOS := float64(opts.SampleRate * oversample)
	spf := srOS / ts.System.FrameRate()
	clockHz := ts.System.ClockHz()

	s := &Sequencer{
		filter:     newFilterRuntime(srOS, spf),
		recon:      effects.NewLowPass(srOS, reconstructionHz),
		post:       post,
		oversample: oversample,
		sampleRate: opts.SampleRate,
	}
	for i := range s.voices {
		cfg := &voiceConfig{
			instr:           silentInstrument,
			events:          streams[i],
			clockHz:         clockHz,
			sampleRate:      srOS,
			samplesPerFrame: spf,
		}
		if tv := ts.Voice(i + 1); tv != nil && tv.Instrument != nil {
			instr := tv.Instrument
			cfg.instr = instr
			cfg.pwTable = ts.Table(instr.PWTable)
			cfg.waveTable = ts.Table(instr.WaveTable)
			cfg.gateTable = ts.Table(instr.GateTable)
			cfg.pitchTable = ts.Table(instr.PitchTable)
			cfg.filterTable = ts.Table(instr.FilterTable)
		}
		s.voices[i] = newVoiceState(cfg, opts.Model, tables)
	}
	return s
}

func autoOversample(ts *score.TimedScore) int {
	for i := 1; i <= NumVoices; i++ {
		if tv := ts.Voice(i); tv != nil && tv.Instrument != nil && tv.Instrument.Ring {
			return 4
		}
	}
	return 2
}

func (s *Sequencer) Oversample() int { return s.oversample }

func (s *Sequencer) SampleRate() int { return s.sampleRate }

// Done reports whether every voice has run out of events.
func (s *Sequencer) Done() bool { return s.done }

// Process renders len(mix) samples into mix. When voices is non-nil each
// non-nil slice receives that voice's pre-filter signal, averaged over the
// oversampling factor. Slices shorter than mix are filled as far as they go.
func (s *Sequencer) Process(mix []float32, voices *[NumVoices][]float32) {
	var (
		osc  [NumVoices]sid.OscState
		sum  [NumVoices]float64
		norm = 1.0 / float64(s.oversample)
	)
	for i := range mix {
		sum = [NumVoices]float64{}
		var y float64
		for k := 0; k < s.oversample; k++ {
			for _, v := range s.voices {
				v.prepare(s.filter)
			}
			for j, v := range s.voices {
				osc[j] = v.advanceOsc()
			}
			for j, v := range s.voices {
				v.applySync(osc[modIndex[j]].Rise)
			}
			var dry, wet float64
			for j, v := range s.voices {
				out := v.render(osc[modIndex[j]].MSB)
				if v.filterRouted() {
					wet += out
				} else {
					dry += out
				}
				sum[j] += out
			}
			y = s.recon.Process(dry + s.filter.apply(wet))
		}
		mix[i] = float32(s.post.Process(y))
		if voices != nil {
			for j := range voices {
				if i < len(voices[j]) {
					voices[j][i] = float32(sum[j] * norm)
				}
			}
		}
	}
	s.done = s.allDone()
}

func (s *Sequencer) allDone() bool {
	for _, v := range s.voices {
		if !v.done {
			return false
		}
	}
	return true
}
