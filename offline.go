package sidscore

import (
	"context"

	"github.com/cbegin/sidscore-go/internal/audio"
	"github.com/cbegin/sidscore-go/internal/smfexport"
)

// Rendered holds a complete offline render.
type Rendered struct {
	SampleRate int
	Mix        []float32
	Voices     [3][]float32
	Result     Result
}

// Render runs a session into memory. Realtime output is never enabled.
func Render(ctx context.Context, ts *TimedScore, opts ...Option) (*Rendered, error) {
	sess, err := NewSession(ts, append(opts, WithDevice(false))...)
	if err != nil {
		return nil, err
	}
	mem := &audio.MemorySink{}
	sess.AddSink(mem)
	res, err := sess.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &Rendered{SampleRate: res.SampleRate, Mix: mem.Mix, Voices: mem.Voices, Result: res}, nil
}

// RenderSamples renders the whole score and returns the mono mix.
func RenderSamples(ts *TimedScore, opts ...Option) ([]float32, error) {
	r, err := Render(context.Background(), ts, opts...)
	if err != nil {
		return nil, err
	}
	return r.Mix, nil
}

// RenderToWAV renders the whole score to a 16-bit mono WAV file.
func RenderToWAV(ctx context.Context, ts *TimedScore, path string, opts ...Option) (Result, error) {
	sess, err := NewSession(ts, append(opts, WithDevice(false), WithWAVOutput(path))...)
	if err != nil {
		return Result{}, err
	}
	return sess.Run(ctx)
}

// ExportMIDI writes the timed score as a type 1 Standard MIDI File.
func ExportMIDI(ts *TimedScore, path string) error {
	return smfexport.WriteFile(path, ts)
}
