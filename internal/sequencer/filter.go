package sequencer

import (
	"github.com/cbegin/sidscore-go/internal/modseq"
	"github.com/cbegin/sidscore-go/internal/score"
	"github.com/cbegin/sidscore-go/internal/sid"
)

// filterRuntime is the chip's single filter. Any routed voice that starts a
// gated event reconfigures it; the last writer wins.
type filterRuntime struct {
	f               *sid.Filter
	seq             modseq.Stepper
	samplesPerFrame float64
}

func newFilterRuntime(sampleRate, samplesPerFrame float64) *filterRuntime {
	return &filterRuntime{f: sid.NewFilter(sampleRate), samplesPerFrame: samplesPerFrame}
}

func (fr *filterRuntime) activate(mode score.FilterMode, cutoff, resonance int, table *score.Table) {
	fr.f.Configure(mode, cutoff, resonance)
	fr.seq = *modseq.NewStepper(table)
	if st, ok := fr.seq.Load(fr.samplesPerFrame); ok {
		fr.f.SetCutoff(st.Value)
	}
}

// apply filters the wet bus. With no mode selected the bus passes through
// and the cutoff table does not run.
func (fr *filterRuntime) apply(in float64) float64 {
	if fr.f.Mode() == 0 {
		return in
	}
	if st, ok := fr.seq.Advance(fr.samplesPerFrame); ok {
		fr.f.SetCutoff(st.Value)
	}
	return fr.f.Process(in)
}
