package sequencer

import (
	"github.com/cbegin/sidscore-go/internal/frames"
	"github.com/cbegin/sidscore-go/internal/modseq"
	"github.com/cbegin/sidscore-go/internal/score"
	"github.com/cbegin/sidscore-go/internal/sid"
)

// mixGain scales one voice's envelope*oscillator product into the bus.
const mixGain = 0.25

var silentInstrument = &score.Instrument{Name: "silence"}

// voiceConfig is the immutable part of a voice: its instrument, its tables
// and its compiled stream.
type voiceConfig struct {
	instr  *score.Instrument
	events []frames.Event

	clockHz         float64
	sampleRate      float64
	samplesPerFrame float64

	pwTable     *score.Table
	waveTable   *score.Table
	gateTable   *score.Table
	pitchTable  *score.Table
	filterTable *score.Table
}

// voiceState is one voice's runtime. Only the sequencer mutates it.
type voiceState struct {
	cfg *voiceConfig
	osc *sid.Oscillator
	env *sid.Envelope

	next  int
	event modseq.Clock
	done  bool

	active bool
	gateOn bool
	noise  bool
	sync   bool
	ring   bool
	wave   score.Wave

	baseMidi    int
	noteBase    int
	pitchOffset int

	pw, pwMin, pwMax, pwSweep int
	pwClock                   modseq.Clock

	pwSeq    modseq.Stepper
	waveSeq  modseq.Stepper
	gateSeq  modseq.Stepper
	pitchSeq modseq.Stepper
}

func newVoiceState(cfg *voiceConfig, model sid.Model, tables *sid.TableSet) *voiceState {
	v := &voiceState{
		cfg:      cfg,
		osc:      sid.NewOscillator(tables),
		env:      sid.NewEnvelope(model, cfg.sampleRate),
		done:     len(cfg.events) == 0,
		baseMidi: -1,
		noteBase: -1,
		pw:       sid.DefaultPulseWidth,
		pwMax:    sid.MaxPulseWidth,
		pwSeq:    *modseq.NewStepper(cfg.pwTable),
		waveSeq:  *modseq.NewStepper(cfg.waveTable),
		gateSeq:  *modseq.NewStepper(cfg.gateTable),
		pitchSeq: *modseq.NewStepper(cfg.pitchTable),
	}
	v.env.SetADSR(cfg.instr.ADSR)
	return v
}

func (v *voiceState) filterRouted() bool {
	return v.cfg.instr.Filter != 0
}

// prepare starts the next event when the current one has elapsed.
func (v *voiceState) prepare(f *filterRuntime) {
	if v.done || v.event.Pending() {
		return
	}
	if v.next >= len(v.cfg.events) {
		v.finish()
		return
	}
	ev := v.cfg.events[v.next]
	v.next++
	v.start(ev, f)
}

func (v *voiceState) finish() {
	v.done = true
	v.applyGate(false)
	v.env.NoteOff()
	v.wave = 0
}

func (v *voiceState) start(ev frames.Event, f *filterRuntime) {
	if ev.IsTerminator() {
		v.finish()
		return
	}
	v.event.Set(int(ev.Frames), v.cfg.samplesPerFrame)

	ctrl := ev.Ctrl &^ sid.CtrlTest
	gateBit := ctrl&sid.CtrlGate != 0
	v.sync = ctrl&sid.CtrlSync != 0
	v.ring = ctrl&sid.CtrlRing != 0
	v.noise = ev.Noise()
	if v.noise {
		v.baseMidi = -1
	} else {
		v.baseMidi = int(ev.BaseNote & 0x7F)
	}
	v.noteBase = v.baseMidi
	v.pitchOffset = 0
	v.active = gateBit || ev.Freq != 0

	if gateBit {
		v.resetPWM()
		// The first wave step may move noteBase, so pitch resets go first.
		v.resetPitchSeq()
		v.resetWaveSeq()
		v.gateSeq.Reset()
		v.primeGateSeq()
		if v.filterRouted() {
			instr := v.cfg.instr
			f.activate(instr.Filter, intOr(instr.Cutoff, 0), intOr(instr.Resonance, 0), v.cfg.filterTable)
		}
	} else {
		v.wave = score.WaveFromControl(ctrl)
		if !v.active {
			v.resetPitchSeq()
		}
	}
	if v.noise {
		v.wave = score.WaveNoise
	}
	v.osc.SetWaveMask(v.wave, v.pw)

	if !v.active {
		v.applyGate(false)
	} else if !v.gateSeq.Active() {
		v.applyGate(gateBit)
	}

	v.osc.SetFreq(sid.RegisterHz(ev.Freq, v.cfg.clockHz), v.cfg.sampleRate)
	if !v.noise && v.gateOn {
		v.applyPitchOffset(v.pitchOffset)
	}
}

func (v *voiceState) applyGate(on bool) {
	if on {
		if !v.gateOn {
			v.gateOn = true
			v.env.NoteOn(v.env.Active() && !v.env.Releasing())
		}
		return
	}
	if v.gateOn {
		v.env.NoteOff()
		v.gateOn = false
	}
}

func (v *voiceState) resetPWM() {
	instr := v.cfg.instr
	v.pw = intOr(instr.PW, sid.DefaultPulseWidth) & sid.MaxPulseWidth
	v.pwSweep = instr.PWSweep
	v.pwSeq.Reset()
	v.pwClock.Reset()
	if v.pwSeq.Active() {
		v.pwMin, v.pwMax = 0, sid.MaxPulseWidth
		v.loadPWStep()
		return
	}
	v.pwMin = intOr(instr.PWMin, 0) & sid.MaxPulseWidth
	v.pwMax = intOr(instr.PWMax, sid.MaxPulseWidth) & sid.MaxPulseWidth
	if v.pwMin > v.pwMax {
		v.pwMin, v.pwMax = v.pwMax, v.pwMin
	}
	v.pw = clampInt(v.pw, v.pwMin, v.pwMax)
	if v.pwSweep != 0 {
		v.pwClock.Set(1, v.cfg.samplesPerFrame)
	}
}

func (v *voiceState) loadPWStep() {
	if st, ok := v.pwSeq.Load(v.cfg.samplesPerFrame); ok {
		v.pw = clampInt(st.Value&sid.MaxPulseWidth, v.pwMin, v.pwMax)
	}
}

// advancePWM runs the PW table when there is one, otherwise the per-frame
// sweep between the instrument's bounds.
func (v *voiceState) advancePWM() {
	if !v.active {
		return
	}
	if v.pwSeq.Active() {
		if st, ok := v.pwSeq.Advance(v.cfg.samplesPerFrame); ok {
			v.pw = clampInt(st.Value&sid.MaxPulseWidth, v.pwMin, v.pwMax)
		}
		return
	}
	if v.pwSweep == 0 {
		return
	}
	if v.pwClock.Pending() && !v.pwClock.Tick() {
		return
	}
	v.pw = clampInt(v.pw+v.pwSweep, v.pwMin, v.pwMax)
	v.pwClock.Set(1, v.cfg.samplesPerFrame)
}

func (v *voiceState) resetWaveSeq() {
	v.wave = v.cfg.instr.Wave
	v.waveSeq.Reset()
	if v.waveSeq.Active() {
		if st, ok := v.waveSeq.Load(v.cfg.samplesPerFrame); ok {
			v.applyWaveStep(st)
		}
	}
}

func (v *voiceState) advanceWaveSeq() {
	if !v.active {
		return
	}
	if st, ok := v.waveSeq.Advance(v.cfg.samplesPerFrame); ok {
		v.applyWaveStep(st)
		v.osc.SetWaveMask(v.wave, v.pw)
	}
}

func (v *voiceState) applyWaveStep(st score.TableStep) {
	if st.WaveSet {
		v.wave = score.Wave(st.Value)
	}
	if v.baseMidi >= 0 {
		switch st.NoteMode {
		case score.NoteAbs:
			v.noteBase = clampInt(st.Note, 0, 127)
			v.applyPitchOffset(v.pitchOffset)
		case score.NoteRel:
			v.noteBase = clampInt(v.noteBase+st.Note, 0, 127)
			v.applyPitchOffset(v.pitchOffset)
		}
	}
	switch st.Gate {
	case score.On:
		v.applyGate(true)
	case score.Off:
		v.applyGate(false)
	}
	switch st.Ring {
	case score.On:
		v.ring = true
	case score.Off:
		v.ring = false
	}
	switch st.Sync {
	case score.On:
		v.sync = true
	case score.Off:
		v.sync = false
	}
	if st.Reset {
		v.osc.HardReset()
	}
}

func (v *voiceState) primeGateSeq() {
	if !v.gateSeq.Active() {
		return
	}
	if st, ok := v.gateSeq.Load(v.cfg.samplesPerFrame); ok {
		v.applyGate(st.Value != 0)
	}
}

func (v *voiceState) advanceGateSeq() {
	if !v.active {
		return
	}
	if st, ok := v.gateSeq.Advance(v.cfg.samplesPerFrame); ok {
		v.applyGate(st.Value != 0)
	}
}

func (v *voiceState) resetPitchSeq() {
	v.pitchSeq.Reset()
	v.pitchOffset = 0
	v.noteBase = v.baseMidi
	if v.baseMidi < 0 {
		return
	}
	if v.pitchSeq.Active() {
		if st, ok := v.pitchSeq.Load(v.cfg.samplesPerFrame); ok {
			v.pitchOffset = st.Value
			v.applyPitchOffset(v.pitchOffset)
		}
		return
	}
	v.applyPitchOffset(0)
}

func (v *voiceState) advancePitchSeq() {
	if !v.active || v.noise || v.baseMidi < 0 {
		return
	}
	if st, ok := v.pitchSeq.Advance(v.cfg.samplesPerFrame); ok {
		v.pitchOffset = st.Value
		v.applyPitchOffset(v.pitchOffset)
	}
}

func (v *voiceState) applyPitchOffset(offset int) {
	if v.noteBase < 0 {
		return
	}
	note := clampInt(v.noteBase+offset, 0, 127)
	v.osc.SetFreq(sid.QuantizedHz(note, v.cfg.clockHz), v.cfg.sampleRate)
}

func (v *voiceState) advanceOsc() sid.OscState {
	if v.done {
		return sid.OscState{}
	}
	return v.osc.Advance()
}

func (v *voiceState) applySync(modRise bool) {
	if v.done || !v.sync {
		return
	}
	if modRise {
		v.osc.SyncReset()
	}
}

// render produces one oversampled sample. The oscillator must already have
// been advanced for this sample.
func (v *voiceState) render(modMSB bool) float64 {
	if v.done {
		return 0
	}
	v.event.Tick()
	v.advanceGateSeq()
	v.advanceWaveSeq()
	v.advancePWM()
	v.advancePitchSeq()
	v.osc.SetPulseWidth(v.pw)

	e := v.env.Next()
	o := v.osc.Output(v.wave, v.ring, modMSB)
	return mixGain * e * o
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
