package sid

import "github.com/cbegin/sidscore-go/internal/score"

// EnvState is the envelope generator phase.
type EnvState int

const (
	EnvIdle EnvState = iota
	EnvAttack
	EnvDecay
	EnvSustain
	EnvSustainDecay
	EnvRelease
	EnvShortAttack
)

func (s EnvState) String() string {
	switch s {
	case EnvAttack:
		return "attack"
	case EnvDecay:
		return "decay"
	case EnvSustain:
		return "sustain"
	case EnvSustainDecay:
		return "sustain-decay"
	case EnvRelease:
		return "release"
	case EnvShortAttack:
		return "short-attack"
	default:
		return "idle"
	}
}

const shortAttackSamples = 65535

// Envelope is the ADSR generator. Its level is an 8-bit step advanced with a
// 16-bit fractional carry, read through the model's measured volume curve.
type Envelope struct {
	rates  *Rates
	volume *[256]uint8

	attack, decay, sustain, release int
	susVol                          int

	state EnvState
	dirty bool

	step     int
	stepFrac int
	add      int
	addFrac  int
	vol      int

	shortCount int
}

func NewEnvelope(model Model, sampleRate float64) *Envelope {
	vol, ok := measuredVolume[model]
	if !ok {
		vol = measuredVolume[MOS6581]
	}
	return &Envelope{rates: RatesFor(sampleRate), volume: vol}
}

// SetADSR changes the nibbles. A change while active marks the rates dirty;
// the position is kept.
func (e *Envelope) SetADSR(adsr score.ADSR) {
	a, d, s, r := clampNibble(adsr.Attack), clampNibble(adsr.Decay), clampNibble(adsr.Sustain), clampNibble(adsr.Release)
	changed := a != e.attack || d != e.decay || s != e.sustain || r != e.release
	e.attack, e.decay, e.sustain, e.release = a, d, s, r
	e.susVol = masterLevels[s]
	if changed && e.state != EnvIdle {
		e.dirty = true
	}
}

func (e *Envelope) State() EnvState { return e.state }

// Level is the raw 8-bit envelope step.
func (e *Envelope) Level() int { return e.vol }

func (e *Envelope) Active() bool { return e.state != EnvIdle }

func (e *Envelope) Releasing() bool { return e.state == EnvRelease }

// NoteOn starts an attack from the current level. The short variant bounds
// the attack so a rapid retrigger does not click.
func (e *Envelope) NoteOn(shortAttack bool) {
	e.step = e.vol
	e.stepFrac = 0
	if shortAttack {
		e.state = EnvShortAttack
		e.shortCount = shortAttackSamples
	} else {
		e.state = EnvAttack
	}
	e.loadRates()
}

// NoteOff releases from the current level. An idle envelope stays idle.
func (e *Envelope) NoteOff() {
	if e.state == EnvIdle {
		return
	}
	e.state = EnvRelease
	e.step = releasePos[e.vol]
	e.stepFrac = 0
	e.loadRates()
}

func (e *Envelope) loadRates() {
	switch e.state {
	case EnvAttack, EnvShortAttack:
		e.add, e.addFrac = e.rates.Attack[e.attack], e.rates.AttackFrac[e.attack]
	case EnvDecay, EnvSustainDecay:
		e.add, e.addFrac = e.rates.Decay[e.decay], e.rates.DecayFrac[e.decay]
	case EnvRelease:
		e.add, e.addFrac = e.rates.Decay[e.release], e.rates.DecayFrac[e.release]
	}
}

// Next advances one sample and returns the amplitude in [0, 1].
func (e *Envelope) Next() float64 {
	if e.dirty {
		e.dirty = false
		if e.state == EnvSustain && e.vol > e.susVol {
			e.state = EnvSustainDecay
		}
		e.loadRates()
	}

	switch e.state {
	case EnvIdle:
		return 0
	case EnvAttack, EnvShortAttack:
		if e.step >= attackTabLen || (e.state == EnvShortAttack && e.shortCount == 0) {
			e.startDecay()
			e.decayStep()
			break
		}
		e.vol = e.step
		if e.state == EnvShortAttack {
			e.shortCount--
		}
		e.advance()
	case EnvDecay, EnvSustainDecay:
		e.decayStep()
	case EnvRelease:
		if e.step >= len(releaseTab) {
			e.vol = 0
		} else {
			e.vol = int(releaseTab[e.step])
			e.advance()
		}
	}
	return e.output()
}

func (e *Envelope) startDecay() {
	e.state = EnvDecay
	e.step = 0
	e.stepFrac = 0
	e.loadRates()
}

// decayStep walks the release curve down to the sustain level.
func (e *Envelope) decayStep() {
	if e.step >= len(releaseTab) {
		e.vol = e.susVol
		if e.state == EnvSustainDecay {
			e.vol = 0
		}
		e.settle()
		return
	}
	e.vol = int(releaseTab[e.step])
	if e.vol <= e.susVol {
		e.vol = e.susVol
		e.settle()
		return
	}
	e.advance()
}

func (e *Envelope) settle() {
	if e.vol > e.susVol {
		e.state = EnvSustainDecay
		e.loadRates()
		return
	}
	e.state = EnvSustain
}

func (e *Envelope) advance() {
	e.stepFrac += e.addFrac
	e.step += e.add
	if e.stepFrac > 0xFFFF {
		e.step++
	}
	e.stepFrac &= 0xFFFF
}

func (e *Envelope) output() float64 {
	v := e.vol
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	return float64(e.volume[v]) / 255.0
}

func clampNibble(n int) int {
	if n < 0 {
		return 0
	}
	if n > 15 {
		return 15
	}
	return n
}
