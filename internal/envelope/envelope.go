package envelope

import (
	"math"
)

// Phase identifies the current segment of the ADSR state machine
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAttack
	PhaseDecay
	PhaseSustain
	PhaseRelease
)

// String returns the phase name for logging and test output
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAttack:
		return "attack"
	case PhaseDecay:
		return "decay"
	case PhaseSustain:
		return "sustain"
	case PhaseRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Envelope is a sample-accurate ADSR gain generator.
//
// ProcessSample must be called exactly once per output sample from the audio
// callback; everything here is allocation-free and lock-free. Transitions are
// linear in amplitude. Retriggering ramps the attack from the current level
// rather than from zero so a retrigger never produces a click.
type Envelope struct {
	phase Phase
	level float64

	attackMs     float64
	decayMs      float64
	sustainLevel float64
	releaseMs    float64

	// Sample counts derived from the ms parameters; recomputed whenever the
	// callback sample rate drifts by more than 1 Hz.
	attackSamples  int
	decaySamples   int
	releaseSamples int
	lastSampleRate float64

	phaseSampleCount  int
	attackStartLevel  float64
	releaseStartLevel float64
}

// New creates an envelope with the given ADSR parameters. Times are in
// milliseconds, sustain is a level in [0,1].
func New(attackMs, decayMs, sustain, releaseMs float64) *Envelope {
	e := &Envelope{}
	e.SetAttack(attackMs)
	e.SetDecay(decayMs)
	e.SetSustain(sustain)
	e.SetRelease(releaseMs)
	return e
}

// SetAttack sets the attack time in milliseconds
func (e *Envelope) SetAttack(ms float64) {
	e.attackMs = math.Max(0, ms)
	if e.lastSampleRate > 0 {
		e.attackSamples = msToSamples(e.attackMs, e.lastSampleRate)
	}
}

// SetDecay sets the decay time in milliseconds
func (e *Envelope) SetDecay(ms float64) {
	e.decayMs = math.Max(0, ms)
	if e.lastSampleRate > 0 {
		e.decaySamples = msToSamples(e.decayMs, e.lastSampleRate)
	}
}

// SetSustain sets the sustain level, clamped to [0,1]
func (e *Envelope) SetSustain(level float64) {
	e.sustainLevel = clamp01(level)
}

// SetRelease sets the release time in milliseconds
func (e *Envelope) SetRelease(ms float64) {
	e.releaseMs = math.Max(0, ms)
	if e.lastSampleRate > 0 {
		e.releaseSamples = msToSamples(e.releaseMs, e.lastSampleRate)
	}
}

// Attack returns the attack time in milliseconds
func (e *Envelope) Attack() float64 { return e.attackMs }

// Decay returns the decay time in milliseconds
func (e *Envelope) Decay() float64 { return e.decayMs }

// Sustain returns the sustain level
func (e *Envelope) Sustain() float64 { return e.sustainLevel }

// ReleaseTime returns the release time in milliseconds
func (e *Envelope) ReleaseTime() float64 { return e.releaseMs }

// Trigger starts the attack phase. From any phase the attack ramps from the
// level the envelope currently sits at, never from zero.
func (e *Envelope) Trigger() {
	e.attackStartLevel = e.level
	e.phase = PhaseAttack
	e.phaseSampleCount = 0
}

// Release begins the release phase from the current level. Calling it while
// already idle or releasing is a no-op.
func (e *Envelope) Release() {
	if e.phase == PhaseIdle || e.phase == PhaseRelease {
		return
	}
	e.releaseStartLevel = e.level
	e.phase = PhaseRelease
	e.phaseSampleCount = 0
}

// Reset forces the envelope to idle; the next ProcessSample returns 0.
func (e *Envelope) Reset() {
	e.phase = PhaseIdle
	e.level = 0
	e.phaseSampleCount = 0
	e.releaseStartLevel = 0
	e.attackStartLevel = 0
}

// Phase returns the current phase
func (e *Envelope) Phase() Phase { return e.phase }

// Level returns the last computed gain
func (e *Envelope) Level() float64 { return e.level }

// IsActive reports whether the envelope is producing non-idle gain
func (e *Envelope) IsActive() bool { return e.phase != PhaseIdle }

// ProcessSample advances the state machine by one sample and returns the gain
// for that sample, always in [0,1]. Zero-length phases transition on the same
// sample, so a fully zeroed ADSR peaks on its first sample and sits at
// sustain from its second.
func (e *Envelope) ProcessSample(sampleRate float64) float64 {
	if math.Abs(sampleRate-e.lastSampleRate) > 1.0 {
		e.recalculate(sampleRate)
	}

	switch e.phase {
	case PhaseIdle:
		e.level = 0

	case PhaseAttack:
		if e.attackSamples > 0 {
			progress := float64(e.phaseSampleCount) / float64(e.attackSamples)
			e.level = e.attackStartLevel + progress*(1.0-e.attackStartLevel)
			e.phaseSampleCount++
			if e.phaseSampleCount >= e.attackSamples {
				e.level = 1.0
				e.toDecay()
			}
		} else {
			e.level = 1.0
			e.toDecay()
		}

	case PhaseDecay:
		if e.decaySamples > 0 {
			progress := float64(e.phaseSampleCount) / float64(e.decaySamples)
			e.level = 1.0 - progress*(1.0-e.sustainLevel)
			e.phaseSampleCount++
			if e.phaseSampleCount >= e.decaySamples {
				e.level = e.sustainLevel
				e.phase = PhaseSustain
				e.phaseSampleCount = 0
			}
		} else {
			e.level = e.sustainLevel
			e.phase = PhaseSustain
			e.phaseSampleCount = 0
		}

	case PhaseSustain:
		e.level = e.sustainLevel

	case PhaseRelease:
		if e.releaseSamples > 0 {
			progress := float64(e.phaseSampleCount) / float64(e.releaseSamples)
			e.level = e.releaseStartLevel * (1.0 - progress)
			e.phaseSampleCount++
			if e.phaseSampleCount >= e.releaseSamples || e.level <= 0 {
				e.level = 0
				e.phase = PhaseIdle
				e.phaseSampleCount = 0
			}
		} else {
			e.level = 0
			e.phase = PhaseIdle
			e.phaseSampleCount = 0
		}
	}

	return clamp01(e.level)
}

func (e *Envelope) toDecay() {
	e.phase = PhaseDecay
	e.phaseSampleCount = 0
}

func (e *Envelope) recalculate(sampleRate float64) {
	e.attackSamples = msToSamples(e.attackMs, sampleRate)
	e.decaySamples = msToSamples(e.decayMs, sampleRate)
	e.releaseSamples = msToSamples(e.releaseMs, sampleRate)
	e.lastSampleRate = sampleRate
}

func msToSamples(ms, sampleRate float64) int {
	return int(math.Round(ms * sampleRate / 1000.0))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
