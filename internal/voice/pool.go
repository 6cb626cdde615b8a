package voice

import (
	"log/slog"

	"mediapool.click/internal/envelope"
)

// MaxVoices is the default pool size
const MaxVoices = 16

// StealingStrategy selects how a voice is reclaimed when none are free
type StealingStrategy int

const (
	// StealLRU reclaims the playing voice with the smallest start time
	StealLRU StealingStrategy = iota
	// StealOldest currently behaves like StealLRU; separate value kept as an
	// extension point
	StealOldest
)

// PolyphonyMode controls whether concurrent voices are permitted
type PolyphonyMode int

const (
	Monophonic PolyphonyMode = iota
	Polyphonic
)

// String returns the mode name for logging and persistence
func (m PolyphonyMode) String() string {
	if m == Polyphonic {
		return "poly"
	}
	return "mono"
}

// Pool is a fixed-size voice pool with free-first allocation and LRU
// stealing. All methods are control-thread only; the voices themselves carry
// the atomics the audio thread reads.
type Pool struct {
	voices   []*Voice
	strategy StealingStrategy
	mode     PolyphonyMode
}

// NewPool creates a pool of size voices, each with its own envelope built by
// the factory. A nil factory gets a default envelope.
func NewPool(size int, envFactory func() *envelope.Envelope) *Pool {
	if size <= 0 {
		size = MaxVoices
	}
	if envFactory == nil {
		envFactory = func() *envelope.Envelope {
			return envelope.New(1, 0, 1.0, 10)
		}
	}

	voices := make([]*Voice, size)
	for i := range voices {
		voices[i] = New(envFactory())
	}

	slog.Debug("voice pool created", "size", size)
	return &Pool{
		voices:   voices,
		strategy: StealLRU,
		mode:     Monophonic,
	}
}

// Size returns the fixed number of voices
func (p *Pool) Size() int { return len(p.voices) }

// Voices returns the backing slice for iteration
func (p *Pool) Voices() []*Voice { return p.voices }

// SetStealingStrategy selects the steal policy
func (p *Pool) SetStealingStrategy(strategy StealingStrategy) {
	p.strategy = strategy
}

// SetPolyphonyMode sets how concurrent triggers are handled
func (p *Pool) SetPolyphonyMode(mode PolyphonyMode) {
	p.mode = mode
}

// Mode returns the current polyphony mode
func (p *Pool) Mode() PolyphonyMode { return p.mode }

// Allocate returns a voice for a new trigger: the first free voice, else the
// oldest playing voice (the caller stops a stolen voice before reuse), else
// nil when every voice is mid-release.
func (p *Pool) Allocate() *Voice {
	for _, v := range p.voices {
		if v.IsFree() {
			return v
		}
	}
	return p.steal()
}

func (p *Pool) steal() *Voice {
	switch p.strategy {
	case StealLRU, StealOldest:
		var oldest *Voice
		for _, v := range p.voices {
			if v.State() != StatePlaying {
				continue
			}
			if oldest == nil || v.StartTime() < oldest.StartTime() {
				oldest = v
			}
		}
		if oldest != nil {
			slog.Debug("stealing voice",
				"media_index", oldest.MediaIndex(),
				"start_time", oldest.StartTime())
		}
		return oldest
	default:
		return nil
	}
}

// ActiveVoices returns every non-free voice
func (p *Pool) ActiveVoices() []*Voice {
	var active []*Voice
	for _, v := range p.voices {
		if v.IsActive() {
			active = append(active, v)
		}
	}
	return active
}

// ActiveCount returns the number of non-free voices
func (p *Pool) ActiveCount() int {
	count := 0
	for _, v := range p.voices {
		if v.IsActive() {
			count++
		}
	}
	return count
}

// HasFree reports whether allocation can succeed without stealing
func (p *Pool) HasFree() bool {
	for _, v := range p.voices {
		if v.IsFree() {
			return true
		}
	}
	return false
}

// FindPlaying returns the first non-free voice playing the given slot, or nil
func (p *Pool) FindPlaying(mediaIndex int) *Voice {
	for _, v := range p.voices {
		if v.IsActive() && v.MediaIndex() == mediaIndex {
			return v
		}
	}
	return nil
}

// KillAll forces every voice free immediately
func (p *Pool) KillAll() {
	for _, v := range p.voices {
		if v.IsActive() {
			v.Kill()
		}
	}
	slog.Debug("all voices killed")
}
