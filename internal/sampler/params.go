package sampler

import (
	"fmt"
	"log/slog"

	"mediapool.click/internal/voice"
)

// ParamDescriptor describes one entry of the module's published parameter
// surface
type ParamDescriptor struct {
	Name    string
	Type    string // "int" or "float"
	Min     float64
	Max     float64
	Default float64
}

// Parameters returns the module's reflection surface. The index range
// tracks the live slot count.
func (m *Module) Parameters() []ParamDescriptor {
	maxIndex := float64(m.slots.Count() - 1)
	if maxIndex < 0 {
		maxIndex = 0
	}
	return []ParamDescriptor{
		{Name: "index", Type: "int", Min: 0, Max: maxIndex, Default: 0},
		{Name: "position", Type: "float", Min: 0, Max: 1, Default: 0},
		{Name: "speed", Type: "float", Min: -10, Max: 10, Default: 1},
		{Name: "volume", Type: "float", Min: 0, Max: 2, Default: 1},
		{Name: "loop_size", Type: "float", Min: 0, Max: MaxLoopSizeSeconds, Default: 1},
		{Name: "region_start", Type: "float", Min: 0, Max: 1, Default: 0},
		{Name: "region_end", Type: "float", Min: 0, Max: 1, Default: 1},
		{Name: "polyphony_mode", Type: "int", Min: 0, Max: 1, Default: 0},
	}
}

// SetParameter writes one module parameter by name, clamped to its declared
// range. Position, speed, volume, loop size and region bounds are also pushed
// to the active voice; index and polyphony mode change module state only.
// Control thread only.
func (m *Module) SetParameter(name string, value float64) error {
	switch name {
	case "index":
		idx := int(value)
		if _, ok := m.slots.Resolve(idx); !ok {
			return fmt.Errorf("invalid slot index %d", idx)
		}
		m.params.index = idx
		m.activeSlot = idx
	case "position":
		m.params.position = clamp01(value)
		// External position writes go through the start position; the
		// playhead belongs to the supervisor
		if m.activeVoice != nil {
			m.activeVoice.SetStartPosition(m.params.position)
		}
	case "speed":
		m.params.speed = clampRange(value, -10, 10)
		if m.activeVoice != nil {
			m.activeVoice.SetSpeed(m.params.speed)
		}
	case "volume":
		m.params.volume = clampRange(value, 0, 2)
		if m.activeVoice != nil {
			m.activeVoice.SetVolume(m.params.volume)
		}
	case "loop_size":
		m.params.loopSize = clampRange(value, 0, MaxLoopSizeSeconds)
		if m.activeVoice != nil {
			m.activeVoice.SetLoopSize(clampRange(m.params.loopSize, MinLoopSizeSeconds, MaxLoopSizeSeconds))
		}
	case "region_start":
		m.params.regionStart = clamp01(value)
		m.normalizeRegion()
	case "region_end":
		m.params.regionEnd = clamp01(value)
		m.normalizeRegion()
	case "polyphony_mode":
		if int(value) == int(voice.Polyphonic) {
			m.SetPolyphonyMode(voice.Polyphonic)
		} else {
			m.SetPolyphonyMode(voice.Monophonic)
		}
	default:
		return fmt.Errorf("unknown parameter %q", name)
	}

	slog.Debug("parameter set", "name", name, "value", value)
	return nil
}

// Parameter reads one module parameter by name
func (m *Module) Parameter(name string) (float64, bool) {
	switch name {
	case "index":
		return float64(m.params.index), true
	case "position":
		return m.params.position, true
	case "speed":
		return m.params.speed, true
	case "volume":
		return m.params.volume, true
	case "loop_size":
		return m.params.loopSize, true
	case "region_start":
		return m.params.regionStart, true
	case "region_end":
		return m.params.regionEnd, true
	case "polyphony_mode":
		return float64(m.pool.Mode()), true
	default:
		return 0, false
	}
}

// normalizeRegion swaps inverted region defaults and pushes the bounds to
// the active voice
func (m *Module) normalizeRegion() {
	if m.params.regionStart > m.params.regionEnd {
		m.params.regionStart, m.params.regionEnd = m.params.regionEnd, m.params.regionStart
	}
	if m.activeVoice != nil {
		m.activeVoice.SetRegion(m.params.regionStart, m.params.regionEnd)
	}
}
