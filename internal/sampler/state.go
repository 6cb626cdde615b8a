package sampler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"mediapool.click/internal/voice"
)

// paramSnapshot is the persisted per-slot parameter set
type paramSnapshot struct {
	Position    float64 `json:"position"`
	Speed       float64 `json:"speed"`
	Volume      float64 `json:"volume"`
	LoopSize    float64 `json:"loop_size"`
	RegionStart float64 `json:"region_start"`
	RegionEnd   float64 `json:"region_end"`
}

// slotState is one persisted slot entry
type slotState struct {
	AudioPath  string        `json:"audio_path,omitempty"`
	VideoPath  string        `json:"video_path,omitempty"`
	Parameters paramSnapshot `json:"parameters"`
}

// moduleState is the persisted module instance state. Voice runtime state is
// deliberately absent: it does not survive sessions.
type moduleState struct {
	Slots         []slotState `json:"slots"`
	ActiveSlot    int         `json:"active_slot"`
	PlayStyle     string      `json:"play_style"`
	PolyphonyMode string      `json:"polyphony_mode"`
}

// snapshotFor returns the stored snapshot for a slot index, falling back to
// the module defaults
func (m *Module) snapshotFor(index int) paramSnapshot {
	if snap, ok := m.snapshots[index]; ok {
		return snap
	}
	return paramSnapshot{
		Position:    m.params.position,
		Speed:       m.params.speed,
		Volume:      m.params.volume,
		LoopSize:    m.params.loopSize,
		RegionStart: m.params.regionStart,
		RegionEnd:   m.params.regionEnd,
	}
}

// SaveState writes the module's persistent state as JSON: the ordered slot
// list with parameter snapshots, the active-slot hint, the play style and
// the polyphony mode.
func (m *Module) SaveState(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := moduleState{
		ActiveSlot:    m.activeSlot,
		PlayStyle:     m.playStyle.String(),
		PolyphonyMode: m.pool.Mode().String(),
	}
	for i, slot := range m.slots.Slots() {
		state.Slots = append(state.Slots, slotState{
			AudioPath:  slot.AudioPath,
			VideoPath:  slot.VideoPath,
			Parameters: m.snapshotFor(i),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&state); err != nil {
		slog.Error("failed to encode module state", "error", err)
		return fmt.Errorf("failed to encode module state: %w", err)
	}

	slog.Info("module state saved",
		"slots", len(state.Slots),
		"play_style", state.PlayStyle)
	return nil
}

// LoadState restores a module from persisted JSON. Slots are repopulated
// from their paths; parameter snapshots are re-applied by matching
// (audio_path, video_path) pairs rather than indices, which are not assumed
// stable across sessions. Slots whose files no longer load are skipped.
func (m *Module) LoadState(r io.Reader) error {
	var state moduleState
	if err := json.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("failed to decode module state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Index the saved snapshots by path pair before reloading
	type pathPair struct{ audio, video string }
	saved := make(map[pathPair]paramSnapshot, len(state.Slots))
	for _, s := range state.Slots {
		saved[pathPair{s.AudioPath, s.VideoPath}] = s.Parameters
	}

	loaded := 0
	for _, s := range state.Slots {
		index, err := m.slots.Add(s.AudioPath, s.VideoPath)
		if err != nil {
			slog.Warn("skipping unrestorable slot",
				"audio_path", s.AudioPath,
				"video_path", s.VideoPath,
				"error", err)
			continue
		}
		loaded++

		slot, _ := m.slots.Resolve(index)
		if snap, ok := saved[pathPair{slot.AudioPath, slot.VideoPath}]; ok {
			m.snapshots[index] = snap
		}
	}

	m.playStyle = playStyleFromString(state.PlayStyle)
	if state.PolyphonyMode == voice.Polyphonic.String() {
		m.pool.SetPolyphonyMode(voice.Polyphonic)
	} else {
		m.pool.SetPolyphonyMode(voice.Monophonic)
	}

	if state.ActiveSlot >= 0 && state.ActiveSlot < m.slots.Count() {
		m.activeSlot = state.ActiveSlot
		m.params.index = state.ActiveSlot
		if snap, ok := m.snapshots[state.ActiveSlot]; ok {
			m.params.position = snap.Position
			m.params.speed = snap.Speed
			m.params.volume = snap.Volume
			m.params.loopSize = snap.LoopSize
			m.params.regionStart = snap.RegionStart
			m.params.regionEnd = snap.RegionEnd
		}
	}

	slog.Info("module state restored",
		"slots_loaded", loaded,
		"slots_saved", len(state.Slots),
		"play_style", m.playStyle,
		"polyphony_mode", m.pool.Mode())
	return nil
}

// playStyleFromString parses a persisted play style name, defaulting to once
func playStyleFromString(name string) PlayStyle {
	switch name {
	case "loop":
		return StyleLoop
	case "grain":
		return StyleGrain
	case "next":
		return StyleNext
	default:
		return StyleOnce
	}
}
