package sampler

import (
	"log/slog"
	"time"

	"mediapool.click/internal/trigger"
	"mediapool.click/internal/voice"
)

// eventParams is the typed copy of the known trigger parameter keys, filled
// in before any per-event work so the hot path never compares strings twice
type eventParams struct {
	mediaIndex int
	hasMedia   bool

	hasPosition bool
	position    float64

	hasSpeed bool
	speed    float64

	hasVolume bool
	volume    float64

	hasLoopSize bool
	loopSize    float64

	hasRegionStart bool
	regionStart    float64

	hasRegionEnd bool
	regionEnd    float64

	hasPolyphony bool
	polyphony    voice.PolyphonyMode
}

// copyParams extracts the recognized keys from an event's parameter map,
// warning once per unknown key
func (m *Module) copyParams(ev *trigger.Event) eventParams {
	p := eventParams{mediaIndex: int(ev.MediaIndex)}

	for key, value := range ev.Params {
		switch key {
		case "note":
			// The sequencer may carry the slot index as a parameter; it
			// overrides the event field when present.
			p.mediaIndex = int(value)
			p.hasMedia = true
		case trigger.ParamPosition:
			p.hasPosition = true
			p.position = float64(value)
		case trigger.ParamSpeed:
			p.hasSpeed = true
			p.speed = float64(value)
		case trigger.ParamVolume:
			p.hasVolume = true
			p.volume = float64(value)
		case trigger.ParamLoopSize:
			p.hasLoopSize = true
			p.loopSize = float64(value)
		case trigger.ParamRegionStart:
			p.hasRegionStart = true
			p.regionStart = float64(value)
		case trigger.ParamRegionEnd:
			p.hasRegionEnd = true
			p.regionEnd = float64(value)
		case trigger.ParamPolyphonyMode:
			p.hasPolyphony = true
			if int(value) == int(voice.Polyphonic) {
				p.polyphony = voice.Polyphonic
			} else {
				p.polyphony = voice.Monophonic
			}
		default:
			if !m.warnedKeys[key] {
				m.warnedKeys[key] = true
				slog.Warn("ignoring unknown trigger parameter", "key", key)
			}
		}
	}

	return p
}

// Tick is the per-frame control pass: it drains the trigger queue, then runs
// the playback supervisor. Call once per visual frame from the control
// thread. A paused module leaves its queue untouched.
func (m *Module) Tick() {
	if m.paused.Load() {
		return
	}

	now := m.now()
	m.drainEvents(now)
	m.supervise(now)
}

// drainEvents consumes up to MaxEventsPerTick queued events in FIFO order.
// The mode transition to playing happens after all events are processed,
// before the supervisor runs.
func (m *Module) drainEvents(now float64) {
	m.counters.maybeWarnBackpressure(m.queue, now)

	processed := 0
	for processed < MaxEventsPerTick {
		ev, ok := m.queue.TryDequeue()
		if !ok {
			break
		}
		processed++
		m.processEvent(&ev, now)
	}

	if processed > 0 {
		m.deriveMode()
	}
}

// processEvent applies one trigger event: resolve, validate, polyphony
// action, position memory, allocation, parameter application, start, gate.
func (m *Module) processEvent(ev *trigger.Event, now float64) {
	p := m.copyParams(ev)

	// Polyphony switches ride along on any event and apply before the
	// polyphony action below
	if p.hasPolyphony {
		m.SetPolyphonyMode(p.polyphony)
	}

	// Rest: stop the module's current voice
	if p.mediaIndex < 0 {
		if m.activeVoice != nil && m.activeVoice.IsActive() {
			resetPlayhead := m.playStyle == StyleOnce || m.playStyle == StyleLoop
			m.stopVoice(m.activeVoice, resetPlayhead)
		}
		m.record(ev, now, false, false, "")
		return
	}

	slot, ok := m.slots.Resolve(p.mediaIndex)
	if !ok {
		m.counters.bump(kindInvalidIndex, now)
		m.record(ev, now, false, true, "invalid media index")
		return
	}

	// Polyphony action. Under mono the previous voice is stopped whether it
	// plays another slot or this one; a same-slot stop is a hard retrigger
	// that reuses the voice, keeping at most one voice per slot non-free.
	// Under poly other voices are left alone.
	var stopped, reuse *voice.Voice
	if m.pool.Mode() == voice.Monophonic {
		if prev := m.activeVoice; prev != nil && prev.IsActive() {
			resetPlayhead := m.playStyle == StyleLoop
			m.stopVoice(prev, resetPlayhead)
			stopped = prev
			if prev.MediaIndex() == p.mediaIndex {
				reuse = prev
			}
		}
		if reuse == nil {
			if other := m.pool.FindPlaying(p.mediaIndex); other != nil {
				m.stopVoice(other, m.playStyle == StyleLoop)
				stopped = other
				reuse = other
			}
		}
	}

	// Position memory: only NEXT remembers, and only when the event does not
	// carry an explicit position
	if !p.hasPosition {
		switch m.playStyle {
		case StyleNext:
			captured := m.recallPosition(p.mediaIndex, stopped)
			if captured >= EndPositionThreshold || captured < voice.PositionValidThreshold {
				captured = 0
			}
			regionStart, regionEnd := m.effectiveRegion(&p)
			p.position = regionRelative(captured, regionStart, regionEnd)
			p.hasPosition = true
		default:
			// ONCE, GRAIN and LOOP use the GUI-set start position; LOOP
			// resets its playhead on stop instead of remembering it
			p.position = m.params.position
			p.hasPosition = true
		}
	}

	v := reuse
	stolen := false
	if v == nil {
		v = m.pool.Allocate()
		if v == nil {
			m.counters.bump(kindVoiceExhausted, now)
			m.record(ev, now, false, true, "all voices releasing")
			slog.Debug("trigger lost: no allocatable voice", "media_index", p.mediaIndex)
			return
		}
		stolen = !v.IsFree()
		if stolen {
			m.stopVoice(v, m.playStyle == StyleLoop)
		}
	}

	// A retrigger of the same slot reuses the voice's decoders; anything
	// else gets fresh ones minted from the slot
	if v.MediaIndex() != p.mediaIndex || (v.AudioSource() == nil && v.VideoSource() == nil) {
		v.Bind(p.mediaIndex, slot.NewAudioSource(), slot.NewVideoSource())
	}

	// A stale gate from a previous trigger of this voice must not clobber
	// the playback we are about to start
	m.cancelScheduledStops(v)

	m.applyEventParams(v, &p, slot.Duration())

	regionStart, regionEnd := v.Region()
	absStart := regionAbsolute(v.StartPosition(), regionStart, regionEnd)
	v.Start(absStart, now)

	m.activeVoice = v
	m.activeSlot = p.mediaIndex
	m.params.index = p.mediaIndex

	rs, re := v.Region()
	m.snapshots[p.mediaIndex] = paramSnapshot{
		Position:    v.StartPosition(),
		Speed:       v.Speed(),
		Volume:      v.Volume(),
		LoopSize:    v.LoopSize(),
		RegionStart: rs,
		RegionEnd:   re,
	}

	if ev.Duration > 0 {
		m.scheduleStop(v, now+float64(ev.Duration))
	}

	m.record(ev, now, stolen, false, "")
}

// recallPosition finds the playhead to resume from for a NEXT trigger: the
// voice stopped this tick, a voice still playing the slot, or the per-slot
// memory of the last stop.
func (m *Module) recallPosition(mediaIndex int, stopped *voice.Voice) float64 {
	if stopped != nil && stopped.MediaIndex() == mediaIndex {
		return stopped.PlayheadPosition()
	}
	if playing := m.pool.FindPlaying(mediaIndex); playing != nil {
		return playing.CapturePosition()
	}
	if remembered, ok := m.slotMemory[mediaIndex]; ok {
		return remembered
	}
	return 0
}

// effectiveRegion resolves the region bounds an event will play under,
// normalizing inverted bounds
func (m *Module) effectiveRegion(p *eventParams) (float64, float64) {
	start := m.params.regionStart
	end := m.params.regionEnd
	if p.hasRegionStart {
		start = clamp01(p.regionStart)
	}
	if p.hasRegionEnd {
		end = clamp01(p.regionEnd)
	}
	if start > end {
		start, end = end, start
	}
	return start, end
}

// applyEventParams configures a voice from the typed event parameters merged
// over the module defaults, clamping every value to its declared range
func (m *Module) applyEventParams(v *voice.Voice, p *eventParams, duration float64) {
	regionStart, regionEnd := m.effectiveRegion(p)
	v.SetRegion(regionStart, regionEnd)

	position := m.params.position
	if p.hasPosition {
		position = p.position
	}
	v.SetStartPosition(clampPosition(position, m.playStyle))

	speed := m.params.speed
	if p.hasSpeed {
		speed = p.speed
	}
	v.SetSpeed(clampRange(speed, -10, 10))

	volume := m.params.volume
	if p.hasVolume {
		volume = p.volume
	}
	v.SetVolume(clampRange(volume, 0, 2))

	loopSize := m.params.loopSize
	if p.hasLoopSize {
		loopSize = p.loopSize
	}
	maxLoop := MaxLoopSizeSeconds
	if duration > 0 && duration < maxLoop {
		maxLoop = duration
	}
	v.SetLoopSize(clampRange(loopSize, MinLoopSizeSeconds, maxLoop))

	// Region looping under LOOP is enforced by the supervisor; handing it to
	// the decoder would fight the manual wrap. GRAIN relies on the decoder
	// wrapping between supervisor ticks.
	v.SetLoop(m.playStyle == StyleGrain)
}

// record delivers a trigger record to the diagnostics hook, if installed
func (m *Module) record(ev *trigger.Event, now float64, stolen, dropped bool, reason string) {
	if m.onRecord == nil {
		return
	}
	m.onRecord(TriggerRecord{
		Step:       ev.Step,
		MediaIndex: ev.MediaIndex,
		Duration:   float64(ev.Duration),
		PlayStyle:  m.playStyle.String(),
		Stolen:     stolen,
		Dropped:    dropped,
		DropReason: reason,
		At:         time.Now(),
	})
}
