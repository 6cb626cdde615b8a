package sampler

import (
	"log/slog"
	"math"

	"mediapool.click/internal/voice"
)

// supervise is the per-frame playback pass, run after the control tick. It
// advances playheads, enforces region and loop boundaries per play style,
// expires gate timers, retires finished releases, and re-derives the module
// mode.
func (m *Module) supervise(now float64) {
	for _, v := range m.pool.Voices() {
		switch v.State() {
		case voice.StateFree:
			continue
		case voice.StateReleasing:
			if !v.EnvelopeActive() {
				v.Retire()
			}
			continue
		}
		m.superviseVoice(v)
	}

	m.expireScheduledStops(now)
	m.deriveMode()
}

// superviseVoice applies boundary handling to one playing voice
func (m *Module) superviseVoice(v *voice.Voice) {
	duration := v.Duration()
	if duration <= 0 {
		return
	}

	pos := v.CapturePosition()
	// A decoder that ran off the end of its clip has stopped itself while the
	// voice still plays; the capture policy would then return the stale
	// stored playhead, so the decoder's own position is used instead
	if audio := v.AudioSource(); audio != nil && !audio.IsPlaying() {
		pos = audio.Position()
	}
	pos = v.CorrectBackwardWrap(pos)
	v.SetPlayheadPosition(pos)

	regionStart, regionEnd := v.Region()
	loopStartAbs := regionAbsolute(v.StartPosition(), regionStart, regionEnd)
	loopEndAbs := m.loopEndFor(v, loopStartAbs, regionEnd, duration)

	// The boundary epsilon is one millisecond of media, floored so clips
	// longer than a second still get a workable threshold
	epsilon := math.Max(0.001/duration, PositionBoundaryThresholdDefault)

	if pos < regionStart-epsilon {
		m.reseek(v, regionStart)
		return
	}

	switch m.playStyle {
	case StyleLoop, StyleGrain:
		if pos < loopStartAbs-epsilon {
			m.reseek(v, loopStartAbs)
		} else if pos >= loopEndAbs-epsilon {
			// Manual wrap; the module never leaves playing mode for this
			m.reseek(v, loopStartAbs)
		}
	case StyleOnce:
		if pos >= loopEndAbs-epsilon {
			m.stopVoice(v, true)
			slog.Debug("voice reached region end",
				"media_index", v.MediaIndex(),
				"style", m.playStyle)
		}
	case StyleNext:
		if pos >= loopEndAbs-epsilon {
			// The frozen playhead feeds the next trigger's position memory
			m.stopVoice(v, false)
			slog.Debug("voice reached region end",
				"media_index", v.MediaIndex(),
				"style", m.playStyle)
		}
	}
}

// loopEndFor computes the absolute loop end for a voice. ONCE and NEXT run
// to the region end. LOOP and GRAIN wrap after loopSize seconds, computed in
// absolute seconds before normalizing: doing it in normalized space first
// loses precision on long media.
func (m *Module) loopEndFor(v *voice.Voice, loopStartAbs, regionEnd, duration float64) float64 {
	switch m.playStyle {
	case StyleLoop, StyleGrain:
		loopStartSeconds := loopStartAbs * duration
		loopEndSeconds := loopStartSeconds + v.LoopSize()
		regionEndSeconds := regionEnd * duration
		if loopEndSeconds > regionEndSeconds {
			loopEndSeconds = regionEndSeconds
		}
		if loopEndSeconds > duration {
			loopEndSeconds = duration
		}
		return loopEndSeconds / duration
	default:
		return regionEnd
	}
}

// reseek moves a voice's decoders to a new position. The audio seek is
// cheap; the video seek goes through the threshold check.
func (m *Module) reseek(v *voice.Voice, target float64) {
	if audio := v.AudioSource(); audio != nil {
		audio.SetPosition(target)
	}
	v.SeekVideo(target, false)
	v.SetPlayheadPosition(target)
}

// expireScheduledStops fires gate timers whose deadline has passed. A LOOP
// stop additionally resets the voice's playhead to zero.
func (m *Module) expireScheduledStops(now float64) {
	if len(m.scheduledStops) == 0 {
		return
	}

	kept := m.scheduledStops[:0]
	for _, s := range m.scheduledStops {
		if s.deadline > now {
			kept = append(kept, s)
			continue
		}
		if s.voice.IsActive() {
			m.stopVoice(s.voice, m.playStyle == StyleLoop)
			slog.Debug("gate stop fired",
				"media_index", s.voice.MediaIndex(),
				"deadline", s.deadline)
		}
	}
	m.scheduledStops = kept
}
