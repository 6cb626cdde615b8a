package voice

import (
	"image"
	"log/slog"
	"math"
	"sync/atomic"

	"mediapool.click/internal/envelope"
	"mediapool.click/internal/media"
)

// Position thresholds shared by the capture policy, seek optimisation and
// backward-loop wrap correction
const (
	PositionValidThreshold = 0.001
	PositionSeekThreshold  = 0.01
	BackwardWrapDetectHigh = 0.9
	BackwardWrapDetectLow  = 0.1
	BackwardWrapPosition   = 0.99
)

// renderScratchSize is the largest audio callback the voice can service
// without allocating: 8192 frames of 8 channels.
const renderScratchSize = 8192 * 8

// State is the voice lifecycle state
type State int32

const (
	StateFree State = iota
	StatePlaying
	StateReleasing
)

// String returns the state name for logging and test output
func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StatePlaying:
		return "playing"
	case StateReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// Voice is one playback instance: an audio playhead, an optional video
// source, and an ADSR envelope. The control thread owns transport and
// parameters; the audio thread only runs Render, reading the shared fields
// through atomics. Envelope control ops cross over as pending flags the
// render loop consumes, so the envelope itself is touched by one thread.
type Voice struct {
	state      atomic.Int32
	mediaIndex atomic.Int32

	audio media.AudioSource
	video media.VideoSource
	env   *envelope.Envelope

	// Cross-thread parameter cells
	volumeBits   atomic.Uint64
	audioEnabled atomic.Bool
	videoEnabled atomic.Bool
	envActive    atomic.Bool
	envTrigger   atomic.Bool
	envRelease   atomic.Bool
	envReset     atomic.Bool

	// Control-thread state
	startTime     float64
	startPosition float64 // relative to the region: 0 = regionStart, 1 = regionEnd
	playheadPos   float64
	regionStart   float64
	regionEnd     float64
	loopSize      float64
	loopEnabled   bool
	lastPosition  float64

	scratch []float32
}

// New creates a free voice with default parameters and the given envelope
func New(env *envelope.Envelope) *Voice {
	v := &Voice{
		env:       env,
		regionEnd: 1.0,
		loopSize:  1.0,
		scratch:   make([]float32, renderScratchSize),
	}
	v.volumeBits.Store(math.Float64bits(1.0))
	v.audioEnabled.Store(true)
	v.videoEnabled.Store(true)
	return v
}

// State returns the current lifecycle state
func (v *Voice) State() State { return State(v.state.Load()) }

// IsFree reports whether the voice can be allocated without stealing
func (v *Voice) IsFree() bool { return v.State() == StateFree }

// IsActive reports whether the voice contributes to the mix
func (v *Voice) IsActive() bool { return v.State() != StateFree }

// MediaIndex returns the slot index this voice is playing; undefined while free
func (v *Voice) MediaIndex() int { return int(v.mediaIndex.Load()) }

// StartTime returns the wall-clock seconds of the last free-to-playing
// transition, used for LRU stealing
func (v *Voice) StartTime() float64 { return v.startTime }

// Envelope returns the voice's envelope for parameter configuration
func (v *Voice) Envelope() *envelope.Envelope { return v.env }

// AudioSource returns the bound audio decoder, or nil
func (v *Voice) AudioSource() media.AudioSource { return v.audio }

// VideoSource returns the bound video decoder, or nil
func (v *Voice) VideoSource() media.VideoSource { return v.video }

// Bind attaches fresh decoders for a slot. Control thread only, and only
// while the voice is free or already stopped.
func (v *Voice) Bind(mediaIndex int, audio media.AudioSource, video media.VideoSource) {
	if v.video != nil && v.video != video {
		_ = v.video.Close()
	}
	v.mediaIndex.Store(int32(mediaIndex))
	v.audio = audio
	v.video = video
}

// Volume returns the per-voice gain applied after the envelope
func (v *Voice) Volume() float64 { return math.Float64frombits(v.volumeBits.Load()) }

// SetVolume sets the per-voice gain; safe from the control thread at any time
func (v *Voice) SetVolume(volume float64) {
	v.volumeBits.Store(math.Float64bits(volume))
}

// SetAudioEnabled gates the voice's audio contribution
func (v *Voice) SetAudioEnabled(enabled bool) { v.audioEnabled.Store(enabled) }

// AudioEnabled reports whether audio is gated on
func (v *Voice) AudioEnabled() bool { return v.audioEnabled.Load() }

// SetVideoEnabled gates the voice's video pull
func (v *Voice) SetVideoEnabled(enabled bool) { v.videoEnabled.Store(enabled) }

// VideoEnabled reports whether video is gated on
func (v *Voice) VideoEnabled() bool { return v.videoEnabled.Load() }

// SetSpeed forwards the playback rate to the audio decoder
func (v *Voice) SetSpeed(speed float64) {
	if v.audio != nil {
		v.audio.SetSpeed(speed)
	}
}

// Speed returns the audio decoder's playback rate
func (v *Voice) Speed() float64 {
	if v.audio == nil {
		return 1.0
	}
	return v.audio.Speed()
}

// SetLoop forwards the intrinsic loop flag to the audio decoder and records
// it for the wrap correction
func (v *Voice) SetLoop(loop bool) {
	v.loopEnabled = loop
	if v.audio != nil {
		v.audio.SetLoop(loop)
	}
}

// Loop reports the intrinsic loop flag
func (v *Voice) Loop() bool { return v.loopEnabled }

// StartPosition returns the start position relative to the region
func (v *Voice) StartPosition() float64 { return v.startPosition }

// SetStartPosition sets the region-relative start position, clamped to [0,1]
func (v *Voice) SetStartPosition(pos float64) { v.startPosition = clamp01(pos) }

// PlayheadPosition returns the last captured playhead position
func (v *Voice) PlayheadPosition() float64 { return v.playheadPos }

// SetPlayheadPosition overwrites the captured playhead; used by the
// supervisor and by LOOP-style stop resets
func (v *Voice) SetPlayheadPosition(pos float64) { v.playheadPos = pos }

// Region returns the normalized playback region bounds
func (v *Voice) Region() (start, end float64) { return v.regionStart, v.regionEnd }

// SetRegion sets the playback region, swapping inverted bounds
func (v *Voice) SetRegion(start, end float64) {
	start = clamp01(start)
	end = clamp01(end)
	if start > end {
		start, end = end, start
	}
	v.regionStart = start
	v.regionEnd = end
}

// LoopSize returns the granular loop length in seconds
func (v *Voice) LoopSize() float64 { return v.loopSize }

// SetLoopSize sets the granular loop length in seconds
func (v *Voice) SetLoopSize(seconds float64) { v.loopSize = seconds }

// Duration returns the longest stream duration in seconds
func (v *Voice) Duration() float64 {
	d := 0.0
	if v.audio != nil {
		d = v.audio.Duration()
	}
	if v.video != nil && v.video.Duration() > d {
		d = v.video.Duration()
	}
	return d
}

// Start begins playback at an absolute normalized position. The decoder is
// stopped first because a decoder Play can be a no-op on an already-playing
// instance, and the seek is always issued because the previous playback may
// have moved the position.
func (v *Voice) Start(absPosition float64, now float64) {
	absPosition = clamp01(absPosition)

	if v.audio != nil {
		v.audio.Stop()
		v.audio.SetPosition(absPosition)
		v.audio.Play()
	}
	if v.video != nil {
		v.video.SetPosition(absPosition)
		v.video.Play()
	}

	// A fresh trigger supersedes any release or reset still pending from a
	// stop earlier in the same tick (voice stealing does exactly that)
	v.envRelease.Store(false)
	v.envReset.Store(false)
	v.envTrigger.Store(true)
	v.envActive.Store(true)
	v.lastPosition = absPosition
	v.startTime = now
	v.state.Store(int32(StatePlaying))

	slog.Debug("voice started",
		"media_index", v.MediaIndex(),
		"position", absPosition,
		"start_time", now)
}

// Stop captures the playhead, halts the decoders and releases the envelope.
// The captured position survives the decoders reporting themselves stopped;
// it is the value the next trigger's position memory reads.
func (v *Voice) Stop() {
	if v.State() == StateFree {
		return
	}

	v.playheadPos = v.CapturePosition()

	if v.audio != nil {
		v.audio.Stop()
	}
	if v.video != nil {
		v.video.Stop()
	}

	v.envRelease.Store(true)
	v.state.Store(int32(StateReleasing))

	slog.Debug("voice stopped",
		"media_index", v.MediaIndex(),
		"captured_position", v.playheadPos)
}

// Kill forces the voice free immediately, skipping the release tail. Used
// when the pool is cleared.
func (v *Voice) Kill() {
	if v.audio != nil {
		v.audio.Stop()
	}
	if v.video != nil {
		v.video.Stop()
	}
	v.envReset.Store(true)
	v.envActive.Store(false)
	v.state.Store(int32(StateFree))
}

// CapturePosition reads the current playhead using the priority order:
// playing audio, playing video, the stored playhead parameter, stopped
// audio, stopped video. The first candidate above the validity threshold
// wins.
func (v *Voice) CapturePosition() float64 {
	if v.audio != nil && v.audio.IsPlaying() {
		if pos := v.audio.Position(); pos > PositionValidThreshold {
			return pos
		}
	}
	if v.video != nil && v.video.IsPlaying() {
		if pos := v.video.Position(); pos > PositionValidThreshold {
			return pos
		}
	}
	if v.playheadPos > PositionValidThreshold {
		return v.playheadPos
	}
	if v.audio != nil {
		if pos := v.audio.Position(); pos > PositionValidThreshold {
			return pos
		}
	}
	if v.video != nil {
		if pos := v.video.Position(); pos > PositionValidThreshold {
			return pos
		}
	}
	return 0
}

// SeekVideo seeks the video decoder, skipping the expensive restart when the
// decoder already sits close enough to the target. Start-time seeks pass
// force because the previous playback may have advanced the position.
func (v *Voice) SeekVideo(target float64, force bool) {
	if v.video == nil {
		return
	}
	if !force && math.Abs(v.video.Position()-target) < PositionSeekThreshold {
		return
	}
	v.video.SetPosition(target)
}

// CorrectBackwardWrap fixes spurious positions reported by an audio decoder
// looping backwards, where unsigned underflow inside the decoder can wrap
// the raw position. Call once per supervisor tick with the freshly observed
// position; returns the corrected value.
func (v *Voice) CorrectBackwardWrap(pos float64) float64 {
	last := v.lastPosition
	defer func() { v.lastPosition = pos }()

	if v.audio == nil || v.audio.Speed() >= 0 || !v.loopEnabled {
		return pos
	}

	switch {
	case pos > 1.0:
		pos = math.Mod(pos, 1.0)
		v.audio.SetPosition(pos)
	case pos > BackwardWrapDetectHigh && last < BackwardWrapDetectLow && last > 0:
		// The decoder jumped from near-zero to near-end without crossing the
		// boundary on purpose: spurious wrap.
		pos = BackwardWrapPosition
		v.audio.SetPosition(pos)
	case pos <= PositionSeekThreshold && last > PositionSeekThreshold:
		// Intended wrap past zero; continue from the far end.
		pos = BackwardWrapPosition
		v.audio.SetPosition(pos)
	}
	return pos
}

// EnvelopeActive reports whether the audio thread last saw the envelope
// producing gain; the supervisor uses it to retire releasing voices
func (v *Voice) EnvelopeActive() bool { return v.envActive.Load() }

// Retire moves a releasing voice whose envelope has finished back to free.
// Control thread only.
func (v *Voice) Retire() {
	v.state.Store(int32(StateFree))
	slog.Debug("voice retired", "media_index", v.MediaIndex())
}

// Render mixes this voice's next frames into dst (accumulating, interleaved).
// Audio-callback context: no allocation, no locks, no logging. A free voice
// contributes nothing. The envelope advances exactly once per frame even when
// the voice has no audio stream so video-only voices still complete their
// release.
func (v *Voice) Render(dst []float32, frames, channels int, sampleRate float64) {
	if State(v.state.Load()) == StateFree {
		return
	}

	// Apply pending envelope ops from the control thread. Release runs
	// before trigger so a stale release can never cancel a fresh attack.
	if v.envReset.Swap(false) {
		v.env.Reset()
	}
	if v.envRelease.Swap(false) {
		v.env.Release()
	}
	if v.envTrigger.Swap(false) {
		v.env.Trigger()
	}

	need := frames * channels
	if need > len(dst) {
		need = len(dst)
		frames = need / channels
	}

	audible := v.audio != nil && v.audioEnabled.Load()
	if audible {
		if need > len(v.scratch) {
			frames = len(v.scratch) / channels
			need = frames * channels
		}
		v.audio.Read(v.scratch[:need], frames, channels, sampleRate)
	}

	volume := float32(v.Volume())
	for f := 0; f < frames; f++ {
		gain := float32(v.env.ProcessSample(sampleRate))
		if !audible {
			continue
		}
		for c := 0; c < channels; c++ {
			i := f*channels + c
			dst[i] += v.scratch[i] * gain * volume
		}
	}

	// The voice marks itself inactive only after the buffer is emitted
	if !v.env.IsActive() {
		v.envActive.Store(false)
		if State(v.state.Load()) == StateReleasing {
			v.state.Store(int32(StateFree))
		}
	} else {
		v.envActive.Store(true)
	}
}

// PullVideoFrame advances the video decoder and returns its newest frame.
// Frame-thread context; returns nil when the voice is free, gated off, or
// has no video.
func (v *Voice) PullVideoFrame() *image.RGBA {
	if v.video == nil || !v.videoEnabled.Load() || v.State() == StateFree {
		return nil
	}
	return v.video.NextFrame()
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
