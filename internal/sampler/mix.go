package sampler

import (
	"image"
	"image/draw"

	"mediapool.click/internal/voice"
)

// RenderAudio is the module's audio_out: it zeroes dst and linearly sums
// every voice's contribution into it. Audio-callback context: no allocation,
// no locks, no logging. Channel count and sample rate are host-supplied and
// may change between callbacks.
func (m *Module) RenderAudio(dst []float32, frames, channels int, sampleRate float64) {
	for i := range dst {
		dst[i] = 0
	}
	if m.paused.Load() {
		return
	}

	for _, v := range m.pool.Voices() {
		v.Render(dst, frames, channels, sampleRate)
	}
}

// RenderVideo is the module's video_out: it composes every active voice's
// newest frame into the host's render target. Stopped voices contribute
// nothing. Frame-thread context, never the audio thread.
//
// When nothing is playing, the active voice's last decoded frame is kept
// visible as a preview, but only if its position is past the validity
// threshold, so an idle module doesn't pay for continual decoding.
func (m *Module) RenderVideo(target draw.Image) {
	if m.paused.Load() {
		return
	}

	drew := false
	for _, v := range m.pool.Voices() {
		if v.State() == voice.StateFree {
			continue
		}
		frame := v.PullVideoFrame()
		if frame == nil {
			continue
		}
		drawFrame(target, frame)
		drew = true
	}

	if drew {
		return
	}

	// Preview path: a loaded but stopped active voice keeps its last decoded
	// frame on screen
	av := m.activeVoice
	if av == nil || !av.VideoEnabled() {
		return
	}
	src := av.VideoSource()
	if src == nil || src.Position() <= voice.PositionValidThreshold {
		return
	}
	if frame := src.CurrentFrame(); frame != nil {
		drawFrame(target, frame)
	}
}

// drawFrame blits a decoded frame over the render target
func drawFrame(target draw.Image, frame *image.RGBA) {
	draw.Draw(target, target.Bounds(), frame, frame.Bounds().Min, draw.Over)
}
