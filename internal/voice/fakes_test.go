package voice

import (
	"image"

	"mediapool.click/internal/media"
)

// fakeAudio is a scriptable AudioSource for control-path tests. Read emits a
// constant full-scale signal and advances the position linearly.
type fakeAudio struct {
	playing  bool
	pos      float64
	speed    float64
	loop     bool
	duration float64

	seeks     []float64
	playCalls int
	stopCalls int
}

func newFakeAudio(duration float64) *fakeAudio {
	return &fakeAudio{speed: 1.0, duration: duration}
}

func (f *fakeAudio) Play()                { f.playing = true; f.playCalls++ }
func (f *fakeAudio) Stop()                { f.playing = false; f.stopCalls++ }
func (f *fakeAudio) IsPlaying() bool      { return f.playing }
func (f *fakeAudio) Position() float64    { return f.pos }
func (f *fakeAudio) SetPosition(p float64) {
	f.pos = p
	f.seeks = append(f.seeks, p)
}
func (f *fakeAudio) SetSpeed(s float64) { f.speed = s }
func (f *fakeAudio) Speed() float64     { return f.speed }
func (f *fakeAudio) SetLoop(l bool)     { f.loop = l }
func (f *fakeAudio) Loop() bool         { return f.loop }
func (f *fakeAudio) Duration() float64  { return f.duration }

func (f *fakeAudio) Read(dst []float32, frames, channels int, sampleRate float64) {
	for i := 0; i < frames*channels && i < len(dst); i++ {
		if f.playing {
			dst[i] = 1.0
		} else {
			dst[i] = 0
		}
	}
	if f.playing && f.duration > 0 && sampleRate > 0 {
		f.pos += f.speed * float64(frames) / sampleRate / f.duration
	}
}

// fakeVideo is a scriptable VideoSource
type fakeVideo struct {
	playing  bool
	pos      float64
	duration float64

	seeks     []float64
	playCalls int
	stopCalls int
	frame     *image.RGBA
}

func newFakeVideo(duration float64) *fakeVideo {
	return &fakeVideo{
		duration: duration,
		frame:    image.NewRGBA(image.Rect(0, 0, 2, 2)),
	}
}

func (f *fakeVideo) Play()             { f.playing = true; f.playCalls++ }
func (f *fakeVideo) Stop()             { f.playing = false; f.stopCalls++ }
func (f *fakeVideo) IsPlaying() bool   { return f.playing }
func (f *fakeVideo) Position() float64 { return f.pos }
func (f *fakeVideo) SetPosition(p float64) {
	f.pos = p
	f.seeks = append(f.seeks, p)
}
func (f *fakeVideo) Duration() float64 { return f.duration }

func (f *fakeVideo) NextFrame() *image.RGBA {
	if !f.playing {
		return nil
	}
	return f.frame
}

func (f *fakeVideo) CurrentFrame() *image.RGBA { return f.frame }
func (f *fakeVideo) Close() error              { return nil }

var (
	_ media.AudioSource = (*fakeAudio)(nil)
	_ media.VideoSource = (*fakeVideo)(nil)
)
