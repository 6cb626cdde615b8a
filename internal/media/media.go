package media

import (
	"errors"
	"image"
)

// Common decoder errors
var (
	ErrInvalidData       = errors.New("invalid media data")
	ErrReadFailure       = errors.New("failed to read media data")
	ErrUnsupportedFormat = errors.New("unsupported media format")
	ErrNotOpen           = errors.New("media source is not open")
)

// AudioSource is the opaque audio decoder a voice drives. Positions are
// normalized fractions of the clip duration in [0,1]. Read runs on the audio
// thread and must not allocate; every other method is control-thread only,
// with the playback fields crossing over via atomics.
type AudioSource interface {
	Play()
	Stop()
	IsPlaying() bool

	Position() float64
	SetPosition(pos float64)
	SetSpeed(speed float64)
	Speed() float64
	SetLoop(loop bool)
	Loop() bool
	Duration() float64

	// Read fills dst with frames*channels interleaved samples at the given
	// rate, advancing the playhead. A stopped source writes silence.
	Read(dst []float32, frames, channels int, sampleRate float64)
}

// VideoSource is the opaque video decoder a voice drives from the frame
// thread. NextFrame advances playback and returns the newest decoded frame;
// CurrentFrame re-returns the last one without advancing.
type VideoSource interface {
	Play()
	Stop()
	IsPlaying() bool

	Position() float64
	SetPosition(pos float64)
	Duration() float64

	NextFrame() *image.RGBA
	CurrentFrame() *image.RGBA
	Close() error
}
