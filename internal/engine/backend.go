package engine

import (
	"errors"
)

// Common errors for Backend implementations
var (
	ErrBackendNotAvailable = errors.New("audio backend not available")
	ErrBackendClosed       = errors.New("audio backend is closed")
	ErrAlreadyStarted      = errors.New("audio backend already started")
)

// Renderer is the pull side of the module's audio output. The backend calls
// it from its real-time thread; implementations must not allocate or block.
type Renderer interface {
	RenderAudio(dst []float32, frames, channels int, sampleRate float64)
}

// Config describes the output stream the backend opens
type Config struct {
	SampleRate int
	Channels   int
}

// Backend drives a Renderer through a host audio device
type Backend interface {
	// Start opens the device and begins pulling from the renderer
	Start(r Renderer) error
	// Stop halts the device without releasing it
	Stop() error
	// Close releases the device and underlying context
	Close() error
	// Name identifies the backend implementation
	Name() string
}

// defaultConfig fills unset config fields
func defaultConfig(cfg Config) Config {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 2
	}
	return cfg
}
