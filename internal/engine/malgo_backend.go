package engine

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// malgoScratchFrames bounds the callback size the backend can service from
// its preallocated float buffer
const malgoScratchFrames = 8192

// MalgoBackend drives a Renderer through a miniaudio playback device
type MalgoBackend struct {
	cfg     Config
	context *Context
	device  *malgo.Device
	scratch []float32

	mutex   sync.Mutex
	started bool
	closed  bool
}

// NewMalgoBackend creates a malgo-based backend with the given stream config
func NewMalgoBackend(cfg Config) *MalgoBackend {
	cfg = defaultConfig(cfg)
	slog.Debug("creating malgo backend",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels)

	return &MalgoBackend{
		cfg:     cfg,
		scratch: make([]float32, malgoScratchFrames*cfg.Channels),
	}
}

// Name identifies this backend
func (b *MalgoBackend) Name() string { return "malgo" }

// Start opens the playback device and begins pulling from the renderer
func (b *MalgoBackend) Start(r Renderer) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrBackendClosed
	}
	if b.started {
		return ErrAlreadyStarted
	}

	if b.context == nil {
		ctx, err := NewContext()
		if err != nil {
			return fmt.Errorf("failed to initialize audio context: %w", err)
		}
		b.context = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(b.cfg.Channels)
	deviceConfig.SampleRate = uint32(b.cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	sampleRate := float64(b.cfg.SampleRate)
	channels := b.cfg.Channels

	onSamples := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		frames := int(framecount)
		if frames > malgoScratchFrames {
			frames = malgoScratchFrames
		}
		need := frames * channels

		r.RenderAudio(b.scratch[:need], frames, channels, sampleRate)

		// f32le encode into the device buffer; fill any remainder with
		// silence so the device never sees garbage
		for i := 0; i < need && i*4+3 < len(pOutputSample); i++ {
			binary.LittleEndian.PutUint32(pOutputSample[i*4:], math.Float32bits(b.scratch[i]))
		}
		for i := need * 4; i < len(pOutputSample); i++ {
			pOutputSample[i] = 0
		}
	}

	device, err := malgo.InitDevice(b.context.Raw().Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		slog.Error("failed to initialize playback device", "error", err)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		slog.Error("failed to start playback device", "error", err)
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	b.device = device
	b.started = true

	slog.Info("malgo backend started",
		"sample_rate", b.cfg.SampleRate,
		"channels", b.cfg.Channels)
	return nil
}

// Stop halts the device without releasing it
func (b *MalgoBackend) Stop() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrBackendClosed
	}
	if b.device != nil {
		if err := b.device.Stop(); err != nil {
			slog.Error("failed to stop playback device", "error", err)
			return err
		}
	}
	b.started = false

	slog.Debug("malgo backend stopped")
	return nil
}

// Close releases the device and the audio context
func (b *MalgoBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		slog.Debug("malgo backend already closed")
		return nil
	}
	b.closed = true

	if b.device != nil {
		b.device.Stop()
		b.device.Uninit()
		b.device = nil
	}
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			return err
		}
		b.context = nil
	}

	slog.Debug("malgo backend closed")
	return nil
}
