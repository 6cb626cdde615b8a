package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	oto "github.com/ebitengine/oto/v3"
)

// otoBlockFrames is the pull granularity of the reader bridge
const otoBlockFrames = 1024

// OtoBackend drives a Renderer through an oto player. Oto pulls PCM through
// an io.Reader, so the backend bridges the float32 render callback into a
// little-endian int16 stream.
type OtoBackend struct {
	cfg    Config
	ctx    *oto.Context
	player *oto.Player

	mutex   sync.Mutex
	started bool
	closed  bool
}

// NewOtoBackend creates an oto-based backend with the given stream config
func NewOtoBackend(cfg Config) *OtoBackend {
	cfg = defaultConfig(cfg)
	slog.Debug("creating oto backend",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels)
	return &OtoBackend{cfg: cfg}
}

// Name identifies this backend
func (b *OtoBackend) Name() string { return "oto" }

// Start opens the oto context and begins pulling from the renderer
func (b *OtoBackend) Start(r Renderer) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrBackendClosed
	}
	if b.started {
		return ErrAlreadyStarted
	}

	if b.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   b.cfg.SampleRate,
			ChannelCount: b.cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			slog.Error("failed to initialize oto context", "error", err)
			return fmt.Errorf("failed to initialize oto context: %w", err)
		}
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			return fmt.Errorf("%w: oto context never became ready", ErrBackendNotAvailable)
		}
		b.ctx = ctx
	}

	bridge := newRenderReader(r, b.cfg.SampleRate, b.cfg.Channels)
	b.player = b.ctx.NewPlayer(bridge)
	b.player.Play()
	b.started = true

	slog.Info("oto backend started",
		"sample_rate", b.cfg.SampleRate,
		"channels", b.cfg.Channels)
	return nil
}

// Stop pauses the player without releasing it
func (b *OtoBackend) Stop() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrBackendClosed
	}
	if b.player != nil {
		b.player.Pause()
	}
	b.started = false

	slog.Debug("oto backend stopped")
	return nil
}

// Close releases the player. The oto context itself cannot be closed; it
// lives for the process, which is an oto limitation.
func (b *OtoBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.player != nil {
		if err := b.player.Close(); err != nil {
			slog.Error("failed to close oto player", "error", err)
			return err
		}
		b.player = nil
	}

	slog.Debug("oto backend closed")
	return nil
}

// renderReader adapts a Renderer into the io.Reader oto pulls from,
// converting float32 samples to signed 16-bit little-endian PCM
type renderReader struct {
	renderer   Renderer
	sampleRate float64
	channels   int
	scratch    []float32
}

func newRenderReader(r Renderer, sampleRate, channels int) *renderReader {
	return &renderReader{
		renderer:   r,
		sampleRate: float64(sampleRate),
		channels:   channels,
		scratch:    make([]float32, otoBlockFrames*channels),
	}
}

// Read fills p with rendered PCM. It always fills whole frames and never
// returns io.EOF; a silent module produces silent PCM.
func (rr *renderReader) Read(p []byte) (int, error) {
	bytesPerFrame := rr.channels * 2
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if frames > otoBlockFrames {
		frames = otoBlockFrames
	}
	need := frames * rr.channels

	rr.renderer.RenderAudio(rr.scratch[:need], frames, rr.channels, rr.sampleRate)

	for i := 0; i < need; i++ {
		p[i*2], p[i*2+1] = float32ToS16LE(rr.scratch[i])
	}
	return need * 2, nil
}

// float32ToS16LE converts one sample to clipped little-endian int16 bytes
func float32ToS16LE(s float32) (lo, hi byte) {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	v := int16(s * 32767)
	return byte(v), byte(uint16(v) >> 8)
}
