package media

import (
	"bytes"
	"io"
	"log/slog"
	"strings"

	"github.com/youpy/go-wav"
)

// WavDecoder handles WAV audio format decoding
type WavDecoder struct{}

// NewWavDecoder creates a new WAV decoder instance
func NewWavDecoder() *WavDecoder {
	slog.Debug("creating new WAV decoder instance")
	return &WavDecoder{}
}

// Decode reads WAV audio data from reader and returns a decoded clip
func (d *WavDecoder) Decode(reader io.Reader) (*Clip, error) {
	slog.Debug("starting WAV decode operation")

	// youpy/go-wav needs a ReadSeeker, so read everything first
	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read WAV data", "error", err)
		return nil, ErrReadFailure
	}
	if len(data) == 0 {
		slog.Error("empty WAV data")
		return nil, ErrInvalidData
	}

	wavReader := wav.NewReader(bytes.NewReader(data))

	format, err := wavReader.Format()
	if err != nil {
		slog.Error("failed to read WAV format", "error", err)
		return nil, ErrInvalidData
	}

	slog.Debug("WAV format detected",
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bits_per_sample", format.BitsPerSample)

	if format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Error("invalid WAV format parameters",
			"channels", format.NumChannels,
			"sample_rate", format.SampleRate)
		return nil, ErrInvalidData
	}

	var scale float32
	switch format.BitsPerSample {
	case 8:
		scale = 1.0 / 128.0
	case 16:
		scale = 1.0 / 32768.0
	case 24:
		scale = 1.0 / 8388608.0
	case 32:
		scale = 1.0 / 2147483648.0
	default:
		slog.Error("unsupported bit depth", "bits", format.BitsPerSample)
		return nil, ErrUnsupportedFormat
	}

	channels := int(format.NumChannels)
	var samples []float32

	for {
		chunk, err := wavReader.ReadSamples()
		if err != nil {
			if err == io.EOF {
				break
			}
			slog.Error("failed to read WAV samples", "error", err)
			return nil, ErrReadFailure
		}
		if len(chunk) == 0 {
			break
		}

		for _, sample := range chunk {
			for ch := 0; ch < channels; ch++ {
				var val int
				if ch < len(sample.Values) {
					val = sample.Values[ch]
				}
				if format.BitsPerSample == 8 {
					// 8-bit WAV is unsigned
					val -= 128
				}
				samples = append(samples, float32(val)*scale)
			}
		}
	}

	if len(samples) == 0 {
		slog.Error("no audio data found in WAV file")
		return nil, ErrInvalidData
	}

	clip := &Clip{
		Samples:    samples,
		Channels:   channels,
		SampleRate: int(format.SampleRate),
	}

	slog.Info("WAV decode completed successfully",
		"frames", clip.Frames(),
		"channels", clip.Channels,
		"sample_rate", clip.SampleRate,
		"duration_ms", int(clip.Duration()*1000))

	return clip, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}

// FormatName returns the name of the format this decoder handles
func (d *WavDecoder) FormatName() string {
	return "WAV"
}
