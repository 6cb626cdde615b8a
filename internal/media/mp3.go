package media

import (
	"io"
	"log/slog"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// Mp3Decoder handles MP3 audio format decoding
type Mp3Decoder struct{}

// NewMp3Decoder creates a new MP3 decoder instance
func NewMp3Decoder() *Mp3Decoder {
	slog.Debug("creating new MP3 decoder instance")
	return &Mp3Decoder{}
}

// Decode reads MP3 audio data from reader and returns a decoded clip
func (d *Mp3Decoder) Decode(reader io.Reader) (*Clip, error) {
	slog.Debug("starting MP3 decode operation")

	decoder, err := mp3.NewDecoder(reader)
	if err != nil {
		slog.Error("failed to create MP3 decoder", "error", err)
		return nil, ErrInvalidData
	}

	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		slog.Error("invalid MP3 sample rate", "sample_rate", sampleRate)
		return nil, ErrInvalidData
	}

	// go-mp3 always outputs 16-bit signed little-endian stereo
	var samples []float32
	buf := make([]byte, 4096)
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			for i := 0; i+1 < n; i += 2 {
				raw := int16(buf[i]) | int16(buf[i+1])<<8
				samples = append(samples, float32(raw)/32768.0)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			slog.Error("failed to read MP3 PCM data", "error", err)
			return nil, ErrReadFailure
		}
		if n == 0 {
			break
		}
	}

	if len(samples) == 0 {
		slog.Error("no audio data found in MP3 file")
		return nil, ErrInvalidData
	}

	clip := &Clip{
		Samples:    samples,
		Channels:   2,
		SampleRate: sampleRate,
	}

	slog.Info("MP3 decode completed successfully",
		"frames", clip.Frames(),
		"sample_rate", clip.SampleRate,
		"duration_ms", int(clip.Duration()*1000))

	return clip, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *Mp3Decoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".mpeg")
}

// FormatName returns the name of the format this decoder handles
func (d *Mp3Decoder) FormatName() string {
	return "MP3"
}
