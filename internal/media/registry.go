package media

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Registry manages audio format decoders and provides format detection
type Registry struct {
	decoders []Decoder
}

// NewRegistry creates a new empty decoder registry
func NewRegistry() *Registry {
	slog.Debug("creating new decoder registry")
	return &Registry{
		decoders: make([]Decoder, 0),
	}
}

// NewDefaultRegistry creates a registry with the default WAV, MP3, and AIFF decoders
func NewDefaultRegistry() *Registry {
	slog.Debug("creating default decoder registry with WAV, MP3, and AIFF support")

	registry := NewRegistry()
	registry.Register(NewWavDecoder())
	registry.Register(NewMp3Decoder())
	registry.Register(NewAiffDecoder())

	slog.Info("default decoder registry initialized",
		"supported_formats", registry.SupportedFormats())

	return registry
}

// Register adds a decoder to the registry
func (r *Registry) Register(decoder Decoder) {
	if decoder == nil {
		slog.Warn("attempted to register nil decoder")
		return
	}

	slog.Debug("registering decoder", "format", decoder.FormatName())
	r.decoders = append(r.decoders, decoder)
}

// SupportedFormats returns a list of all supported format names
func (r *Registry) SupportedFormats() []string {
	formats := make([]string, 0, len(r.decoders))
	for _, decoder := range r.decoders {
		formats = append(formats, decoder.FormatName())
	}
	return formats
}

// DetectFormat detects the appropriate decoder based on filename extension only
func (r *Registry) DetectFormat(filename string) Decoder {
	if filename == "" {
		return nil
	}
	// Registration order gives the first registered decoder priority
	for _, decoder := range r.decoders {
		if decoder.CanDecode(filename) {
			return decoder
		}
	}
	return nil
}

// DetectFormatWithContent detects format using magic bytes first, falling
// back to the filename extension. The reader is consumed for the sniff.
func (r *Registry) DetectFormatWithContent(filename string, reader io.Reader) Decoder {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		slog.Error("failed to read header for magic detection", "error", err)
		return r.DetectFormat(filename)
	}
	if n == 0 {
		return r.DetectFormat(filename)
	}

	mimeStr := strings.ToLower(mimetype.Detect(buffer[:n]).String())
	slog.Debug("magic byte detection result",
		"filename", filename,
		"detected_mime", mimeStr,
		"bytes_analyzed", n)

	var byMagic Decoder
	switch {
	case strings.Contains(mimeStr, "wav") || mimeStr == "audio/vnd.wave":
		byMagic = r.findDecoderByFormat("WAV")
	case strings.Contains(mimeStr, "mpeg") || strings.Contains(mimeStr, "mp3"):
		byMagic = r.findDecoderByFormat("MP3")
	case strings.Contains(mimeStr, "aiff"):
		byMagic = r.findDecoderByFormat("AIFF")
	}

	if byMagic != nil {
		slog.Debug("format detected by magic bytes",
			"filename", filename,
			"format", byMagic.FormatName())
		return byMagic
	}
	return r.DetectFormat(filename)
}

func (r *Registry) findDecoderByFormat(formatName string) Decoder {
	for _, decoder := range r.decoders {
		if strings.EqualFold(decoder.FormatName(), formatName) {
			return decoder
		}
	}
	return nil
}

// DecodeFile decodes an audio stream, choosing the decoder by content
// sniffing first and by the filename extension when the sniff is inconclusive.
func (r *Registry) DecodeFile(filename string, reader io.Reader) (*Clip, error) {
	slog.Debug("starting file decode operation", "filename", filename)

	// Buffer the whole stream so format detection doesn't consume the decoder's input
	fullContent, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read content for decode", "filename", filename, "error", err)
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	decoder := r.DetectFormatWithContent(filename, bytes.NewReader(fullContent))
	if decoder == nil {
		slog.Error("no decoder available", "filename", filename)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	clip, err := decoder.Decode(bytes.NewReader(fullContent))
	if err != nil {
		slog.Error("decode failed",
			"filename", filename,
			"format", decoder.FormatName(),
			"error", err)
		return nil, fmt.Errorf("%s decode failed: %w", decoder.FormatName(), err)
	}

	return clip, nil
}
