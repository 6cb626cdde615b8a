package media

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryFormats(t *testing.T) {
	registry := NewDefaultRegistry()

	formats := registry.SupportedFormats()
	assert.Contains(t, formats, "WAV")
	assert.Contains(t, formats, "MP3")
	assert.Contains(t, formats, "AIFF")
}

func TestRegistryDetectFormatByExtension(t *testing.T) {
	registry := NewDefaultRegistry()

	testCases := []struct {
		filename string
		format   string
	}{
		{"kick.wav", "WAV"},
		{"loop.mp3", "MP3"},
		{"hit.aiff", "AIFF"},
		{"hit.aif", "AIFF"},
	}

	for _, tc := range testCases {
		decoder := registry.DetectFormat(tc.filename)
		require.NotNil(t, decoder, "no decoder for %s", tc.filename)
		assert.Equal(t, tc.format, decoder.FormatName())
	}

	assert.Nil(t, registry.DetectFormat("video.mov"))
	assert.Nil(t, registry.DetectFormat(""))
}

func TestRegistryDetectFormatWithContent(t *testing.T) {
	registry := NewDefaultRegistry()

	// Valid WAV magic bytes win even with a misleading extension
	wavData := generateTestWAV(1, 44100, 8)
	decoder := registry.DetectFormatWithContent("mislabeled.bin", bytes.NewReader(wavData))
	require.NotNil(t, decoder)
	assert.Equal(t, "WAV", decoder.FormatName())

	// Unrecognized content falls back to extension
	decoder = registry.DetectFormatWithContent("noise.wav", bytes.NewReader([]byte{1, 2, 3, 4}))
	require.NotNil(t, decoder)
	assert.Equal(t, "WAV", decoder.FormatName())
}

func TestRegistryDecodeFile(t *testing.T) {
	registry := NewDefaultRegistry()

	wavData := generateTestWAV(2, 22050, 32)
	clip, err := registry.DecodeFile("sample.wav", bytes.NewReader(wavData))
	require.NoError(t, err)
	assert.Equal(t, 2, clip.Channels)
	assert.Equal(t, 22050, clip.SampleRate)
	assert.Equal(t, 32, clip.Frames())
}

func TestRegistryDecodeFileUnsupported(t *testing.T) {
	registry := NewDefaultRegistry()

	_, err := registry.DecodeFile("clip.xyz", bytes.NewReader([]byte{9, 9, 9}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRegistryRegisterNil(t *testing.T) {
	registry := NewRegistry()
	registry.Register(nil)
	assert.Empty(t, registry.SupportedFormats())
}
