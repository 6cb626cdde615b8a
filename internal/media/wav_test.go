package media

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// generateTestWAV builds a minimal valid 16-bit PCM WAV file in memory
func generateTestWAV(channels int, sampleRate int, frames int) []byte {
	dataSize := frames * channels * 2
	buf := &bytes.Buffer{}

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			// Small ramp so decoded values are recognizable and non-zero
			binary.Write(buf, binary.LittleEndian, int16(f*256+c))
		}
	}

	return buf.Bytes()
}

func TestWavDecoderInterface(t *testing.T) {
	decoder := NewWavDecoder()

	var _ Decoder = decoder

	if decoder.FormatName() != "WAV" {
		t.Errorf("expected format name 'WAV', got '%s'", decoder.FormatName())
	}
}

func TestWavDecoderCanDecode(t *testing.T) {
	decoder := NewWavDecoder()

	testCases := []struct {
		filename string
		expected bool
	}{
		{"audio.wav", true},
		{"sound.WAV", true},
		{"music.wave", true},
		{"audio.mp3", false},
		{"clip.mov", false},
		{"", false},
		{"wav", false},
	}

	for _, tc := range testCases {
		result := decoder.CanDecode(tc.filename)
		if result != tc.expected {
			t.Errorf("CanDecode('%s') = %v, expected %v", tc.filename, result, tc.expected)
		}
	}
}

func TestWavDecoderDecodeInvalidData(t *testing.T) {
	decoder := NewWavDecoder()

	t.Run("empty data", func(t *testing.T) {
		clip, err := decoder.Decode(bytes.NewReader([]byte{}))
		if err == nil {
			t.Fatal("expected error for empty data")
		}
		if clip != nil {
			t.Error("expected nil clip on error")
		}
	})

	t.Run("invalid WAV header", func(t *testing.T) {
		clip, err := decoder.Decode(bytes.NewReader([]byte("not a wav file")))
		if err == nil {
			t.Fatal("expected error for invalid WAV data")
		}
		if clip != nil {
			t.Error("expected nil clip on error")
		}
	})
}

func TestWavDecoderDecodeValidData(t *testing.T) {
	decoder := NewWavDecoder()

	wavData := generateTestWAV(2, 44100, 64)
	clip, err := decoder.Decode(bytes.NewReader(wavData))
	if err != nil {
		t.Fatalf("expected no error for valid WAV, got %v", err)
	}
	if clip == nil {
		t.Fatal("expected clip, got nil")
	}

	if clip.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", clip.Channels)
	}
	if clip.SampleRate != 44100 {
		t.Errorf("expected 44100 sample rate, got %d", clip.SampleRate)
	}
	if clip.Frames() != 64 {
		t.Errorf("expected 64 frames, got %d", clip.Frames())
	}

	// Samples must be normalized into [-1,1]
	for i, s := range clip.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
	}
}
