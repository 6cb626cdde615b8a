package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbeJSON = `{
	"streams": [
		{
			"codec_type": "audio",
			"codec_name": "aac"
		},
		{
			"codec_type": "video",
			"width": 640,
			"height": 360,
			"avg_frame_rate": "30000/1001",
			"duration": "12.345000"
		}
	],
	"format": {
		"duration": "12.412000"
	}
}`

func TestParseProbe(t *testing.T) {
	width, height, fps, duration, err := parseProbe(sampleProbeJSON)
	require.NoError(t, err)

	assert.Equal(t, 640, width)
	assert.Equal(t, 360, height)
	assert.InDelta(t, 29.97, fps, 0.01)
	assert.InDelta(t, 12.345, duration, 1e-6)
}

func TestParseProbeFormatDurationFallback(t *testing.T) {
	probe := `{
		"streams": [
			{"codec_type": "video", "width": 320, "height": 240, "avg_frame_rate": "25/1"}
		],
		"format": {"duration": "3.5"}
	}`

	_, _, fps, duration, err := parseProbe(probe)
	require.NoError(t, err)
	assert.Equal(t, 25.0, fps)
	assert.Equal(t, 3.5, duration)
}

func TestParseProbeNoVideoStream(t *testing.T) {
	probe := `{"streams": [{"codec_type": "audio"}], "format": {"duration": "1.0"}}`

	_, _, _, _, err := parseProbe(probe)
	assert.Error(t, err)
}

func TestParseProbeInvalidJSON(t *testing.T) {
	_, _, _, _, err := parseProbe("not json")
	assert.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	testCases := []struct {
		rate     string
		expected float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997002997},
		{"0/0", 0},
		{"25", 25},
		{"", 0},
	}

	for _, tc := range testCases {
		assert.InDelta(t, tc.expected, parseFrameRate(tc.rate), 1e-9, "rate %q", tc.rate)
	}
}

func TestClipAccessors(t *testing.T) {
	clip := &Clip{
		Samples:    make([]float32, 200),
		Channels:   2,
		SampleRate: 100,
	}

	assert.Equal(t, 100, clip.Frames())
	assert.Equal(t, 1.0, clip.Duration())

	// Out-of-range access yields silence, never a panic
	assert.Zero(t, clip.Sample(-1, 0))
	assert.Zero(t, clip.Sample(1000, 0))
	assert.Zero(t, clip.Sample(0, -1))
}
