package sampler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapool.click/internal/envelope"
	"mediapool.click/internal/media"
	"mediapool.click/internal/slots"
	"mediapool.click/internal/trigger"
	"mediapool.click/internal/voice"
)

func TestSaveAndLoadStateRoundTrip(t *testing.T) {
	rig := newTestRig(t, 4, 2)
	rig.m.SetPlayStyle(StyleNext)
	rig.m.SetPolyphonyMode(voice.Polyphonic)

	// Trigger slot 1 so it gets a parameter snapshot and becomes active
	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 1,
		Params: map[string]float32{
			trigger.ParamVolume: 0.75,
			trigger.ParamSpeed:  2.0,
		},
	})

	var buf bytes.Buffer
	require.NoError(t, rig.m.SaveState(&buf))

	saved := buf.String()
	assert.Contains(t, saved, "slotb.wav")
	assert.Contains(t, saved, `"play_style": "next"`)
	assert.Contains(t, saved, `"polyphony_mode": "poly"`)

	// Restore into a fresh module over the same filesystem
	table := slots.NewTableWithProber(rig.fs, media.NewDefaultRegistry(), fakeProber)
	clock := &fakeClock{}
	restored := New(Options{
		Slots: table,
		Clock: clock.Now,
		Envelope: func() *envelope.Envelope {
			return envelope.New(0, 0, 1.0, 0)
		},
	})

	require.NoError(t, restored.LoadState(strings.NewReader(saved)))

	assert.Equal(t, 2, restored.Slots().Count())
	assert.Equal(t, StyleNext, restored.PlayStyle())
	assert.Equal(t, voice.Polyphonic, restored.PolyphonyMode())
	assert.Equal(t, 1, restored.ActiveSlot())

	// The active slot's snapshot is loaded into the module defaults
	vol, _ := restored.Parameter("volume")
	assert.Equal(t, 0.75, vol)
	speed, _ := restored.Parameter("speed")
	assert.Equal(t, 2.0, speed)
}

func TestLoadStateSkipsMissingFiles(t *testing.T) {
	state := `{
		"slots": [
			{"audio_path": "/gone.wav", "parameters": {}},
		    {"audio_path": "/samples/slota.wav", "parameters": {"volume": 1}}
		],
		"active_slot": 0,
		"play_style": "loop",
		"polyphony_mode": "mono"
	}`

	rig := newTestRig(t, 4, 0)
	writeTestWAV(t, rig.fs, "/samples/slota.wav", int(testSampleRate), 1000)

	require.NoError(t, rig.m.LoadState(strings.NewReader(state)))

	// The missing file is skipped; the good one loads
	assert.Equal(t, 1, rig.m.Slots().Count())
	assert.Equal(t, StyleLoop, rig.m.PlayStyle())
}

func TestLoadStateInvalidJSON(t *testing.T) {
	rig := newTestRig(t, 4, 0)
	assert.Error(t, rig.m.LoadState(strings.NewReader("{broken")))
}

func TestSaveStateToFilesystem(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	fs := afero.NewMemMapFs()
	file, err := fs.Create("/session/module.json")
	require.NoError(t, err)
	require.NoError(t, rig.m.SaveState(file))
	require.NoError(t, file.Close())

	data, err := afero.ReadFile(fs, "/session/module.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "slota.wav")
}
