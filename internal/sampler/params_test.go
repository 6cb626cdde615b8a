package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapool.click/internal/trigger"
	"mediapool.click/internal/voice"
)

func TestParameterSurface(t *testing.T) {
	rig := newTestRig(t, 4, 2)

	descriptors := rig.m.Parameters()
	names := make(map[string]ParamDescriptor, len(descriptors))
	for _, d := range descriptors {
		names[d.Name] = d
	}

	require.Len(t, descriptors, 8)
	assert.Equal(t, 1.0, names["index"].Max, "index range tracks the slot count")
	assert.Equal(t, -10.0, names["speed"].Min)
	assert.Equal(t, 10.0, names["speed"].Max)
	assert.Equal(t, 2.0, names["volume"].Max)
	assert.Equal(t, 10.0, names["loop_size"].Max)
	assert.Equal(t, 1.0, names["speed"].Default)
}

func TestSetParameterClamps(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	require.NoError(t, rig.m.SetParameter("speed", 25))
	v, _ := rig.m.Parameter("speed")
	assert.Equal(t, 10.0, v)

	require.NoError(t, rig.m.SetParameter("volume", -1))
	v, _ = rig.m.Parameter("volume")
	assert.Equal(t, 0.0, v)

	require.NoError(t, rig.m.SetParameter("position", 1.7))
	v, _ = rig.m.Parameter("position")
	assert.Equal(t, 1.0, v)
}

func TestSetParameterUnknownName(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	assert.Error(t, rig.m.SetParameter("nonsense", 1))

	_, ok := rig.m.Parameter("nonsense")
	assert.False(t, ok)
}

func TestSetParameterInvalidIndex(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	assert.Error(t, rig.m.SetParameter("index", 5))
	require.NoError(t, rig.m.SetParameter("index", 0))
	assert.Equal(t, 0, rig.m.ActiveSlot())
}

func TestSetParameterRegionSwap(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	require.NoError(t, rig.m.SetParameter("region_end", 0.2))
	require.NoError(t, rig.m.SetParameter("region_start", 0.8))

	start, _ := rig.m.Parameter("region_start")
	end, _ := rig.m.Parameter("region_end")
	assert.Equal(t, 0.2, start)
	assert.Equal(t, 0.8, end)
}

func TestLiveParametersForwardToActiveVoice(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)

	require.NoError(t, rig.m.SetParameter("volume", 0.25))
	assert.Equal(t, 0.25, v.Volume())

	require.NoError(t, rig.m.SetParameter("speed", -2))
	assert.Equal(t, -2.0, v.Speed())
}

func TestPolyphonyModeParameter(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	require.NoError(t, rig.m.SetParameter("polyphony_mode", 1))
	assert.Equal(t, voice.Polyphonic, rig.m.PolyphonyMode())

	mode, ok := rig.m.Parameter("polyphony_mode")
	require.True(t, ok)
	assert.Equal(t, 1.0, mode)
}

func TestModuleDefaultsApplyToTriggeredVoice(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	require.NoError(t, rig.m.SetParameter("volume", 0.5))
	require.NoError(t, rig.m.SetParameter("speed", 2))

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)

	assert.Equal(t, 0.5, v.Volume())
	assert.Equal(t, 2.0, v.Speed())
}
