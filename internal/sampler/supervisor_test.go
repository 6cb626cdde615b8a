package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapool.click/internal/trigger"
	"mediapool.click/internal/voice"
)

// S5: under LOOP the voice oscillates inside the loop window and never
// leaves playing mode; the gate stop resets the playhead to zero.
func TestLoopRegionOscillates(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleLoop)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Duration:   1.0,
		Params: map[string]float32{
			trigger.ParamRegionStart: 0.25,
			trigger.ParamRegionEnd:   0.75,
			trigger.ParamLoopSize:    0.25,
		},
	})

	v := rig.m.ActiveVoice()
	require.NotNil(t, v)

	// Loop window: start 0.25 absolute, 0.25s of a 2s clip = 0.125
	// normalized, so the playhead stays within [0.25, 0.375] plus epsilon
	const loopLow, loopHigh = 0.25, 0.375
	steps := int(math.Trunc(0.9 * testSampleRate / testBlock))
	for i := 0; i < steps; i++ {
		rig.step()
		require.Equal(t, ModePlaying, rig.m.Mode(),
			"P7: a loop wrap must not leave playing mode")
		pos := v.PlayheadPosition()
		assert.GreaterOrEqual(t, pos, loopLow-0.02, "step %d", i)
		assert.LessOrEqual(t, pos, loopHigh+0.02, "step %d", i)
	}

	// Let the 1-second gate fire
	rig.run(0.3)
	assert.NotEqual(t, voice.StatePlaying, v.State())
	assert.Equal(t, 0.0, v.PlayheadPosition(),
		"a loop gate stop resets the playhead")
}

// NEXT runs to the region end, stops, and preserves the playhead for the
// next trigger.
func TestNextStopsAtRegionEndPreservingPlayhead(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleNext)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params:     map[string]float32{trigger.ParamRegionEnd: 0.5},
	})
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)

	rig.run(1.5) // region end is 1s into the 2s clip

	assert.NotEqual(t, voice.StatePlaying, v.State())
	assert.Greater(t, v.PlayheadPosition(), 0.4,
		"next preserves the playhead at region end")
}

// GRAIN wraps at the loop boundary like LOOP does.
func TestGrainWrapsAtLoopEnd(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleGrain)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params:     map[string]float32{trigger.ParamLoopSize: 0.25},
	})
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)
	assert.True(t, v.Loop(), "grain hands the intrinsic loop flag to the decoder")

	rig.run(1.0)

	assert.Equal(t, voice.StatePlaying, v.State())
	assert.LessOrEqual(t, v.PlayheadPosition(), 0.125+0.02,
		"grain stays inside its loop window")
}

// LOOP must not hand the decoder its intrinsic loop flag; the supervisor
// wraps manually.
func TestLoopKeepsDecoderLoopDisabled(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleLoop)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)
	assert.False(t, v.Loop())
}

// A position behind the region start is pulled back up to it.
func TestPositionBelowRegionStartReseeks(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params: map[string]float32{
			trigger.ParamRegionStart: 0.5,
			trigger.ParamPosition:    0.0,
		},
	})
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)

	// Force the decoder below the region and let the supervisor catch it
	v.AudioSource().SetPosition(0.1)
	rig.step()

	assert.GreaterOrEqual(t, v.PlayheadPosition(), 0.5-0.02)
}

// P1: mode tracks voices and queue emptiness through a whole lifecycle.
func TestModeDerivation(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	assert.Equal(t, ModeIdle, rig.m.Mode())

	// One tick consumes the enqueued event and the started voice makes the
	// module playing
	rig.m.TriggerIn(trigger.Event{Step: 0, MediaIndex: 0, Duration: 0.2})
	rig.m.Tick()
	assert.Equal(t, ModePlaying, rig.m.Mode())

	rig.run(0.5)
	assert.Equal(t, ModeIdle, rig.m.Mode())
}

// P2: no output sample exceeds the voice volume times the source peak.
func TestOutputBoundedByVolume(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params:     map[string]float32{trigger.ParamVolume: 2.0},
	})

	// Source samples stay below 2000/32768; with volume 2 the output must
	// stay below twice that
	const sourcePeak = 2000.0 / 32768.0
	for i := 0; i < 20; i++ {
		peak := rig.step()
		assert.LessOrEqual(t, peak, float32(2*sourcePeak)+1e-4)
	}
}

func TestSpeedAffectsPlayheadRate(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleNext)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params:     map[string]float32{trigger.ParamSpeed: 2.0},
	})
	v := rig.m.ActiveVoice()

	rig.run(0.5)

	// Double speed covers 1s of media in 0.5s of wall clock
	assert.InDelta(t, 0.5, v.PlayheadPosition(), 0.03)
}
