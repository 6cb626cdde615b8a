package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediapool.click/internal/trigger"
	"mediapool.click/internal/voice"
)

func TestModuleStartsIdle(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	assert.Equal(t, ModeIdle, rig.m.Mode())
	assert.Equal(t, 0, rig.m.Pool().ActiveCount())
	assert.Equal(t, -1, rig.m.ActiveSlot())
}

// S1: a single untimed ONCE trigger plays the clip to the region end, then
// the module returns to idle with the playhead reset.
func TestSingleOnceTrigger(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleOnce)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})

	require.Equal(t, ModePlaying, rig.m.Mode())
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)
	assert.Equal(t, voice.StatePlaying, v.State())

	peak := rig.step()
	assert.Greater(t, peak, float32(0), "audio output should be non-silent")

	// Run past the 2-second clip; the supervisor stops the voice at region
	// end and the mode falls back to idle
	rig.run(2.5)

	assert.Equal(t, ModeIdle, rig.m.Mode())
	assert.Equal(t, 0, rig.m.Pool().ActiveCount())
	assert.Equal(t, 0.0, v.PlayheadPosition(), "once does not preserve the playhead")
}

// S2: a gated trigger is stopped by the supervisor within a frame of its
// deadline with the playhead frozen at the captured position.
func TestGateStopFreezesPlayhead(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleNext)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0, Duration: 0.5})
	v := rig.m.ActiveVoice()
	require.NotNil(t, v)

	rig.run(0.7)

	assert.NotEqual(t, voice.StatePlaying, v.State(), "gate must have fired")
	frozen := v.PlayheadPosition()
	// 0.5s into a 2s clip is 0.25 normalized, within one frame of slack
	assert.InDelta(t, 0.25, frozen, 0.02)

	// S6: the next NEXT trigger with no position resumes from the frozen value
	rig.fire(trigger.Event{Step: 1, MediaIndex: 0})
	resumed := rig.m.ActiveVoice()
	require.NotNil(t, resumed)
	assert.InDelta(t, frozen, resumed.StartPosition(), 0.02,
		"next-mode trigger resumes from the captured stop position")
}

// S3: retriggering the same slot under mono keeps a single voice non-free.
func TestMonoRetriggerSameSlot(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPolyphonyMode(voice.Monophonic)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	first := rig.m.ActiveVoice()
	rig.run(0.25)

	rig.fire(trigger.Event{Step: 1, MediaIndex: 0})
	second := rig.m.ActiveVoice()

	assert.Same(t, first, second, "mono retrigger reuses the voice")
	assert.Equal(t, 1, rig.m.Pool().ActiveCount())
	assert.Equal(t, voice.StatePlaying, second.State())
}

// P3: under mono at most one voice per media index is ever non-free.
func TestMonoSingleVoiceInvariant(t *testing.T) {
	rig := newTestRig(t, 8, 2)
	rig.m.SetPolyphonyMode(voice.Monophonic)

	for step := int32(0); step < 12; step++ {
		rig.fire(trigger.Event{Step: step, MediaIndex: step % 2})

		perSlot := map[int]int{}
		for _, v := range rig.m.Pool().Voices() {
			if v.IsActive() {
				perSlot[v.MediaIndex()]++
			}
		}
		for slot, count := range perSlot {
			assert.LessOrEqualf(t, count, 1, "slot %d has %d active voices", slot, count)
		}
		rig.run(0.05)
	}
}

// S4: two overlapping voices under poly sum linearly in the output.
func TestPolyOverlapSums(t *testing.T) {
	rig := newTestRig(t, 4, 2)
	rig.m.SetPolyphonyMode(voice.Polyphonic)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	soloPeak := rig.step()

	rig.fire(trigger.Event{Step: 1, MediaIndex: 1})
	assert.Equal(t, 2, rig.m.Pool().ActiveCount())

	duoPeak := rig.step()
	assert.Greater(t, duoPeak, soloPeak, "two voices sum louder than one")
}

// S7: with a full pool the oldest playing voice is stolen.
func TestVoiceStealingUnderLoad(t *testing.T) {
	rig := newTestRig(t, 4, 5)
	rig.m.SetPolyphonyMode(voice.Polyphonic)

	var voices []*voice.Voice
	for step := int32(0); step < 4; step++ {
		rig.fire(trigger.Event{Step: step, MediaIndex: step})
		voices = append(voices, rig.m.ActiveVoice())
		rig.run(0.05)
	}
	oldest := voices[0]
	require.False(t, rig.m.Pool().HasFree())

	rig.fire(trigger.Event{Step: 4, MediaIndex: 4})
	newest := rig.m.ActiveVoice()

	assert.Same(t, oldest, newest, "the smallest start time is stolen")
	assert.Equal(t, 4, newest.MediaIndex())
	assert.Equal(t, voice.StatePlaying, newest.State())
}

// A rest event stops the module's current voice.
func TestRestStopsActiveVoice(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	v := rig.m.ActiveVoice()
	require.Equal(t, voice.StatePlaying, v.State())

	rig.fire(trigger.Event{Step: 1, MediaIndex: -1})
	assert.NotEqual(t, voice.StatePlaying, v.State())
}

func TestInvalidMediaIndexDropped(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 42})

	assert.Equal(t, 0, rig.m.Pool().ActiveCount())
	stats := rig.m.Stats()
	assert.Equal(t, uint64(1), stats.ErrorCounts["invalid_index"])
}

func TestUnknownParameterKeysIgnored(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params:     map[string]float32{"wobble": 3.5, "volume": 0.5},
	})

	v := rig.m.ActiveVoice()
	require.NotNil(t, v)
	assert.Equal(t, 0.5, v.Volume(), "known keys still apply")
}

// P9: inverted region bounds at trigger time are swapped before use.
func TestInvertedRegionSwapped(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params: map[string]float32{
			trigger.ParamRegionStart: 0.75,
			trigger.ParamRegionEnd:   0.25,
		},
	})

	v := rig.m.ActiveVoice()
	require.NotNil(t, v)
	start, end := v.Region()
	assert.Equal(t, 0.25, start)
	assert.Equal(t, 0.75, end)
}

func TestOncePositionClampedBelowEnd(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPlayStyle(StyleOnce)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params:     map[string]float32{trigger.ParamPosition: 1.0},
	})

	v := rig.m.ActiveVoice()
	require.NotNil(t, v)
	assert.Equal(t, EndPositionThreshold, v.StartPosition())
}

func TestPolyphonySwitchViaEventParameter(t *testing.T) {
	rig := newTestRig(t, 4, 2)

	rig.fire(trigger.Event{
		Step:       0,
		MediaIndex: 0,
		Params:     map[string]float32{trigger.ParamPolyphonyMode: 1},
	})
	assert.Equal(t, voice.Polyphonic, rig.m.PolyphonyMode())
}

func TestPauseGatesTickAndRender(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	rig.m.Pause()

	// Events queue but are not consumed while paused
	rig.m.TriggerIn(trigger.Event{Step: 1, MediaIndex: 0})
	rig.m.Tick()
	assert.Equal(t, 1, rig.m.QueueDepth())

	peak := rig.step()
	assert.Zero(t, peak, "paused module renders silence")

	rig.m.Resume()
	rig.m.Tick()
	assert.Equal(t, 0, rig.m.QueueDepth())
}

func TestClearStopsEverything(t *testing.T) {
	rig := newTestRig(t, 4, 2)
	rig.fire(trigger.Event{Step: 0, MediaIndex: 0, Duration: 5})
	rig.m.TriggerIn(trigger.Event{Step: 1, MediaIndex: 1})

	rig.m.Clear()

	assert.Equal(t, 0, rig.m.Pool().ActiveCount())
	assert.Equal(t, 0, rig.m.QueueDepth())
	assert.Equal(t, 0, rig.m.Slots().Count())
	assert.Equal(t, ModeIdle, rig.m.Mode())
}

func TestCloseDrainsPendingEvents(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.TriggerIn(trigger.Event{Step: 0, MediaIndex: 0})
	rig.m.TriggerIn(trigger.Event{Step: 1, MediaIndex: 0})

	require.NoError(t, rig.m.Close())
	assert.Equal(t, 0, rig.m.QueueDepth())
	assert.Equal(t, ModeIdle, rig.m.Mode())
}

// P6: a gated trigger produces exactly one scheduled stop, and a retrigger
// of the same voice cancels the stale gate.
func TestRetriggerCancelsStaleGate(t *testing.T) {
	rig := newTestRig(t, 4, 1)
	rig.m.SetPolyphonyMode(voice.Monophonic)

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0, Duration: 0.5})
	require.Len(t, rig.m.scheduledStops, 1)

	rig.run(0.4)

	// Retrigger just before the first gate expires; the stale stop must not
	// clobber the new playback
	rig.fire(trigger.Event{Step: 1, MediaIndex: 0, Duration: 0.5})
	require.Len(t, rig.m.scheduledStops, 1)

	v := rig.m.ActiveVoice()
	rig.run(0.2) // past the first gate's original deadline
	assert.Equal(t, voice.StatePlaying, v.State(),
		"the cancelled gate must not stop the retriggered voice")

	rig.run(0.5) // past the second gate
	assert.NotEqual(t, voice.StatePlaying, v.State())
}

func TestTriggerRecordHook(t *testing.T) {
	rig := newTestRig(t, 4, 1)

	var records []TriggerRecord
	rig.m.SetRecordHook(func(rec TriggerRecord) {
		records = append(records, rec)
	})

	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	rig.fire(trigger.Event{Step: 1, MediaIndex: 99})

	require.Len(t, records, 2)
	assert.False(t, records[0].Dropped)
	assert.True(t, records[1].Dropped)
	assert.Equal(t, "invalid media index", records[1].DropReason)
}

// P8: the audio render path does not allocate.
func TestRenderAudioDoesNotAllocate(t *testing.T) {
	rig := newTestRig(t, 4, 2)
	rig.m.SetPolyphonyMode(voice.Polyphonic)
	rig.fire(trigger.Event{Step: 0, MediaIndex: 0})
	rig.fire(trigger.Event{Step: 1, MediaIndex: 1})

	dst := make([]float32, testBlock*testChannels)
	allocs := testing.AllocsPerRun(50, func() {
		rig.m.RenderAudio(dst, testBlock, testChannels, testSampleRate)
	})
	assert.Zero(t, allocs, "audio callback must not allocate")
}
