package sampler

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"mediapool.click/internal/envelope"
	"mediapool.click/internal/media"
	"mediapool.click/internal/slots"
	"mediapool.click/internal/trigger"
)

const (
	testSampleRate = 48000.0
	testChannels   = 2
	testBlock      = 512 // frames per simulated audio callback
)

// fakeClock is an injectable wall clock
type fakeClock struct {
	now float64
}

func (c *fakeClock) Now() float64 { return c.now }

// writeTestWAV writes a mono 16-bit WAV of the given length into the
// filesystem, samples ramping with frame index
func writeTestWAV(t *testing.T, fs afero.Fs, path string, sampleRate, frames int) {
	t.Helper()

	dataSize := frames * 2
	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for f := 0; f < frames; f++ {
		binary.Write(buf, binary.LittleEndian, int16(1000+f%1000))
	}

	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0644))
}

func fakeProber(path string) (media.VideoInfo, error) {
	return media.VideoInfo{Width: 16, Height: 16, Fps: 25, Duration: 2.0}, nil
}

// testRig is a module wired to an in-memory slot table and a fake clock
type testRig struct {
	m     *Module
	clock *fakeClock
	fs    afero.Fs
	table *slots.Table
}

// newTestRig builds a module with the given voice count and slotCount
// 2-second audio slots
func newTestRig(t *testing.T, voices int, slotCount int) *testRig {
	t.Helper()

	fs := afero.NewMemMapFs()
	table := slots.NewTableWithProber(fs, media.NewDefaultRegistry(), fakeProber)
	clock := &fakeClock{}

	for i := 0; i < slotCount; i++ {
		path := "/samples/slot" + string(rune('a'+i)) + ".wav"
		writeTestWAV(t, fs, path, int(testSampleRate), int(testSampleRate*2))
		_, err := table.Add(path, "")
		require.NoError(t, err)
	}

	m := New(Options{
		Slots:  table,
		Voices: voices,
		Clock:  clock.Now,
		Envelope: func() *envelope.Envelope {
			return envelope.New(0, 0, 1.0, 0)
		},
	})

	return &testRig{m: m, clock: clock, fs: fs, table: table}
}

// step simulates one visual frame: one audio callback block, clock advance,
// then a control tick. Returns the peak absolute sample of the block.
func (r *testRig) step() float32 {
	dst := make([]float32, testBlock*testChannels)
	r.m.RenderAudio(dst, testBlock, testChannels, testSampleRate)
	r.clock.now += float64(testBlock) / testSampleRate
	r.m.Tick()

	var peak float32
	for _, s := range dst {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// run steps the rig for the given number of seconds
func (r *testRig) run(seconds float64) {
	steps := int(seconds * testSampleRate / testBlock)
	for i := 0; i < steps; i++ {
		r.step()
	}
}

// fire enqueues a trigger and runs one control tick to consume it
func (r *testRig) fire(ev trigger.Event) {
	r.m.TriggerIn(ev)
	r.m.Tick()
}
