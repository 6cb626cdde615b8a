package sampler

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"mediapool.click/internal/envelope"
	"mediapool.click/internal/slots"
	"mediapool.click/internal/trigger"
	"mediapool.click/internal/voice"
)

// Control-tick and supervisor constants
const (
	// MaxEventsPerTick bounds how many queued events one control tick drains
	MaxEventsPerTick = 100

	// MinRegionSize guards the region-relative position mapping against
	// degenerate regions
	MinRegionSize = 0.001

	// EndPositionThreshold is where a position counts as "at the end" for
	// position-memory resets and the ONCE start clamp
	EndPositionThreshold = 0.999

	// PositionBoundaryThresholdDefault is the floor of the normalized
	// region-boundary epsilon
	PositionBoundaryThresholdDefault = 0.001

	// MaxLoopSizeSeconds caps the granular loop length
	MaxLoopSizeSeconds = 10.0

	// MinLoopSizeSeconds floors the granular loop length
	MinLoopSizeSeconds = 0.001
)

// PlayStyle is the end-of-region behaviour policy
type PlayStyle int

const (
	StyleOnce PlayStyle = iota
	StyleLoop
	StyleGrain
	StyleNext
)

// String returns the style name for logging and persistence
func (s PlayStyle) String() string {
	switch s {
	case StyleOnce:
		return "once"
	case StyleLoop:
		return "loop"
	case StyleGrain:
		return "grain"
	case StyleNext:
		return "next"
	default:
		return "unknown"
	}
}

// Mode is the module's derived playback mode
type Mode int32

const (
	ModeIdle Mode = iota
	ModePlaying
)

// String returns the mode name for logging
func (m Mode) String() string {
	if m == ModePlaying {
		return "playing"
	}
	return "idle"
}

// scheduledStop is a pending gate timer for one voice
type scheduledStop struct {
	voice    *voice.Voice
	deadline float64
}

// TriggerRecord describes one consumed trigger for the optional diagnostics
// hook. Delivered on the control thread.
type TriggerRecord struct {
	Step       int32
	MediaIndex int32
	Duration   float64
	PlayStyle  string
	Stolen     bool
	Dropped    bool
	DropReason string
	At         time.Time
}

// moduleParams are the GUI-facing parameter defaults applied to a voice at
// start time when the trigger event does not override them
type moduleParams struct {
	index       int
	position    float64
	speed       float64
	volume      float64
	loopSize    float64
	regionStart float64
	regionEnd   float64
}

// Module is the sampler core: one trigger input, one audio output, one video
// output. The audio thread calls TriggerIn and RenderAudio; the control
// thread calls Tick (and everything else); the two meet only at the trigger
// queue and the per-voice atomics.
type Module struct {
	// mu is the state mutex: held by the control thread while mutating slot
	// or pool membership. Never held on the audio path.
	mu sync.Mutex

	slots *slots.Table
	pool  *voice.Pool
	queue *trigger.Queue

	playStyle PlayStyle
	mode      atomic.Int32
	paused    atomic.Bool

	params      moduleParams
	activeVoice *voice.Voice
	activeSlot  int

	scheduledStops []scheduledStop
	slotMemory     map[int]float64       // last captured playhead per slot (NEXT)
	snapshots      map[int]paramSnapshot // persisted per-slot parameter sets
	warnedKeys     map[string]bool

	counters *counters
	now      func() float64
	onRecord func(TriggerRecord)
}

// Options configures a new module. Zero values get sensible defaults.
type Options struct {
	Slots         *slots.Table
	Voices        int
	QueueCapacity int
	// Clock returns wall-clock seconds; injectable for tests
	Clock func() float64
	// Envelope builds each voice's envelope
	Envelope func() *envelope.Envelope
}

// New creates a sampler module around the given slot table
func New(opts Options) *Module {
	if opts.Clock == nil {
		start := time.Now()
		opts.Clock = func() float64 { return time.Since(start).Seconds() }
	}

	m := &Module{
		slots:      opts.Slots,
		pool:       voice.NewPool(opts.Voices, opts.Envelope),
		queue:      trigger.NewQueue(opts.QueueCapacity),
		slotMemory: make(map[int]float64),
		snapshots:  make(map[int]paramSnapshot),
		warnedKeys: make(map[string]bool),
		counters:   newCounters(),
		now:        opts.Clock,
		activeSlot: -1,
		params: moduleParams{
			speed:     1.0,
			volume:    1.0,
			loopSize:  1.0,
			regionEnd: 1.0,
		},
	}

	slog.Info("sampler module created",
		"voices", m.pool.Size(),
		"queue_capacity", m.queue.Capacity())

	return m
}

// Slots returns the module's slot table
func (m *Module) Slots() *slots.Table { return m.slots }

// Pool returns the voice pool
func (m *Module) Pool() *voice.Pool { return m.pool }

// Mode returns the derived playback mode
func (m *Module) Mode() Mode { return Mode(m.mode.Load()) }

// PlayStyle returns the current end-of-region policy
func (m *Module) PlayStyle() PlayStyle { return m.playStyle }

// SetPlayStyle sets the end-of-region policy; applies from the next trigger
func (m *Module) SetPlayStyle(style PlayStyle) {
	m.playStyle = style
	slog.Debug("play style changed", "style", style)
}

// PolyphonyMode returns the pool's polyphony mode
func (m *Module) PolyphonyMode() voice.PolyphonyMode { return m.pool.Mode() }

// SetPolyphonyMode sets the polyphony mode. Switching to mono does not stop
// voices already playing; the rule applies from the next trigger onward.
func (m *Module) SetPolyphonyMode(mode voice.PolyphonyMode) {
	m.pool.SetPolyphonyMode(mode)
	slog.Debug("polyphony mode changed", "mode", mode)
}

// ActiveVoice returns the module's current voice hint, or nil
func (m *Module) ActiveVoice() *voice.Voice { return m.activeVoice }

// ActiveSlot returns the active-slot hint, -1 when none
func (m *Module) ActiveSlot() int { return m.activeSlot }

// Pause suspends the supervisor and silences the audio render without
// releasing envelopes. Queued events accumulate until Resume.
func (m *Module) Pause() {
	m.paused.Store(true)
	slog.Info("module paused")
}

// Resume lifts a pause
func (m *Module) Resume() {
	m.paused.Store(false)
	slog.Info("module resumed")
}

// IsPaused reports whether the module is paused
func (m *Module) IsPaused() bool { return m.paused.Load() }

// SetRecordHook installs a control-thread callback invoked for every consumed
// or dropped trigger. Used by the diagnostics recorder; never called from the
// audio thread.
func (m *Module) SetRecordHook(hook func(TriggerRecord)) {
	m.onRecord = hook
}

// TriggerIn enqueues a trigger event from the sequencer. Audio-thread safe:
// never blocks, locks or allocates. Returns false when the queue is full and
// the event was dropped.
func (m *Module) TriggerIn(ev trigger.Event) bool {
	return m.queue.TryEnqueue(ev)
}

// QueueDepth returns the approximate number of pending trigger events
func (m *Module) QueueDepth() int { return m.queue.SizeApprox() }

// Stats is a snapshot of the module's diagnostic counters
type Stats struct {
	ActiveVoices  int
	QueueDepth    int
	DroppedEvents uint64
	ErrorCounts   map[string]uint64
	Mode          string
}

// Stats returns a diagnostics snapshot. Control thread only.
func (m *Module) Stats() Stats {
	return Stats{
		ActiveVoices:  m.pool.ActiveCount(),
		QueueDepth:    m.queue.SizeApprox(),
		DroppedEvents: m.queue.Dropped(),
		ErrorCounts:   m.counters.snapshot(),
		Mode:          m.Mode().String(),
	}
}

// Clear stops every voice immediately, drains the queue, clears the
// scheduled stops and removes all slots. Control thread, state mutex held.
func (m *Module) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pool.KillAll()
	drained := m.queue.Drain()
	m.scheduledStops = m.scheduledStops[:0]
	m.slotMemory = make(map[int]float64)
	m.snapshots = make(map[int]paramSnapshot)
	m.activeVoice = nil
	m.activeSlot = -1
	m.slots.Clear()
	m.deriveMode()

	slog.Info("module cleared", "events_drained", drained)
}

// Close shuts the module down: pending events are drained and discarded so
// no trigger outlives the module, and every voice is killed.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drained := m.queue.Drain()
	m.pool.KillAll()
	m.scheduledStops = nil
	m.deriveMode()

	slog.Info("module closed", "events_discarded", drained)
	return nil
}

// deriveMode recomputes the module mode: playing iff any voice is non-free
// or the queue is non-empty
func (m *Module) deriveMode() {
	if m.pool.ActiveCount() > 0 || m.queue.SizeApprox() > 0 {
		m.mode.Store(int32(ModePlaying))
	} else {
		m.mode.Store(int32(ModeIdle))
	}
}

// stopVoice stops a voice and records its captured playhead in the per-slot
// position memory. resetPlayhead additionally zeroes the frozen playhead, as
// ONCE and LOOP stops require.
func (m *Module) stopVoice(v *voice.Voice, resetPlayhead bool) {
	if v == nil || !v.IsActive() {
		return
	}
	v.Stop()
	if resetPlayhead {
		v.SetPlayheadPosition(0)
		delete(m.slotMemory, v.MediaIndex())
	} else {
		m.slotMemory[v.MediaIndex()] = v.PlayheadPosition()
	}
}

// cancelScheduledStops removes pending gate timers for the given voice. A
// pattern loop whose length equals the step period would otherwise let a
// stale stop clobber the retriggered voice.
func (m *Module) cancelScheduledStops(v *voice.Voice) {
	kept := m.scheduledStops[:0]
	for _, s := range m.scheduledStops {
		if s.voice != v {
			kept = append(kept, s)
		}
	}
	m.scheduledStops = kept
}

// scheduleStop registers a gate timer for a voice
func (m *Module) scheduleStop(v *voice.Voice, deadline float64) {
	m.scheduledStops = append(m.scheduledStops, scheduledStop{voice: v, deadline: deadline})
	slog.Debug("gate stop scheduled",
		"media_index", v.MediaIndex(),
		"deadline", deadline)
}

// clampPosition keeps a start position playable: under ONCE a position at the
// very end is pulled back so playback can still emit at least one sample
func clampPosition(pos float64, style PlayStyle) float64 {
	pos = clamp01(pos)
	if style == StyleOnce && pos >= EndPositionThreshold {
		pos = EndPositionThreshold
	}
	return pos
}

// regionAbsolute maps a region-relative position to an absolute one, guarded
// against degenerate regions
func regionAbsolute(rel, regionStart, regionEnd float64) float64 {
	width := regionEnd - regionStart
	if width < MinRegionSize {
		return regionStart
	}
	return regionStart + rel*width
}

// regionRelative maps an absolute position into the region, clamped to [0,1]
func regionRelative(abs, regionStart, regionEnd float64) float64 {
	width := regionEnd - regionStart
	if width < MinRegionSize {
		return 0
	}
	return clamp01((abs - regionStart) / width)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
