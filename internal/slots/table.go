package slots

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"mediapool.click/internal/media"
)

// Table errors
var (
	ErrNoMedia    = errors.New("slot has no loaded media")
	ErrOutOfRange = errors.New("slot index out of range")
)

// Slot is one addressable sample: an optional decoded audio clip plus an
// optional probed video file. Slots own no playback state; voices mint fresh
// decoders from them at start time.
type Slot struct {
	AudioPath string
	VideoPath string

	clip      *media.Clip
	videoInfo media.VideoInfo
	hasAudio  bool
	hasVideo  bool
}

// HasAudio reports whether the slot carries a decoded audio clip
func (s *Slot) HasAudio() bool { return s.hasAudio }

// HasVideo reports whether the slot carries a probed video file
func (s *Slot) HasVideo() bool { return s.hasVideo }

// Clip returns the decoded audio clip, or nil for video-only slots
func (s *Slot) Clip() *media.Clip { return s.clip }

// Duration returns the longer of the audio and video durations in seconds
func (s *Slot) Duration() float64 {
	d := 0.0
	if s.hasAudio {
		d = s.clip.Duration()
	}
	if s.hasVideo && s.videoInfo.Duration > d {
		d = s.videoInfo.Duration
	}
	return d
}

// NewAudioSource mints a fresh stopped playhead over the slot's clip, or nil
// for video-only slots
func (s *Slot) NewAudioSource() media.AudioSource {
	if !s.hasAudio {
		return nil
	}
	return media.NewPlayhead(s.clip)
}

// NewVideoSource mints a fresh stopped video source from the cached probe
// info, or nil for audio-only slots
func (s *Slot) NewVideoSource() media.VideoSource {
	if !s.hasVideo {
		return nil
	}
	return media.NewVideoWithInfo(s.VideoPath, s.videoInfo)
}

// VideoProber resolves a video path to its stream info; injectable so tests
// never spawn ffprobe
type VideoProber func(path string) (media.VideoInfo, error)

// Table owns the loaded media slots. All mutation happens on the control
// thread under the module's state mutex; the table itself is not safe for
// concurrent mutation.
type Table struct {
	fs       afero.Fs
	registry *media.Registry
	probe    VideoProber
	slots    []*Slot
}

// NewTable creates a slot table reading media through the given filesystem
// and decoder registry
func NewTable(fs afero.Fs, registry *media.Registry) *Table {
	slog.Debug("creating new slot table")
	return &Table{
		fs:       fs,
		registry: registry,
		probe:    media.ProbeVideo,
	}
}

// NewTableWithProber creates a table with an injected video prober
func NewTableWithProber(fs afero.Fs, registry *media.Registry, probe VideoProber) *Table {
	t := NewTable(fs, registry)
	t.probe = probe
	return t
}

// Count returns the number of slots
func (t *Table) Count() int {
	return len(t.slots)
}

// Resolve returns the slot at index, or false when the index is out of range
// or the slot has no loaded media
func (t *Table) Resolve(index int) (*Slot, bool) {
	if index < 0 || index >= len(t.slots) {
		return nil, false
	}
	slot := t.slots[index]
	if !slot.hasAudio && !slot.hasVideo {
		return nil, false
	}
	return slot, true
}

// Slots returns the backing slice for read-only iteration
func (t *Table) Slots() []*Slot {
	return t.slots
}

// Add decodes the given paths and appends a slot. Either path may be empty;
// at least one must load or no slot is created and an error is returned.
func (t *Table) Add(audioPath, videoPath string) (int, error) {
	slot := &Slot{}
	var firstErr error

	if audioPath != "" {
		clip, err := t.loadClip(audioPath)
		if err != nil {
			slog.Warn("audio load failed", "path", audioPath, "error", err)
			firstErr = err
		} else {
			slot.AudioPath = audioPath
			slot.clip = clip
			slot.hasAudio = true
		}
	}

	if videoPath != "" {
		info, err := t.probe(videoPath)
		if err != nil {
			slog.Warn("video probe failed", "path", videoPath, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			slot.VideoPath = videoPath
			slot.videoInfo = info
			slot.hasVideo = true
		}
	}

	if !slot.hasAudio && !slot.hasVideo {
		if firstErr == nil {
			firstErr = ErrNoMedia
		}
		return -1, fmt.Errorf("no media loaded for slot: %w", firstErr)
	}

	t.slots = append(t.slots, slot)
	index := len(t.slots) - 1

	slog.Info("slot added",
		"index", index,
		"audio_path", slot.AudioPath,
		"video_path", slot.VideoPath,
		"has_audio", slot.hasAudio,
		"has_video", slot.hasVideo)

	return index, nil
}

// Remove deletes the slot at index. Later slots shift down by one; active
// voices keep their minted decoders alive regardless.
func (t *Table) Remove(index int) error {
	if index < 0 || index >= len(t.slots) {
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}

	removed := t.slots[index]
	t.slots = append(t.slots[:index], t.slots[index+1:]...)

	slog.Info("slot removed",
		"index", index,
		"audio_path", removed.AudioPath,
		"video_path", removed.VideoPath,
		"remaining", len(t.slots))

	return nil
}

// Clear drops every slot
func (t *Table) Clear() {
	slog.Info("slot table cleared", "removed", len(t.slots))
	t.slots = nil
}

// BatchResult records the outcome of one path in an AddBatch call
type BatchResult struct {
	Index     int // -1 when the path failed to load
	AudioPath string
	VideoPath string
	Err       error
}

// AddBatch imports a set of paths, pairing audio and video files that share a
// filename stem (case-sensitive) into one slot. Unpaired paths become
// single-stream slots. A failure to open one file never aborts the batch.
func (t *Table) AddBatch(paths []string) []BatchResult {
	type pairing struct {
		audio string
		video string
	}

	// Group by filename stem, preserving first-seen order. A second file of
	// the same kind under an occupied stem gets its own unpaired slot.
	var order []*pairing
	byStem := make(map[string]*pairing)
	for _, path := range paths {
		stem := stemOf(path)
		p := byStem[stem]
		if p == nil {
			p = &pairing{}
			byStem[stem] = p
			order = append(order, p)
		}
		if t.isAudioPath(path) {
			if p.audio == "" {
				p.audio = path
				continue
			}
		} else if p.video == "" {
			p.video = path
			continue
		}
		extra := &pairing{}
		if t.isAudioPath(path) {
			extra.audio = path
		} else {
			extra.video = path
		}
		order = append(order, extra)
	}

	var results []BatchResult
	for _, p := range order {
		if p.audio == "" && p.video == "" {
			continue
		}

		index, err := t.Add(p.audio, p.video)
		results = append(results, BatchResult{
			Index:     index,
			AudioPath: p.audio,
			VideoPath: p.video,
			Err:       err,
		})
	}

	slog.Info("batch import completed",
		"paths", len(paths),
		"slots_created", t.Count())

	return results
}

// loadClip opens and decodes an audio file through the registry
func (t *Table) loadClip(path string) (*media.Clip, error) {
	file, err := t.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	clip, err := t.registry.DecodeFile(path, file)
	if err != nil {
		return nil, err
	}
	return clip, nil
}

// isAudioPath reports whether a path looks like an audio file the registry
// can decode; everything else is treated as video
func (t *Table) isAudioPath(path string) bool {
	return t.registry.DetectFormat(path) != nil
}

// stemOf returns the filename without directory or extension
func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
