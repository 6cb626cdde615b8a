package bank

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// audioExtensions and videoExtensions classify files during directory scans
var (
	audioExtensions = map[string]bool{
		".wav": true, ".wave": true, ".mp3": true, ".mpeg": true,
		".aiff": true, ".aif": true,
	}
	videoExtensions = map[string]bool{
		".mov": true, ".mp4": true, ".avi": true, ".mkv": true, ".webm": true,
	}
)

// Entry is one sample of a bank: an audio path, a video path, or both
type Entry struct {
	Audio string `json:"audio,omitempty"`
	Video string `json:"video,omitempty"`
}

// Bank is an ordered list of samples to load into the slot table
type Bank struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"samples"`
}

// Paths flattens the bank into the path list the slot table imports
func (b *Bank) Paths() []string {
	var paths []string
	for _, e := range b.Entries {
		if e.Audio != "" {
			paths = append(paths, e.Audio)
		}
		if e.Video != "" {
			paths = append(paths, e.Video)
		}
	}
	return paths
}

// LoadJSON reads a bank definition file. Relative entry paths are resolved
// against the bank file's directory.
func LoadJSON(fs afero.Fs, path string) (*Bank, error) {
	slog.Debug("loading bank file", "path", path)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		slog.Error("failed to read bank file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read bank file: %w", err)
	}

	var bank Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		slog.Error("failed to parse bank file", "path", path, "error", err)
		return nil, fmt.Errorf("failed to parse bank file: %w", err)
	}

	if bank.Name == "" {
		bank.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	baseDir := filepath.Dir(path)
	for i := range bank.Entries {
		if bank.Entries[i].Audio != "" && !filepath.IsAbs(bank.Entries[i].Audio) {
			bank.Entries[i].Audio = filepath.Join(baseDir, bank.Entries[i].Audio)
		}
		if bank.Entries[i].Video != "" && !filepath.IsAbs(bank.Entries[i].Video) {
			bank.Entries[i].Video = filepath.Join(baseDir, bank.Entries[i].Video)
		}
	}

	slog.Info("bank loaded",
		"name", bank.Name,
		"samples", len(bank.Entries))
	return &bank, nil
}

// LoadDirectory scans a directory for media files and pairs audio and video
// sharing a filename stem (case-sensitive) into entries, sorted by stem for
// stable slot ordering.
func LoadDirectory(fs afero.Fs, dir string) (*Bank, error) {
	slog.Debug("scanning bank directory", "dir", dir)

	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		slog.Error("failed to read bank directory", "dir", dir, "error", err)
		return nil, fmt.Errorf("failed to read bank directory: %w", err)
	}

	type pairing struct {
		audio string
		video string
	}
	pairs := make(map[string]*pairing)
	var stems []string

	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(info.Name()))
		isAudio := audioExtensions[ext]
		isVideo := videoExtensions[ext]
		if !isAudio && !isVideo {
			continue
		}

		stem := strings.TrimSuffix(info.Name(), filepath.Ext(info.Name()))
		p, ok := pairs[stem]
		if !ok {
			p = &pairing{}
			pairs[stem] = p
			stems = append(stems, stem)
		}
		full := filepath.Join(dir, info.Name())
		if isAudio && p.audio == "" {
			p.audio = full
		} else if isVideo && p.video == "" {
			p.video = full
		}
	}

	sort.Strings(stems)

	bank := &Bank{Name: filepath.Base(dir)}
	for _, stem := range stems {
		p := pairs[stem]
		bank.Entries = append(bank.Entries, Entry{Audio: p.audio, Video: p.video})
	}

	slog.Info("bank directory scanned",
		"dir", dir,
		"samples", len(bank.Entries))
	return bank, nil
}

// Load resolves a bank reference: a .json file loads as a definition file,
// a directory loads as a scan
func Load(fs afero.Fs, ref string) (*Bank, error) {
	if strings.HasSuffix(strings.ToLower(ref), ".json") {
		return LoadJSON(fs, ref)
	}

	isDir, err := afero.IsDir(fs, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to stat bank reference: %w", err)
	}
	if !isDir {
		return nil, fmt.Errorf("bank reference is neither a .json file nor a directory: %s", ref)
	}
	return LoadDirectory(fs, ref)
}

// List returns the bank definition files and sample directories found under
// the given search paths
func List(fs afero.Fs, searchPaths []string) []string {
	var found []string
	for _, dir := range searchPaths {
		infos, err := afero.ReadDir(fs, dir)
		if err != nil {
			slog.Debug("skipping unreadable bank search path", "dir", dir, "error", err)
			continue
		}
		for _, info := range infos {
			if info.IsDir() || strings.HasSuffix(strings.ToLower(info.Name()), ".json") {
				found = append(found, filepath.Join(dir, info.Name()))
			}
		}
	}
	return found
}
