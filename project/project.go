// Package project stores timelines as timestamped JSON saves grouped in
// project folders under the config directory.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-groove/config"
	"go-groove/sequencer"
)

const (
	timestampLayout = "2006-01-02_15-04-05"
	fileVersion     = 1
)

// ErrNoSaves is returned when loading the latest save of an empty project.
var ErrNoSaves = errors.New("project has no saves")

// File is the on-disk form of one save.
type File struct {
	Version  int                `json:"version"`
	BPM      float64            `json:"bpm,omitempty"`
	Timeline sequencer.Snapshot `json:"timeline"`
}

// SaveInfo describes a saved file for listing.
type SaveInfo struct {
	Filename  string
	Name      string // label after the timestamp, empty if unnamed
	Timestamp time.Time
}

// Store is a directory of projects.
type Store struct {
	Root string
	now  func() time.Time
}

// DefaultStore returns the store under ~/.config/go-groove/projects.
func DefaultStore() (*Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStore(filepath.Join(dir, "projects")), nil
}

func NewStore(root string) *Store {
	return &Store{Root: root, now: time.Now}
}

// dir keeps every project a direct child of Root.
func (s *Store) dir(project string) string {
	name := sanitizeFilename(project)
	if name == "" || name == "." || name == ".." {
		name = "untitled"
	}
	return filepath.Join(s.Root, name)
}

// path names a save inside its project folder.
func (s *Store) path(project, filename string) string {
	return filepath.Join(s.dir(project), filepath.Base(filename))
}

// Projects returns all project folder names, sorted.
func (s *Store) Projects() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var projects []string
	for _, entry := range entries {
		if entry.IsDir() {
			projects = append(projects, entry.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// Saves returns the timestamped saves of a project, newest first.
func (s *Store) Saves(project string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.dir(project))
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}
	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, ok := parseFilename(entry.Name()); ok {
			saves = append(saves, info)
		}
	}
	sort.Slice(saves, func(i, j int) bool {
		if saves[i].Timestamp.Equal(saves[j].Timestamp) {
			return saves[i].Filename > saves[j].Filename
		}
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// parseFilename splits 2006-01-02_15-04-05[_name].json.
func parseFilename(filename string) (SaveInfo, bool) {
	base, ok := strings.CutSuffix(filename, ".json")
	if !ok || len(base) < len(timestampLayout) {
		return SaveInfo{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, base[:len(timestampLayout)], time.Local)
	if err != nil {
		return SaveInfo{}, false
	}
	info := SaveInfo{Filename: filename, Timestamp: ts}
	if rest := base[len(timestampLayout):]; rest != "" {
		label, ok := strings.CutPrefix(rest, "_")
		if !ok {
			return SaveInfo{}, false
		}
		info.Name = label
	}
	return info, true
}

// Save writes a new timestamped save and returns its filename. Project
// names are made filename safe; an empty one saves to "untitled".
func (s *Store) Save(project, label string, tl *sequencer.Timeline, bpm float64) (string, error) {
	dir := s.dir(project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create project %s: %w", project, err)
	}
	data, err := json.MarshalIndent(File{Version: fileVersion, BPM: bpm, Timeline: tl.Snapshot()}, "", "  ")
	if err != nil {
		return "", err
	}
	filename := s.now().Format(timestampLayout)
	if label = sanitizeFilename(label); label != "" {
		filename += "_" + label
	}
	filename += ".json"
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", fmt.Errorf("cannot save project %s: %w", project, err)
	}
	return filename, nil
}

// Load reads a save of project, the newest one when filename is empty.
func (s *Store) Load(project, filename string) (*sequencer.Timeline, File, sequencer.Normalization, error) {
	if filename == "" {
		saves, err := s.Saves(project)
		if err != nil {
			return nil, File{}, sequencer.Normalization{}, err
		}
		if len(saves) == 0 {
			return nil, File{}, sequencer.Normalization{}, fmt.Errorf("%s: %w", project, ErrNoSaves)
		}
		filename = saves[0].Filename
	}
	return ReadFile(s.path(project, filename))
}

// ReadFile loads a save file from any path. A file holding a bare timeline
// snapshot is accepted too.
func ReadFile(path string) (*sequencer.Timeline, File, sequencer.Normalization, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, File{}, sequencer.Normalization{}, err
	}
	f, err := decode(data)
	if err != nil {
		return nil, File{}, sequencer.Normalization{}, fmt.Errorf("could not parse %s: %w", path, err)
	}
	tl, norm, err := sequencer.FromSnapshot(f.Timeline)
	if err != nil {
		return nil, File{}, norm, fmt.Errorf("%s: %w", path, err)
	}
	return tl, f, norm, nil
}

func decode(data []byte) (File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	if f.Timeline.TimeSignature != "" {
		return f, nil
	}
	var snap sequencer.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return File{}, err
	}
	return File{Version: fileVersion, Timeline: snap}, nil
}

// Delete removes one save.
func (s *Store) Delete(project, filename string) error {
	return os.Remove(s.path(project, filename))
}

// Rename changes the label of a save and keeps its timestamp.
func (s *Store) Rename(project, filename, label string) (string, error) {
	info, ok := parseFilename(filename)
	if !ok {
		return "", fmt.Errorf("invalid save filename %q", filename)
	}
	renamed := info.Timestamp.Format(timestampLayout)
	if label = sanitizeFilename(label); label != "" {
		renamed += "_" + label
	}
	renamed += ".json"
	if err := os.Rename(s.path(project, filename), s.path(project, renamed)); err != nil {
		return "", err
	}
	return renamed, nil
}

var unsafeChars = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
)

func sanitizeFilename(name string) string {
	return unsafeChars.Replace(strings.TrimSpace(name))
}
