package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go-zctrl/debug"
	"go-zctrl/param"
)

const timestampLayout = "2006-01-02_15-04-05"

// SaveInfo represents a saved snapshot file (for listing)
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// File is the on-disk snapshot format
type File struct {
	Saved  time.Time              `json:"saved"`
	States map[string]param.State `json:"states"`
}

// Store keeps timestamped snapshots in one directory
type Store struct {
	Dir string
	now func() time.Time
}

// DefaultDir returns ~/.config/go-zctrl/snapshots
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-zctrl", "snapshots"), nil
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir, now: time.Now}
}

// Capture collects controller states. With full false only controllers
// away from their defaults (or with flags set) are kept.
func Capture(ctrls []*param.Controller, full bool) map[string]param.State {
	states := make(map[string]param.State, len(ctrls))
	for _, c := range ctrls {
		s := c.State(full)
		if !full && s.Empty() {
			continue
		}
		states[c.Symbol()] = s
	}
	return states
}

// Apply restores states onto controllers by symbol and returns how many
// were restored. Symbols with no controller are skipped.
func Apply(ctrls []*param.Controller, states map[string]param.State, announce bool) int {
	bySymbol := make(map[string]*param.Controller, len(ctrls))
	for _, c := range ctrls {
		bySymbol[c.Symbol()] = c
	}
	n := 0
	for sym, s := range states {
		c, ok := bySymbol[sym]
		if !ok {
			debug.Warn("snapshot", "no parameter %q, skipping", sym)
			continue
		}
		c.Restore(s, announce)
		n++
	}
	return n
}

// Save writes states with a timestamped filename and optional name
func (s *Store) Save(name string, states map[string]param.State) (SaveInfo, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return SaveInfo{}, err
	}

	now := s.now()
	data, err := json.MarshalIndent(File{Saved: now, States: states}, "", "  ")
	if err != nil {
		return SaveInfo{}, err
	}

	filename := now.Format(timestampLayout)
	if name != "" {
		filename += "_" + sanitizeFilename(name)
	}
	filename += ".json"

	if err := os.WriteFile(filepath.Join(s.Dir, filename), data, 0644); err != nil {
		return SaveInfo{}, err
	}
	debug.Log("snapshot", "saved %d states to %s", len(states), filename)

	return SaveInfo{Filename: filename, Name: sanitizeFilename(name), Timestamp: now.Truncate(time.Second)}, nil
}

// List returns timestamped saves, newest first
func (s *Store) List() ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.Dir)
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

	// Sort by timestamp, newest first
	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})

	return saves, nil
}

// Load reads a save (or the most recent if filename is empty)
func (s *Store) Load(filename string) (map[string]param.State, error) {
	if filename == "" {
		saves, err := s.List()
		if err != nil {
			return nil, err
		}
		if len(saves) == 0 {
			return nil, fmt.Errorf("no snapshots in %s", s.Dir)
		}
		filename = saves[0].Filename // saves are sorted newest first
	}

	data, err := os.ReadFile(filepath.Join(s.Dir, filename))
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if f.States == nil {
		f.States = map[string]param.State{}
	}
	return f.States, nil
}

// Delete removes a save file
func (s *Store) Delete(filename string) error {
	if _, ok := parseFilename(filename); !ok || filepath.Base(filename) != filename {
		return fmt.Errorf("invalid snapshot filename %q", filename)
	}
	return os.Remove(filepath.Join(s.Dir, filename))
}

// Rename changes the name part of a save, keeping its timestamp
func (s *Store) Rename(oldFilename, newName string) (string, error) {
	info, ok := parseFilename(oldFilename)
	if !ok || filepath.Base(oldFilename) != oldFilename {
		return "", fmt.Errorf("invalid snapshot filename %q", oldFilename)
	}

	newFilename := info.Timestamp.Format(timestampLayout)
	if newName != "" {
		newFilename += "_" + sanitizeFilename(newName)
	}
	newFilename += ".json"

	oldPath := filepath.Join(s.Dir, oldFilename)
	newPath := filepath.Join(s.Dir, newFilename)
	return newFilename, os.Rename(oldPath, newPath)
}

// parseFilename splits 2024-01-15_14-30-00[_name].json
func parseFilename(filename string) (SaveInfo, bool) {
	if !strings.HasSuffix(filename, ".json") {
		return SaveInfo{}, false
	}
	baseName := strings.TrimSuffix(filename, ".json")
	if len(baseName) < len(timestampLayout) {
		return SaveInfo{}, false
	}
	ts, err := time.ParseInLocation(timestampLayout, baseName[:len(timestampLayout)], time.Local)
	if err != nil {
		return SaveInfo{}, false
	}

	name := ""
	if rest := baseName[len(timestampLayout):]; len(rest) > 1 && rest[0] == '_' {
		name = rest[1:]
	}
	return SaveInfo{Filename: filename, Name: name, Timestamp: ts}, true
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		" ", "-", "/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	)
	return r.Replace(name)
}
