package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/podium-rally/game/service"
	"github.com/wricardo/podium-rally/game/track"
)

// DefaultTrackID is the track used when a race names none
const DefaultTrackID = "oval"

// Manager handles track file loading and caching
type Manager struct {
	trackDir     string
	defaultTrack string
	tracks       map[string]*track.Track
	mu           sync.RWMutex
}

// NewManager creates a track catalogue over the files in trackDir
func NewManager(trackDir string) (*Manager, error) {
	// Ensure track directory exists
	if _, err := os.Stat(trackDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("track directory does not exist: %s", trackDir)
	}

	m := &Manager{
		trackDir: trackDir,
		tracks:   make(map[string]*track.Track),
	}

	if err := m.loadDefaultTrack(); err != nil {
		return nil, fmt.Errorf("failed to load default track: %w", err)
	}

	return m, nil
}

// LoadTrack loads and builds a track by id. The id is the file name
// without its extension.
func (m *Manager) LoadTrack(id string) (*track.Track, error) {
	m.mu.RLock()
	// Check cache first
	if t, exists := m.tracks[id]; exists {
		m.mu.RUnlock()
		return t, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(id)
}

func (m *Manager) loadLocked(id string) (*track.Track, error) {
	// Double-check after acquiring write lock
	if t, exists := m.tracks[id]; exists {
		return t, nil
	}

	filename, err := m.findFile(id)
	if err != nil {
		return nil, err
	}

	t, err := track.LoadFile(filepath.Join(m.trackDir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to load track %s: %w", id, err)
	}

	m.tracks[id] = t
	return t, nil
}

// findFile resolves a track id to a file in the track directory
func (m *Manager) findFile(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q", track.ErrTrackNotFound, id)
	}
	if track.IsTrackFile(id) {
		if _, err := os.Stat(filepath.Join(m.trackDir, id)); err == nil {
			return id, nil
		}
	}
	for _, ext := range track.Extensions {
		filename := id + ext
		if _, err := os.Stat(filepath.Join(m.trackDir, filename)); err == nil {
			return filename, nil
		}
	}
	return "", fmt.Errorf("%w: %s", track.ErrTrackNotFound, id)
}

// ListTracks returns information about every track that builds
func (m *Manager) ListTracks() ([]*service.TrackInfo, error) {
	entries, err := os.ReadDir(m.trackDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read track directory: %w", err)
	}

	var tracks []*service.TrackInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !track.IsTrackFile(entry.Name()) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if seen[id] {
			continue
		}

		t, err := m.LoadTrack(id)
		if err != nil {
			// Skip invalid tracks
			continue
		}
		seen[id] = true
		tracks = append(tracks, service.NewTrackInfo(entry.Name(), id, t))
	}

	// The generated default is listed when no file shadows it
	m.mu.RLock()
	if t, ok := m.tracks[DefaultTrackID]; ok && !seen[DefaultTrackID] {
		tracks = append(tracks, service.NewTrackInfo("", DefaultTrackID, t))
	}
	m.mu.RUnlock()

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].TrackID < tracks[j].TrackID })
	return tracks, nil
}

// DefaultTrackID returns the id of the default track
func (m *Manager) DefaultTrackID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultTrack
}

// GetDefault returns the default track
func (m *Manager) GetDefault() *track.Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracks[m.defaultTrack]
}

// SetDefault sets the default track by id
func (m *Manager) SetDefault(id string) error {
	if _, err := m.LoadTrack(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultTrack = id
	return nil
}

// RefreshCache drops every cached track and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.tracks = make(map[string]*track.Track)
	m.mu.Unlock()

	return m.loadDefaultTrack()
}

// SaveTrack validates data and writes it to the track directory. The
// format follows the file name's extension, YAML when it has none.
func (m *Manager) SaveTrack(name string, data *track.Data) error {
	t, err := track.Build(data)
	if err != nil {
		return err
	}

	filename := name
	if !track.IsTrackFile(filename) {
		filename = name + ".yaml"
	}
	raw, err := track.Marshal(data, filepath.Ext(filename))
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.trackDir, filename), raw, 0644); err != nil {
		return fmt.Errorf("failed to write track file: %w", err)
	}

	id := strings.TrimSuffix(filename, filepath.Ext(filename))
	m.mu.Lock()
	m.tracks[id] = t
	m.mu.Unlock()
	return nil
}

// loadDefaultTrack picks oval.* if present, else the first track that
// builds, else a generated oval
func (m *Manager) loadDefaultTrack() error {
	if _, err := m.LoadTrack(DefaultTrackID); err == nil {
		m.setDefault(DefaultTrackID)
		return nil
	} else if !errors.Is(err, track.ErrTrackNotFound) {
		log.Printf("Default track %s is unusable: %v", DefaultTrackID, err)
	}

	entries, err := os.ReadDir(m.trackDir)
	if err != nil {
		return fmt.Errorf("failed to read track directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !track.IsTrackFile(entry.Name()) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if _, err := m.LoadTrack(id); err == nil {
			m.setDefault(id)
			return nil
		}
	}

	t, err := m.createMinimalTrack()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.tracks[DefaultTrackID] = t
	m.defaultTrack = DefaultTrackID
	m.mu.Unlock()
	return nil
}

func (m *Manager) setDefault(id string) {
	m.mu.Lock()
	m.defaultTrack = id
	m.mu.Unlock()
}

// DefaultOvalSpec is the generated oval served when no track file is usable:
// two slow corners and a pit lane.
func DefaultOvalSpec() track.OvalSpec {
	return track.OvalSpec{
		Name:        "Oval",
		Description: "Generated oval with two slow corners and a pit lane",
		Laps:        3,
		Sections: []track.Section{
			{Type: track.Straight, Rows: 8},
			{Type: track.Curve2, Rows: 3},
			{Type: track.Straight, Rows: 6},
			{Type: track.Curve2, Rows: 3},
			{Type: track.Straight, Rows: 4},
		},
		GridRows:  3,
		PitLength: 4,
		GarageAt:  1,
	}
}

func (m *Manager) createMinimalTrack() (*track.Track, error) {
	data, err := track.Oval(DefaultOvalSpec())
	if err != nil {
		return nil, err
	}
	return track.Build(data)
}
