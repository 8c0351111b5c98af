// Package config provides the track catalogue for Podium Rally.
//
// The config package handles:
//   - Loading track files (YAML or JSON) from a directory
//   - Building and caching validated tracks
//   - Default track selection
//   - Track discovery and listing
//
// Track Files:
//
// Tracks live in the tracks directory as name.yaml, name.yml or name.json.
// The file name without extension is the track id used when creating races.
// Each file lists nodes with their type, lane and children, the starting
// grid, the lap count and optionally a pit lane; see package track for the
// format.
//
// Default Track:
//
// The default is "oval" when such a file exists and builds, else the first
// track that builds. An empty directory falls back to a generated oval with
// a pit lane so the server can always start a race.
//
// Usage:
//
//	manager, err := config.NewManager("tracks")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Load a specific track
//	tr, err := manager.LoadTrack("monza")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// List available tracks
//	tracks, err := manager.ListTracks()
//
// Broken files are skipped by ListTracks and reported by LoadTrack with an
// error wrapping track.ErrInvalidTrack.
package config
