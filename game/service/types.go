package service

import (
	"time"

	"github.com/wricardo/podium-rally/game/agent"
	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/track"
)

// Seat kinds accepted by CreateRace
const (
	KindHeuristic = "heuristic"
	KindManual    = "manual"
	KindRemote    = "remote"
)

// EntrantSpec describes one car in a CreateRace request
type EntrantSpec struct {
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"` // heuristic (default), manual or remote
	URL      string `json:"url,omitempty"`  // websocket address of a remote peer
	Fallback bool   `json:"fallback,omitempty"`
}

// CreateRaceRequest holds everything needed to set up a race
type CreateRaceRequest struct {
	TrackID       string        `json:"track_id,omitempty"`
	Entrants      []EntrantSpec `json:"entrants"`
	Laps          int           `json:"laps,omitempty"`
	Seed          *uint64       `json:"seed,omitempty"`
	MaxHitpoints  int           `json:"max_hitpoints,omitempty"`
	BaseTimeoutMs int           `json:"base_timeout_ms,omitempty"`
	LeewayMs      int           `json:"leeway_ms,omitempty"`
	AutoStart     bool          `json:"auto_start,omitempty"`
}

// RaceInfo provides information about a race session
type RaceInfo struct {
	ID             string              `json:"id"`
	TrackID        string              `json:"track_id"`
	Status         RaceStatus          `json:"status"`
	Error          string              `json:"error,omitempty"`
	Seats          []SeatInfo          `json:"seats"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
	Snapshot       engine.RaceSnapshot `json:"snapshot"`
	Standings      []engine.Standing   `json:"standings,omitempty"`
}

// SeatInfo describes who drives a car
type SeatInfo struct {
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	URL       string `json:"url,omitempty"`
	Connected bool   `json:"connected"`
}

// DecisionInfo is the pending question of a manual seat
type DecisionInfo struct {
	RaceID   string          `json:"race_id"`
	Seat     int             `json:"seat"`
	Pending  bool            `json:"pending"`
	Decision *agent.Decision `json:"decision,omitempty"`
}

// EventOptions configures event log retrieval
type EventOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// EventsResponse contains a page of race events
type EventsResponse struct {
	Events      []engine.Event `json:"events"`
	TotalEvents int            `json:"total_events"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	TotalPages  int            `json:"total_pages"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
}

// TrackInfo provides information about a track file
type TrackInfo struct {
	Filename    string  `json:"filename"`
	TrackID     string  `json:"track_id"` // The identifier to use for race creation
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Laps        int     `json:"laps"`
	Nodes       int     `json:"nodes"`
	Lanes       int     `json:"lanes"`
	Curves      int     `json:"curves"`
	GridSize    int     `json:"grid_size"`
	HasPit      bool    `json:"has_pit"`
	LapLength   float64 `json:"lap_length"`
}

// TrackDetail is a built track laid out for clients that draw it
type TrackDetail struct {
	TrackID  string             `json:"track_id"`
	Summary  track.Summary      `json:"summary"`
	Grid     []int              `json:"grid"`
	Nodes    []*track.Node      `json:"nodes"`
	Lanes    []*track.Lane      `json:"lanes"`
	Areas    []*track.CurveArea `json:"areas"`
	Pit      *track.PitLane     `json:"pit,omitempty"`
	Adjacent map[int][]int      `json:"adjacent"`
}

// NewTrackInfo summarises a built track
func NewTrackInfo(filename, trackID string, t *track.Track) *TrackInfo {
	sum := t.Summary()
	return &TrackInfo{
		Filename:    filename,
		TrackID:     trackID,
		Name:        sum.Name,
		Description: sum.Description,
		Laps:        sum.Laps,
		Nodes:       sum.Nodes,
		Lanes:       sum.Lanes,
		Curves:      sum.Curves,
		GridSize:    sum.GridSize,
		HasPit:      sum.HasPit,
		LapLength:   sum.LapLength,
	}
}

// NewTrackDetail lays out every part of t
func NewTrackDetail(trackID string, t *track.Track) *TrackDetail {
	d := &TrackDetail{
		TrackID:  trackID,
		Summary:  t.Summary(),
		Grid:     t.Grid(),
		Lanes:    t.Lanes(),
		Areas:    t.Areas(),
		Pit:      t.PitLane(),
		Adjacent: make(map[int][]int),
	}
	for _, id := range t.NodeIDs() {
		n, _ := t.Node(id)
		d.Nodes = append(d.Nodes, n)
		if ns := t.Neighbours(id); len(ns) > 0 {
			d.Adjacent[id] = ns
		}
	}
	return d
}
