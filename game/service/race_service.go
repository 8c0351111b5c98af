package service

import (
	"context"

	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/track"
)

// RaceService defines all race-related operations
type RaceService interface {
	// Race Management
	CreateRace(ctx context.Context, req CreateRaceRequest) (*RaceInfo, error)
	GetRace(ctx context.Context, raceID string) (*RaceInfo, error)
	ListRaces(ctx context.Context) ([]*RaceInfo, error)
	DeleteRace(ctx context.Context, raceID string) error
	StartRace(ctx context.Context, raceID string) (*RaceInfo, error)

	// Race State
	GetState(ctx context.Context, raceID string) (*engine.RaceSnapshot, error)
	GetStandings(ctx context.Context, raceID string) ([]engine.Standing, error)
	GetEvents(ctx context.Context, raceID string, opts EventOptions) (*EventsResponse, error)

	// Manual Seats
	PendingDecision(ctx context.Context, raceID string, seat int) (*DecisionInfo, error)
	SubmitGear(ctx context.Context, raceID string, seat, gear int) error
	SubmitMove(ctx context.Context, raceID string, seat, index int) error

	// Tracks
	ListTracks(ctx context.Context) ([]*TrackInfo, error)
	GetTrack(ctx context.Context, trackID string) (*TrackDetail, error)
}

// SessionManager defines race session storage operations
type SessionManager interface {
	Create(id string, setup *RaceSetup) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// TrackCatalog handles track loading
type TrackCatalog interface {
	LoadTrack(id string) (*track.Track, error)
	ListTracks() ([]*TrackInfo, error)
	DefaultTrackID() string
}

// Broadcaster pushes race traffic to spectators
type Broadcaster interface {
	BroadcastRaceEvent(raceID string, e engine.Event)
	BroadcastEvent(raceID string, event string, data interface{})
}
