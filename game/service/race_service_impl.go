package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/podium-rally/game/agent"
	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/track"
)

// raceServiceImpl implements the RaceService interface
type raceServiceImpl struct {
	sessions    SessionManager
	tracks      TrackCatalog
	broadcaster Broadcaster
	mu          sync.RWMutex
}

// NewRaceService creates a new race service instance. broadcaster may be
// nil when nobody watches.
func NewRaceService(sessions SessionManager, tracks TrackCatalog, broadcaster Broadcaster) RaceService {
	return &raceServiceImpl{
		sessions:    sessions,
		tracks:      tracks,
		broadcaster: broadcaster,
	}
}

// CreateRace loads the track, connects the drivers and sets up the race
func (s *raceServiceImpl) CreateRace(ctx context.Context, req CreateRaceRequest) (*RaceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trackID := req.TrackID
	if trackID == "" {
		trackID = s.tracks.DefaultTrackID()
	}
	tr, err := s.tracks.LoadTrack(trackID)
	if err != nil {
		// Provide helpful error message with available options
		if errors.Is(err, track.ErrTrackNotFound) {
			available, listErr := s.tracks.ListTracks()
			if listErr == nil && len(available) > 0 {
				var ids []string
				for _, t := range available {
					ids = append(ids, t.TrackID)
				}
				return nil, fmt.Errorf("%w: '%s'. Available tracks: %v", track.ErrTrackNotFound, trackID, ids)
			}
			return nil, fmt.Errorf("%w: '%s'. Use /api/tracks to list available tracks", track.ErrTrackNotFound, trackID)
		}
		return nil, fmt.Errorf("failed to load track %s: %w", trackID, err)
	}

	if len(req.Entrants) == 0 {
		return nil, engine.ErrNoPlayers
	}
	cfg, err := raceConfig(req)
	if err != nil {
		return nil, err
	}

	seats, err := buildSeats(ctx, req.Entrants)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create("", &RaceSetup{TrackID: trackID, Track: tr, Seats: seats, Config: cfg})
	if err != nil {
		for _, seat := range seats {
			if seat.Remote != nil {
				seat.Remote.Close()
			}
		}
		return nil, fmt.Errorf("failed to create race: %w", err)
	}
	s.wire(sess)

	log.Printf("Race %s created on track %s with %d cars", sess.ID, trackID, len(seats))
	if req.AutoStart {
		if err := sess.Start(); err != nil {
			return nil, err
		}
	}
	return sess.Info(), nil
}

// raceConfig turns the request's rule overrides into an engine config
func raceConfig(req CreateRaceRequest) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.Laps = req.Laps
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	} else {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if req.MaxHitpoints > 0 {
		cfg.MaxHitpoints = req.MaxHitpoints
	}
	if req.BaseTimeoutMs > 0 {
		cfg.BaseTimeout = time.Duration(req.BaseTimeoutMs) * time.Millisecond
	}
	if req.LeewayMs > 0 {
		cfg.Leeway = time.Duration(req.LeewayMs) * time.Millisecond
	}
	cfg.Logger = log.Default()
	if err := engine.ValidateConfig(cfg); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// buildSeats creates an agent per entrant. Remote peers are dialled here;
// if one fails, the ones already connected are closed again.
func buildSeats(ctx context.Context, specs []EntrantSpec) ([]*Seat, error) {
	var seats []*Seat
	fail := func(err error) ([]*Seat, error) {
		for _, seat := range seats {
			if seat.Remote != nil {
				seat.Remote.Close()
			}
		}
		return nil, err
	}

	for i, spec := range specs {
		seat := &Seat{SeatInfo: SeatInfo{Seat: i, Name: spec.Name, Kind: spec.Kind, URL: spec.URL}}
		if seat.Kind == "" {
			seat.Kind = KindHeuristic
		}

		switch seat.Kind {
		case KindHeuristic:
			seat.Agent = agent.NewHeuristic(spec.Name)
		case KindManual:
			seat.Manual = agent.NewManual(spec.Name, nil)
			seat.Agent = seat.Manual
		case KindRemote:
			if spec.URL == "" {
				return fail(fmt.Errorf("entrant %d: remote driver needs a url", i))
			}
			opts := []agent.RemoteOption{agent.WithLogger(log.Default())}
			if spec.Fallback {
				opts = append(opts, agent.WithFallback(agent.NewHeuristic()))
			}
			remote, err := agent.DialRemote(ctx, spec.URL, opts...)
			if err != nil {
				return fail(fmt.Errorf("entrant %d: %w", i, err))
			}
			seat.Remote = remote
			seat.Agent = remote
		default:
			return fail(fmt.Errorf("entrant %d: unknown kind %q (use %s, %s or %s)", i, spec.Kind, KindHeuristic, KindManual, KindRemote))
		}
		seats = append(seats, seat)
	}
	return seats, nil
}

// wire forwards race events and manual decisions to spectators
func (s *raceServiceImpl) wire(sess *Session) {
	if s.broadcaster == nil {
		return
	}
	id := sess.ID
	sess.Subscribe(func(e engine.Event) {
		s.broadcaster.BroadcastRaceEvent(id, e)
	})
	for _, seat := range sess.Seats {
		if seat.Manual == nil {
			continue
		}
		n := seat.Seat
		seat.Manual.OnAsk(func(d agent.Decision) {
			s.broadcaster.BroadcastEvent(id, "decision_pending", &DecisionInfo{RaceID: id, Seat: n, Pending: true, Decision: &d})
		})
	}
}

// GetRace retrieves race information
func (s *raceServiceImpl) GetRace(ctx context.Context, raceID string) (*RaceInfo, error) {
	sess, err := s.session(raceID)
	if err != nil {
		return nil, err
	}
	return sess.Info(), nil
}

// ListRaces returns all races, newest first
func (s *raceServiceImpl) ListRaces(ctx context.Context) ([]*RaceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	result := make([]*RaceInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sess.Info())
	}
	return result, nil
}

// DeleteRace stops a race and forgets it
func (s *raceServiceImpl) DeleteRace(ctx context.Context, raceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(raceID)
	if err != nil {
		return fmt.Errorf("%w: %s (%w)", ErrRaceNotFound, raceID, err)
	}
	sess.Stop()
	return s.sessions.Delete(raceID)
}

// StartRace starts the race on its own goroutine
func (s *raceServiceImpl) StartRace(ctx context.Context, raceID string) (*RaceInfo, error) {
	sess, err := s.session(raceID)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(); err != nil {
		return nil, err
	}
	log.Printf("Race %s started", raceID)
	return sess.Info(), nil
}

// GetState returns a snapshot of the race
func (s *raceServiceImpl) GetState(ctx context.Context, raceID string) (*engine.RaceSnapshot, error) {
	sess, err := s.session(raceID)
	if err != nil {
		return nil, err
	}
	snap := sess.Race.Snapshot()
	return &snap, nil
}

// GetStandings returns the current classification
func (s *raceServiceImpl) GetStandings(ctx context.Context, raceID string) ([]engine.Standing, error) {
	sess, err := s.session(raceID)
	if err != nil {
		return nil, err
	}
	return sess.Race.Standings(), nil
}

// GetEvents returns a page of the race's event log
func (s *raceServiceImpl) GetEvents(ctx context.Context, raceID string, opts EventOptions) (*EventsResponse, error) {
	sess, err := s.session(raceID)
	if err != nil {
		return nil, err
	}
	return sess.Events.Page(opts), nil
}

// PendingDecision returns the question a manual seat is waiting on
func (s *raceServiceImpl) PendingDecision(ctx context.Context, raceID string, seat int) (*DecisionInfo, error) {
	m, err := s.manual(raceID, seat)
	if err != nil {
		return nil, err
	}
	info := &DecisionInfo{RaceID: raceID, Seat: seat}
	if d, ok := m.Pending(); ok {
		info.Pending = true
		info.Decision = &d
	}
	return info, nil
}

// SubmitGear answers a pending gear decision
func (s *raceServiceImpl) SubmitGear(ctx context.Context, raceID string, seat, gear int) error {
	m, err := s.manual(raceID, seat)
	if err != nil {
		return err
	}
	return m.Submit(agent.GearDecision, gear)
}

// SubmitMove answers a pending move decision
func (s *raceServiceImpl) SubmitMove(ctx context.Context, raceID string, seat, index int) error {
	m, err := s.manual(raceID, seat)
	if err != nil {
		return err
	}
	return m.Submit(agent.MoveDecision, index)
}

// ListTracks returns all loadable tracks
func (s *raceServiceImpl) ListTracks(ctx context.Context) ([]*TrackInfo, error) {
	return s.tracks.ListTracks()
}

// GetTrack returns the full layout of a track
func (s *raceServiceImpl) GetTrack(ctx context.Context, trackID string) (*TrackDetail, error) {
	tr, err := s.tracks.LoadTrack(trackID)
	if err != nil {
		return nil, err
	}
	return NewTrackDetail(trackID, tr), nil
}

func (s *raceServiceImpl) session(raceID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(raceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%w)", ErrRaceNotFound, raceID, err)
	}
	s.sessions.UpdateLastAccessed(raceID)
	return sess, nil
}

func (s *raceServiceImpl) manual(raceID string, n int) (*agent.Manual, error) {
	sess, err := s.session(raceID)
	if err != nil {
		return nil, err
	}
	seat, err := sess.Seat(n)
	if err != nil {
		return nil, err
	}
	if seat.Manual == nil {
		return nil, fmt.Errorf("%w: seat %d is %s", ErrSeatNotHuman, n, seat.Kind)
	}
	return seat.Manual, nil
}
