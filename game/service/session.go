package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wricardo/podium-rally/game/agent"
	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/track"
)

var (
	ErrRaceNotFound = errors.New("race not found")
	ErrRaceStarted  = errors.New("race already started")
	ErrInvalidSeat  = errors.New("invalid seat")
	ErrSeatNotHuman = errors.New("seat is not manually driven")
)

// RaceStatus is the lifecycle stage of a session's race
type RaceStatus string

const (
	StatusWaiting  RaceStatus = "waiting"
	StatusRunning  RaceStatus = "running"
	StatusFinished RaceStatus = "finished"
	StatusStopped  RaceStatus = "stopped"
	StatusFailed   RaceStatus = "failed"
)

// Seat is one car and the agent driving it
type Seat struct {
	SeatInfo
	Agent  engine.Agent
	Manual *agent.Manual // set for manual seats
	Remote *agent.Remote // set for remote seats
}

// Connected reports whether the seat's driver can currently answer
func (s *Seat) Connected() bool {
	if s.Remote != nil {
		return s.Remote.Alive()
	}
	return true
}

// RaceSetup is what a session manager needs to build a race
type RaceSetup struct {
	TrackID string
	Track   *track.Track
	Seats   []*Seat
	Config  engine.Config
}

// Session is one race with its drivers and event log
type Session struct {
	ID             string
	TrackID        string
	Race           *engine.Race
	Seats          []*Seat
	Events         *EventLog
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu          sync.Mutex
	status      RaceStatus
	err         error
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers []func(engine.Event)
}

// NewSession builds the race described by setup. Every race event is
// recorded in the session's event log and passed to subscribers.
func NewSession(id string, setup *RaceSetup) (*Session, error) {
	s := &Session{
		ID:             id,
		TrackID:        setup.TrackID,
		Seats:          setup.Seats,
		Events:         NewEventLog(),
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
		status:         StatusWaiting,
		done:           make(chan struct{}),
	}

	entrants := make([]engine.Entrant, len(setup.Seats))
	for i, seat := range setup.Seats {
		entrants[i] = engine.Entrant{Name: seat.Name, Agent: seat.Agent}
	}

	cfg := setup.Config
	cfg.Notifier = engine.Notifiers{s.Events, engine.NotifierFunc(s.publish), cfg.Notifier}
	race, err := engine.NewRace(setup.Track, entrants, cfg)
	if err != nil {
		return nil, err
	}
	s.Race = race
	return s, nil
}

// Subscribe registers fn for every event emitted after the call
func (s *Session) Subscribe(fn func(engine.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Session) publish(e engine.Event) {
	s.mu.Lock()
	subs := append(([]func(engine.Event))(nil), s.subscribers...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// Start runs the race on its own goroutine
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusWaiting {
		return fmt.Errorf("%w: race %s is %s", ErrRaceStarted, s.ID, s.status)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.status = StatusRunning
	go s.run(ctx)
	return nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	_, err := s.Race.Run(ctx)

	s.mu.Lock()
	switch {
	case err == nil:
		s.status = StatusFinished
	case errors.Is(err, context.Canceled):
		s.status = StatusStopped
	default:
		s.status = StatusFailed
		s.err = err
	}
	status := s.status
	s.mu.Unlock()

	log.Printf("Race %s ended: status=%s err=%v", s.ID, status, err)
	s.hangUp()
}

// Stop cancels a running race, waits for it to wind down and disconnects
// remote drivers
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	running := s.status == StatusRunning
	if s.status == StatusWaiting {
		s.status = StatusStopped
	}
	s.mu.Unlock()

	if running && cancel != nil {
		cancel()
		<-s.done
		return
	}
	s.hangUp()
}

func (s *Session) hangUp() {
	for _, seat := range s.Seats {
		if seat.Remote != nil {
			seat.Remote.Close()
		}
	}
}

// Wait blocks until a started race ends or ctx is done
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	started := s.cancel != nil
	s.mu.Unlock()
	if !started {
		return fmt.Errorf("race %s was never started", s.ID)
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the race stage and, for failed races, the cause
func (s *Session) Status() (RaceStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.err
}

// Seat returns the seat with the given number
func (s *Session) Seat(n int) (*Seat, error) {
	if n < 0 || n >= len(s.Seats) {
		return nil, fmt.Errorf("%w: %d (race has %d seats)", ErrInvalidSeat, n, len(s.Seats))
	}
	return s.Seats[n], nil
}

// Info reports the session as returned by the API
func (s *Session) Info() *RaceInfo {
	status, err := s.Status()
	snap := s.Race.Snapshot()

	info := &RaceInfo{
		ID:             s.ID,
		TrackID:        s.TrackID,
		Status:         status,
		CreatedAt:      s.CreatedAt,
		LastAccessedAt: s.LastAccessedAt,
		Snapshot:       snap,
	}
	if err != nil {
		info.Error = err.Error()
	}
	for i, seat := range s.Seats {
		si := seat.SeatInfo
		if p, ok := snap.Player(i); ok {
			si.Name = p.Name
		}
		si.Connected = seat.Connected()
		info.Seats = append(info.Seats, si)
	}
	if snap.Started {
		info.Standings = s.Race.Standings()
	}
	return info
}
