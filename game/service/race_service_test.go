package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/podium-rally/game/agent"
	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/service"
	"github.com/wricardo/podium-rally/game/track"
)

var errMockNotFound = errors.New("session not found")

// MockSessionManager is a test implementation of SessionManager
type MockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*service.Session
	next     int
	accessed map[string]int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
		accessed: make(map[string]int),
	}
}

func (m *MockSessionManager) Create(id string, setup *service.RaceSetup) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		m.next++
		id = fmt.Sprintf("r%03d", m.next)
	}
	sess, err := service.NewSession(id, setup)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = sess
	return sess, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, errMockNotFound
	}
	return sess, nil
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*service.Session
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return errMockNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessed[id]++
	return nil
}

// MockTrackCatalog serves generated ovals
type MockTrackCatalog struct {
	tracks map[string]*track.Track
}

func NewMockTrackCatalog(t *testing.T) *MockTrackCatalog {
	t.Helper()
	build := func(name string, laps int, pit int) *track.Track {
		data, err := track.Oval(track.OvalSpec{
			Name: name,
			Laps: laps,
			Sections: []track.Section{
				{Type: track.Straight, Rows: 5},
				{Type: track.Curve1, Rows: 2},
				{Type: track.Straight, Rows: 5},
			},
			GridRows:  2,
			PitLength: pit,
		})
		if err != nil {
			t.Fatalf("Oval() error = %v", err)
		}
		tr, err := track.Build(data)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		return tr
	}
	return &MockTrackCatalog{tracks: map[string]*track.Track{
		"oval":   build("Oval", 1, 0),
		"sprint": build("Sprint", 2, 3),
	}}
}

func (c *MockTrackCatalog) LoadTrack(id string) (*track.Track, error) {
	t, ok := c.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", track.ErrTrackNotFound, id)
	}
	return t, nil
}

func (c *MockTrackCatalog) ListTracks() ([]*service.TrackInfo, error) {
	var out []*service.TrackInfo
	for _, id := range []string{"oval", "sprint"} {
		out = append(out, service.NewTrackInfo(id+".yaml", id, c.tracks[id]))
	}
	return out, nil
}

func (c *MockTrackCatalog) DefaultTrackID() string { return "oval" }

// MockBroadcaster records everything sent to spectators
type MockBroadcaster struct {
	mu     sync.Mutex
	events map[string][]engine.Event
	named  map[string][]string
}

func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{events: make(map[string][]engine.Event), named: make(map[string][]string)}
}

func (b *MockBroadcaster) BroadcastRaceEvent(raceID string, e engine.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[raceID] = append(b.events[raceID], e)
}

func (b *MockBroadcaster) BroadcastEvent(raceID string, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.named[raceID] = append(b.named[raceID], event)
}

func (b *MockBroadcaster) count(raceID string) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events[raceID]), len(b.named[raceID])
}

func newTestService(t *testing.T) (service.RaceService, *MockSessionManager, *MockBroadcaster) {
	sessions := NewMockSessionManager()
	hub := NewMockBroadcaster()
	return service.NewRaceService(sessions, NewMockTrackCatalog(t), hub), sessions, hub
}

func seed(v uint64) *uint64 { return &v }

func waitStatus(t *testing.T, svc service.RaceService, id string, want service.RaceStatus) *service.RaceInfo {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		info, err := svc.GetRace(context.Background(), id)
		if err != nil {
			t.Fatalf("GetRace() error = %v", err)
		}
		if info.Status == want {
			return info
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("race %s never reached %s", id, want)
	return nil
}

func waitPending(t *testing.T, svc service.RaceService, id string, seat int, kind agent.DecisionKind) *service.DecisionInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := svc.PendingDecision(context.Background(), id, seat)
		if err != nil {
			t.Fatalf("PendingDecision() error = %v", err)
		}
		if info.Pending && info.Decision.Kind == kind {
			return info
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("seat %d never asked for a %s", seat, kind)
	return nil
}

func TestRaceService_CreateRace(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	t.Run("default track and heuristic drivers", func(t *testing.T) {
		info, err := svc.CreateRace(ctx, service.CreateRaceRequest{
			Entrants: []service.EntrantSpec{{Name: "A"}, {Name: "B"}},
			Seed:     seed(1),
		})
		if err != nil {
			t.Fatalf("CreateRace() error = %v", err)
		}
		if info.TrackID != "oval" {
			t.Errorf("TrackID = %s, want oval", info.TrackID)
		}
		if info.Status != service.StatusWaiting {
			t.Errorf("Status = %s, want waiting", info.Status)
		}
		if len(info.Seats) != 2 || info.Seats[0].Kind != service.KindHeuristic || !info.Seats[1].Connected {
			t.Errorf("unexpected seats: %+v", info.Seats)
		}
		if info.Standings != nil {
			t.Error("Expected no standings before the start")
		}
	})

	t.Run("unknown track lists available ones", func(t *testing.T) {
		_, err := svc.CreateRace(ctx, service.CreateRaceRequest{
			TrackID:  "monaco",
			Entrants: []service.EntrantSpec{{Name: "A"}},
		})
		if err == nil || !strings.Contains(err.Error(), "Available tracks") || !strings.Contains(err.Error(), "sprint") {
			t.Errorf("Expected helpful not-found error, got %v", err)
		}
	})

	tests := []struct {
		name    string
		req     service.CreateRaceRequest
		wantErr error
		errText string
	}{
		{
			name:    "no entrants",
			req:     service.CreateRaceRequest{},
			wantErr: engine.ErrNoPlayers,
		},
		{
			name: "too many entrants",
			req: service.CreateRaceRequest{Entrants: []service.EntrantSpec{
				{}, {}, {}, {}, {}, {}, {},
			}},
			wantErr: engine.ErrTooManyPlayers,
		},
		{
			name:    "unknown kind",
			req:     service.CreateRaceRequest{Entrants: []service.EntrantSpec{{Kind: "psychic"}}},
			errText: "unknown kind",
		},
		{
			name:    "remote without url",
			req:     service.CreateRaceRequest{Entrants: []service.EntrantSpec{{Kind: service.KindRemote}}},
			errText: "needs a url",
		},
		{
			name:    "negative laps",
			req:     service.CreateRaceRequest{Laps: -1, Entrants: []service.EntrantSpec{{}}},
			errText: "config validation",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRace(ctx, tt.req)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.errText != "" && !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("error = %v, want it to mention %q", err, tt.errText)
			}
		})
	}
}

func TestRaceService_RunToFinish(t *testing.T) {
	svc, _, hub := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateRace(ctx, service.CreateRaceRequest{
		TrackID:   "sprint",
		Entrants:  []service.EntrantSpec{{Name: "A"}, {Name: "B"}, {Name: "C"}},
		Seed:      seed(42),
		AutoStart: true,
	})
	if err != nil {
		t.Fatalf("CreateRace() error = %v", err)
	}

	final := waitStatus(t, svc, info.ID, service.StatusFinished)
	if len(final.Standings) != 3 {
		t.Fatalf("Expected 3 standings, got %d", len(final.Standings))
	}
	if final.Standings[0].Position != 1 {
		t.Errorf("Expected winner at position 1, got %+v", final.Standings[0])
	}
	if !final.Snapshot.Finished {
		t.Error("Expected finished snapshot")
	}

	events, err := svc.GetEvents(ctx, info.ID, service.EventOptions{Limit: 500})
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if events.TotalEvents == 0 || events.Events[0].Type != engine.EventRaceStart {
		t.Errorf("Expected the log to open with race_start, got %+v", events.Events)
	}
	last := events.Events[len(events.Events)-1]
	if events.TotalEvents <= 500 && last.Type != engine.EventStandings {
		t.Errorf("Expected the log to end with standings, got %s", last.Type)
	}

	broadcast, _ := hub.count(info.ID)
	if broadcast != events.TotalEvents {
		t.Errorf("broadcast %d events, logged %d", broadcast, events.TotalEvents)
	}

	if _, err := svc.StartRace(ctx, info.ID); !errors.Is(err, service.ErrRaceStarted) {
		t.Errorf("Expected ErrRaceStarted on restart, got %v", err)
	}
}

func TestRaceService_SameSeedSameRace(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var logs [2][]engine.Event
	for i := range logs {
		info, err := svc.CreateRace(ctx, service.CreateRaceRequest{
			TrackID:   "sprint",
			Entrants:  []service.EntrantSpec{{Name: "A"}, {Name: "B"}},
			Seed:      seed(9),
			AutoStart: true,
		})
		if err != nil {
			t.Fatal(err)
		}
		waitStatus(t, svc, info.ID, service.StatusFinished)
		page, _ := svc.GetEvents(ctx, info.ID, service.EventOptions{Limit: 500})
		logs[i] = page.Events
	}

	if len(logs[0]) != len(logs[1]) {
		t.Fatalf("event counts differ: %d vs %d", len(logs[0]), len(logs[1]))
	}
	for i := range logs[0] {
		a, b := logs[0][i], logs[1][i]
		if a.Type != b.Type || a.Seat != b.Seat || a.Value != b.Value || a.Node != b.Node {
			t.Fatalf("event %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestRaceService_ManualSeat(t *testing.T) {
	svc, _, hub := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateRace(ctx, service.CreateRaceRequest{
		Entrants: []service.EntrantSpec{
			{Name: "You", Kind: service.KindManual},
			{Name: "Bot"},
		},
		Seed:          seed(3),
		BaseTimeoutMs: 60000,
	})
	if err != nil {
		t.Fatalf("CreateRace() error = %v", err)
	}
	t.Cleanup(func() { svc.DeleteRace(ctx, info.ID) })

	// Nothing asked before the start
	pending, err := svc.PendingDecision(ctx, info.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pending.Pending {
		t.Error("Expected no decision before the start")
	}
	if err := svc.SubmitGear(ctx, info.ID, 0, 1); !errors.Is(err, agent.ErrNoPendingDecision) {
		t.Errorf("Expected ErrNoPendingDecision, got %v", err)
	}

	if _, err := svc.StartRace(ctx, info.ID); err != nil {
		t.Fatalf("StartRace() error = %v", err)
	}

	gear := waitPending(t, svc, info.ID, 0, agent.GearDecision)
	if gear.Decision.Snapshot.Current != 0 {
		t.Errorf("Expected seat 0 on turn, got %d", gear.Decision.Snapshot.Current)
	}
	if err := svc.SubmitMove(ctx, info.ID, 0, 0); !errors.Is(err, agent.ErrWrongDecision) {
		t.Errorf("Expected ErrWrongDecision, got %v", err)
	}
	if err := svc.SubmitGear(ctx, info.ID, 0, 1); err != nil {
		t.Fatalf("SubmitGear() error = %v", err)
	}

	move := waitPending(t, svc, info.ID, 0, agent.MoveDecision)
	if len(move.Decision.Move.Moves) == 0 {
		t.Fatal("Expected a move menu")
	}
	if err := svc.SubmitMove(ctx, info.ID, 0, len(move.Decision.Move.Moves)); err == nil {
		t.Error("Expected out-of-range move to be rejected")
	}
	if err := svc.SubmitMove(ctx, info.ID, 0, 0); err != nil {
		t.Fatalf("SubmitMove() error = %v", err)
	}

	// Seat 0 is asked again on its next turn
	waitPending(t, svc, info.ID, 0, agent.GearDecision)

	state, err := svc.GetState(ctx, info.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := state.Player(0); !ok || p.Turns < 1 {
		t.Errorf("Expected seat 0 to have taken a turn, got %+v", p)
	}

	if _, named := hub.count(info.ID); named < 2 {
		t.Errorf("Expected decision_pending broadcasts, got %d", named)
	}

	if _, err := svc.PendingDecision(ctx, info.ID, 1); !errors.Is(err, service.ErrSeatNotHuman) {
		t.Errorf("Expected ErrSeatNotHuman, got %v", err)
	}
	if _, err := svc.PendingDecision(ctx, info.ID, 7); !errors.Is(err, service.ErrInvalidSeat) {
		t.Errorf("Expected ErrInvalidSeat, got %v", err)
	}
}

func TestRaceService_DeleteStopsRace(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateRace(ctx, service.CreateRaceRequest{
		Entrants:      []service.EntrantSpec{{Name: "You", Kind: service.KindManual}},
		BaseTimeoutMs: 60000,
		AutoStart:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	waitPending(t, svc, info.ID, 0, agent.GearDecision)

	sess, _ := sessions.Get(info.ID)
	if err := svc.DeleteRace(ctx, info.ID); err != nil {
		t.Fatalf("DeleteRace() error = %v", err)
	}
	if status, _ := sess.Status(); status != service.StatusStopped {
		t.Errorf("Expected stopped race, got %s", status)
	}
	if _, err := svc.GetRace(ctx, info.ID); err == nil {
		t.Error("Expected deleted race to be gone")
	}
	if err := svc.DeleteRace(ctx, info.ID); err == nil {
		t.Error("Expected error deleting twice")
	}
}

func TestRaceService_ListRaces(t *testing.T) {
	svc, sessions, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		info, err := svc.CreateRace(ctx, service.CreateRaceRequest{Entrants: []service.EntrantSpec{{}}})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, info.ID)
		time.Sleep(2 * time.Millisecond)
	}

	races, err := svc.ListRaces(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(races) != 3 {
		t.Fatalf("Expected 3 races, got %d", len(races))
	}
	// Newest first
	for i, r := range races {
		if r.ID != ids[len(ids)-1-i] {
			t.Errorf("races[%d] = %s, want %s", i, r.ID, ids[len(ids)-1-i])
		}
	}

	if _, err := svc.GetRace(ctx, ids[0]); err != nil {
		t.Fatal(err)
	}
	sessions.mu.Lock()
	touched := sessions.accessed[ids[0]]
	sessions.mu.Unlock()
	if touched == 0 {
		t.Error("Expected GetRace to update the last access time")
	}
}

func TestRaceService_Tracks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tracks, err := svc.ListTracks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 2 || tracks[1].TrackID != "sprint" || !tracks[1].HasPit {
		t.Errorf("unexpected tracks: %+v", tracks)
	}

	detail, err := svc.GetTrack(ctx, "sprint")
	if err != nil {
		t.Fatalf("GetTrack() error = %v", err)
	}
	if detail.Pit == nil || len(detail.Lanes) != 3 || len(detail.Areas) != 1 {
		t.Errorf("unexpected detail: pit=%v lanes=%d areas=%d", detail.Pit, len(detail.Lanes), len(detail.Areas))
	}
	if len(detail.Grid) != 6 || len(detail.Adjacent) == 0 {
		t.Errorf("unexpected grid %v or adjacency size %d", detail.Grid, len(detail.Adjacent))
	}

	if _, err := svc.GetTrack(ctx, "monaco"); !errors.Is(err, track.ErrTrackNotFound) {
		t.Errorf("Expected ErrTrackNotFound, got %v", err)
	}
}

func TestRaceService_UnknownRace(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetRace(ctx, "nope"); !errors.Is(err, service.ErrRaceNotFound) {
		t.Error("GetRace: expected ErrRaceNotFound")
	}
	if _, err := svc.StartRace(ctx, "nope"); !errors.Is(err, service.ErrRaceNotFound) {
		t.Error("StartRace: expected ErrRaceNotFound")
	}
	if _, err := svc.GetState(ctx, "nope"); !errors.Is(err, service.ErrRaceNotFound) {
		t.Error("GetState: expected ErrRaceNotFound")
	}
	if _, err := svc.GetStandings(ctx, "nope"); !errors.Is(err, service.ErrRaceNotFound) {
		t.Error("GetStandings: expected ErrRaceNotFound")
	}
	if err := svc.SubmitGear(ctx, "nope", 0, 1); !errors.Is(err, service.ErrRaceNotFound) {
		t.Error("SubmitGear: expected ErrRaceNotFound")
	}
}
