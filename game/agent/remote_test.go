package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/podium-rally/game/engine"
)

// fixedPeer answers every call with the same values
type fixedPeer struct {
	name string
	gear int
	move int
	err  error
}

func (p fixedPeer) OnRaceStart(ctx context.Context, info engine.RaceInfo) (string, error) {
	return p.name, p.err
}

func (p fixedPeer) SelectGear(ctx context.Context, snap engine.RaceSnapshot) (int, error) {
	return p.gear, p.err
}

func (p fixedPeer) SelectMove(ctx context.Context, req engine.MoveRequest) (int, error) {
	return p.move, p.err
}

// peerServer serves a over websocket. Connections listed in hangUp are
// closed right after the upgrade (1-based).
func peerServer(t *testing.T, a engine.Agent, hangUp ...int64) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var conns atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		for _, h := range hangUp {
			if h == n {
				conn.Close()
				return
			}
		}
		Serve(r.Context(), conn, a)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRemote_RoundTrip(t *testing.T) {
	_, url := peerServer(t, fixedPeer{name: "far away", gear: 3, move: 1})
	ctx := context.Background()

	r, err := DialRemote(ctx, url)
	if err != nil {
		t.Fatalf("DialRemote() error = %v", err)
	}
	defer r.Close()

	if !r.Alive() {
		t.Error("fresh connection should be alive")
	}
	name, err := r.OnRaceStart(ctx, engine.RaceInfo{Seat: 1, Players: 2})
	if err != nil || name != "far away" {
		t.Errorf("OnRaceStart() = %q, %v", name, err)
	}
	if gear, err := r.SelectGear(ctx, engine.RaceSnapshot{Current: 1}); err != nil || gear != 3 {
		t.Errorf("SelectGear() = %d, %v; want 3", gear, err)
	}
	req := engine.MoveRequest{Moves: []engine.ValidMove{{Node: 1}, {Node: 2}}}
	if move, err := r.SelectMove(ctx, req); err != nil || move != 1 {
		t.Errorf("SelectMove() = %d, %v; want 1", move, err)
	}
}

func TestRemote_PeerErrors(t *testing.T) {
	_, url := peerServer(t, fixedPeer{err: errors.New("thinking too hard")})
	ctx := context.Background()

	r, err := DialRemote(ctx, url)
	if err != nil {
		t.Fatalf("DialRemote() error = %v", err)
	}
	defer r.Close()

	_, err = r.SelectGear(ctx, engine.RaceSnapshot{})
	if err == nil || !strings.Contains(err.Error(), "thinking too hard") {
		t.Errorf("SelectGear() error = %v, want the peer's error", err)
	}

	fb, err := DialRemote(ctx, url, WithFallback(NewHeuristic()))
	if err != nil {
		t.Fatalf("DialRemote() error = %v", err)
	}
	defer fb.Close()

	snap := engine.RaceSnapshot{Current: 0, Players: []engine.PlayerState{{Gear: 0, Hitpoints: 18}}}
	if gear, err := fb.SelectGear(ctx, snap); err != nil || gear != 1 {
		t.Errorf("SelectGear() with fallback = %d, %v; want 1", gear, err)
	}
}

func TestRemote_CancelledCall(t *testing.T) {
	block := make(chan struct{})
	_, url := peerServer(t, &slowPeer{release: block})
	t.Cleanup(func() { close(block) })

	r, err := DialRemote(context.Background(), url, WithFallback(NewHeuristic()))
	if err != nil {
		t.Fatalf("DialRemote() error = %v", err)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := r.SelectGear(ctx, engine.RaceSnapshot{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SelectGear() = %v, want the deadline error even with a fallback", err)
	}
}

type slowPeer struct {
	fixedPeer
	release chan struct{}
}

func (p *slowPeer) SelectGear(ctx context.Context, snap engine.RaceSnapshot) (int, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return 1, nil
}

func TestRemote_RedialsAfterDrop(t *testing.T) {
	_, url := peerServer(t, fixedPeer{gear: 5}, 1)
	ctx := context.Background()

	r, err := DialRemote(ctx, url, WithBackoff(time.Millisecond, time.Millisecond), WithFallback(NewHeuristic()))
	if err != nil {
		t.Fatalf("DialRemote() error = %v", err)
	}
	defer r.Close()

	waitFor(t, "the hang-up", func() bool { return !r.Alive() })

	time.Sleep(5 * time.Millisecond)
	waitFor(t, "the redial", func() bool {
		gear, err := r.SelectGear(ctx, engine.RaceSnapshot{Current: 0, Players: []engine.PlayerState{{Gear: 1}}})
		return err == nil && gear == 5 && r.Alive()
	})
}

func TestRemote_DialFailure(t *testing.T) {
	srv, url := peerServer(t, fixedPeer{})
	srv.Close()

	if _, err := DialRemote(context.Background(), url); err == nil {
		t.Error("dialing a closed server should fail")
	}
}

func TestRemote_ClosedStopsRedial(t *testing.T) {
	_, url := peerServer(t, fixedPeer{gear: 2})
	r, err := DialRemote(context.Background(), url)
	if err != nil {
		t.Fatalf("DialRemote() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := r.SelectGear(context.Background(), engine.RaceSnapshot{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SelectGear() after Close = %v, want ErrNotConnected", err)
	}
	if r.Alive() {
		t.Error("closed remote reports alive")
	}
}

func TestRemote_InRace(t *testing.T) {
	_, url := peerServer(t, NewHeuristic("wired"))
	ctx := context.Background()

	r, err := DialRemote(ctx, url)
	if err != nil {
		t.Fatalf("DialRemote() error = %v", err)
	}
	defer r.Close()

	race, err := engine.NewRace(testOval(t), []engine.Entrant{
		{Name: "remote", Agent: r},
		{Name: "local", Agent: NewHeuristic()},
	}, engine.DefaultConfig())
	if err != nil {
		t.Fatalf("NewRace() error = %v", err)
	}
	if err := race.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 6; i++ {
		if err := race.Step(ctx); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}

	p := race.Snapshot().Players[0]
	if p.Name != "wired" || p.Exceptions != 0 || p.Gear == 0 {
		t.Errorf("remote player = %+v, want a named, moving car without exceptions", p)
	}
}
