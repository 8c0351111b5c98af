package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/wricardo/podium-rally/game/track"
)

// ovalTrack is a 16-row, three-lane oval: straight 4, curve2 3, straight 4,
// curve1 2, straight 3. Row r lies at distance r+1.
func ovalTrack(t *testing.T, pit bool) *track.Track {
	t.Helper()
	spec := track.OvalSpec{
		Name: "engine oval",
		Laps: 2,
		Sections: []track.Section{
			{Type: track.Straight, Rows: 4},
			{Type: track.Curve2, Rows: 3},
			{Type: track.Straight, Rows: 4},
			{Type: track.Curve1, Rows: 2},
			{Type: track.Straight, Rows: 3},
		},
		GridRows: 2,
	}
	if pit {
		spec.PitLength = 3
		spec.GarageAt = 1
	}
	data, err := track.Oval(spec)
	if err != nil {
		t.Fatalf("Oval() error = %v", err)
	}
	tr, err := track.Build(data)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return tr
}

// ovalPit returns the ids of the pit nodes ovalTrack adds
func ovalPit() []int {
	first := 1 + 16*3
	return []int{first, first + 1, first + 2}
}

// parallelTrack has three lanes that never meet, so every roll has a
// single destination per lane.
func parallelTrack(t *testing.T, rows, laps int) *track.Track {
	t.Helper()
	id := func(row, lane int) int { return 1 + row*3 + lane }

	data := &track.Data{
		Name: "parallel",
		Laps: laps,
		Grid: []int{id(1, 1), id(1, 0), id(1, 2), id(0, 1), id(0, 0), id(0, 2)},
		Nodes: []track.NodeData{
			{ID: 0, Type: track.Finish, Lane: 1, Children: []int{id(0, 0), id(0, 1), id(0, 2)}},
		},
	}
	for row := 0; row < rows; row++ {
		for lane := 0; lane < 3; lane++ {
			typ := track.Straight
			if row < 2 {
				typ = track.Start
			}
			data.Nodes = append(data.Nodes, track.NodeData{
				ID:       id(row, lane),
				Type:     typ,
				Lane:     float64(lane),
				Children: []int{id((row+1)%rows, lane)},
			})
		}
	}
	tr, err := track.Build(data)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return tr
}

// testAgent shifts up to maxGear and takes the cheapest, longest move
// unless overridden.
type testAgent struct {
	name    string
	maxGear int

	mu         sync.Mutex
	gearCalls  int
	moveCalls  int
	lastMenu   []ValidMove
	onGear     func(ctx context.Context, snap RaceSnapshot) (int, error)
	onMove     func(ctx context.Context, req MoveRequest) (int, error)
	onRaceInit func(ctx context.Context, info RaceInfo) (string, error)
}

func (a *testAgent) OnRaceStart(ctx context.Context, info RaceInfo) (string, error) {
	if a.onRaceInit != nil {
		return a.onRaceInit(ctx, info)
	}
	return a.name, nil
}

func (a *testAgent) SelectGear(ctx context.Context, snap RaceSnapshot) (int, error) {
	a.mu.Lock()
	a.gearCalls++
	a.mu.Unlock()
	if a.onGear != nil {
		return a.onGear(ctx, snap)
	}
	me := snap.Players[snap.Current]
	limit := a.maxGear
	if limit == 0 {
		limit = 2
	}
	if me.Gear < limit {
		return me.Gear + 1, nil
	}
	return me.Gear, nil
}

func (a *testAgent) SelectMove(ctx context.Context, req MoveRequest) (int, error) {
	a.mu.Lock()
	a.moveCalls++
	a.lastMenu = req.Moves
	a.mu.Unlock()
	if a.onMove != nil {
		return a.onMove(ctx, req)
	}
	best := 0
	for i, m := range req.Moves {
		b := req.Moves[best]
		if m.Damage() < b.Damage() || (m.Damage() == b.Damage() && len(m.Path) > len(b.Path)) {
			best = i
		}
	}
	return best, nil
}

func (a *testAgent) calls() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gearCalls, a.moveCalls
}

// recorder collects every event a race emits
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func testConfig(seed uint64, rec *recorder) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	if rec != nil {
		cfg.Notifier = rec
	}
	return cfg
}

func nodesOf(results map[int]DamageAndPath) []int {
	return sortedIDs(results)
}
