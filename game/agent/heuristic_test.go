package agent

import (
	"context"
	"testing"

	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/track"
)

// testOval is straight 4, curve2 3, straight 4, curve1 2, straight 3 with a
// three-node pit lane.
func testOval(t *testing.T) *track.Track {
	t.Helper()
	data, err := track.Oval(track.OvalSpec{
		Name: "agent oval",
		Laps: 2,
		Sections: []track.Section{
			{Type: track.Straight, Rows: 4},
			{Type: track.Curve2, Rows: 3},
			{Type: track.Straight, Rows: 4},
			{Type: track.Curve1, Rows: 2},
			{Type: track.Straight, Rows: 3},
		},
		GridRows:  2,
		PitLength: 3,
		GarageAt:  1,
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

func TestChooseGear(t *testing.T) {
	tr := testOval(t)
	pitNode := 1 + 16*3

	tests := []struct {
		name  string
		track *track.Track
		me    engine.PlayerState
		want  int
	}{
		{"leaves gear zero", tr, engine.PlayerState{Node: track.OvalNode(0, 1), Gear: 0, Hitpoints: 18}, 1},
		{"one up on a short straight", tr, engine.PlayerState{Node: track.OvalNode(0, 1), Gear: 1, Hitpoints: 18}, 2},
		{"holds before the curve", tr, engine.PlayerState{Node: track.OvalNode(0, 1), Gear: 2, Hitpoints: 18}, 2},
		{"drops hard into the curve", tr, engine.PlayerState{Node: track.OvalNode(4, 1), Gear: 3, Hitpoints: 18}, 1},
		{"drops one when hurt", tr, engine.PlayerState{Node: track.OvalNode(4, 1), Gear: 3, Hitpoints: 3}, 2},
		{"accelerates out of a served curve", tr, engine.PlayerState{Node: track.OvalNode(6, 1), Gear: 1, CurveStops: 2, Hitpoints: 18}, 2},
		{"pit cap", tr, engine.PlayerState{Node: pitNode, Gear: 4, Hitpoints: 18}, 4},
		{"no track", nil, engine.PlayerState{Node: 5, Gear: 2, Hitpoints: 18}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChooseGear(tt.track, tt.me)
			if got != tt.want {
				t.Errorf("ChooseGear() = %d, want %d", got, tt.want)
			}
			inPit := tt.track != nil && tt.track.MustNode(tt.me.Node).IsPit()
			if _, ok := engine.ShiftCost(tt.me.Gear, got, tt.me.Hitpoints, inPit); !ok {
				t.Errorf("gear %d from %d is not a legal shift", got, tt.me.Gear)
			}
		})
	}
}

func TestChooseMove(t *testing.T) {
	tr := testOval(t)
	row := func(r int) int { return track.OvalNode(r, 1) }
	dist := func(r int) float64 { return tr.MustNode(row(r)).Distance }

	tests := []struct {
		name  string
		moves []engine.ValidMove
		want  int
	}{
		{
			name: "least damage",
			moves: []engine.ValidMove{
				{Node: row(9), Distance: dist(9), Overshoot: 2, Path: []int{row(7), row(8), row(9)}},
				{Node: row(8), Distance: dist(8), Braking: 1, Path: []int{row(7), row(8)}},
			},
			want: 1,
		},
		{
			name: "furthest at equal damage",
			moves: []engine.ValidMove{
				{Node: row(8), Distance: dist(8), Path: []int{row(7), row(8)}},
				{Node: row(10), Distance: dist(10), Path: []int{row(7), row(8), row(9), row(10)}},
			},
			want: 1,
		},
		{
			name: "crossing the line counts as progress",
			moves: []engine.ValidMove{
				{Node: row(15), Distance: dist(15), Path: []int{row(14), row(15)}},
				{Node: row(0), Distance: dist(0), Path: []int{row(14), row(15), row(0)}},
			},
			want: 1,
		},
		{
			name: "finishing beats everything",
			moves: []engine.ValidMove{
				{Node: row(2), Distance: dist(2), Path: []int{row(15), row(0), row(1), row(2)}},
				{Node: row(0), Distance: dist(0), Braking: 1, Finishes: true, Path: []int{row(15), row(0)}},
			},
			want: 1,
		},
		{
			name: "ties keep menu order",
			moves: []engine.ValidMove{
				{Node: track.OvalNode(9, 0), Distance: dist(9), Path: []int{row(8), track.OvalNode(9, 0)}},
				{Node: track.OvalNode(9, 2), Distance: dist(9), Path: []int{row(8), track.OvalNode(9, 2)}},
			},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChooseMove(tr, tt.moves); got != tt.want {
				t.Errorf("ChooseMove() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHeuristic_RacesToTheEnd(t *testing.T) {
	tr := testOval(t)
	var entrants []engine.Entrant
	for _, name := range []string{"Ada", "Bo", "Cy", "Di"} {
		entrants = append(entrants, engine.Entrant{Name: name, Agent: NewHeuristic()})
	}
	cfg := engine.DefaultConfig()
	cfg.Seed = 7

	race, err := engine.NewRace(tr, entrants, cfg)
	if err != nil {
		t.Fatalf("NewRace() error = %v", err)
	}
	standings, err := race.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(standings) != 4 {
		t.Fatalf("%d standings, want 4", len(standings))
	}

	finishers := 0
	for _, s := range standings {
		if s.Active {
			t.Errorf("seat %d still active", s.Seat)
		}
		if s.Finished {
			finishers++
		}
		if s.Reason == "turn limit reached" {
			t.Errorf("seat %d stalled until the turn limit", s.Seat)
		}
	}
	if finishers == 0 {
		t.Errorf("no heuristic car finished: %+v", standings)
	}
}

func TestHeuristic_Name(t *testing.T) {
	h := NewHeuristic("bot")
	name, err := h.OnRaceStart(context.Background(), engine.RaceInfo{})
	if err != nil || name != "bot" {
		t.Errorf("OnRaceStart() = %q, %v", name, err)
	}
	if _, err := h.SelectGear(context.Background(), engine.RaceSnapshot{Current: -1}); err != ErrNotOnTurn {
		t.Errorf("SelectGear() between turns = %v, want ErrNotOnTurn", err)
	}
}
