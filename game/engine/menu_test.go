package engine

import (
	"reflect"
	"testing"

	"github.com/wricardo/podium-rally/game/track"
)

func TestBuildMenu_Braking(t *testing.T) {
	tr := parallelTrack(t, 12, 1)
	start := 1 + 0*3 + 1

	menu := BuildMenu(tr, MenuParams{Start: start, Roll: 4, Hitpoints: 3})
	if len(menu) != 3 {
		t.Fatalf("menu has %d entries, want 3: %+v", len(menu), menu)
	}
	for b, m := range menu {
		wantNode := 1 + (4-b)*3 + 1
		if m.Braking != b || m.Node != wantNode || m.Overshoot != 0 {
			t.Errorf("entry %d = %+v, want braking %d to node %d", b, m, b, wantNode)
		}
		if m.Damage() >= 3 {
			t.Errorf("entry %d damage %d would wreck the car", b, m.Damage())
		}
	}
}

func TestBuildMenu_HitpointsLimitBraking(t *testing.T) {
	tr := parallelTrack(t, 12, 1)
	start := 1 + 0*3 + 1

	menu := BuildMenu(tr, MenuParams{Start: start, Roll: 4, Hitpoints: 1})
	if len(menu) != 1 || menu[0].Braking != 0 {
		t.Errorf("menu = %+v, want only the unbraked move", menu)
	}

	menu = BuildMenu(tr, MenuParams{Start: start, Roll: 2, Hitpoints: 10})
	if len(menu) != 3 {
		t.Fatalf("menu has %d entries, want braking 0..2", len(menu))
	}
	if last := menu[2]; last.Node != start || last.Braking != 2 {
		t.Errorf("full braking = %+v, want to stay on %d", last, start)
	}
}

func TestBuildMenu_EmptyWhenBlocked(t *testing.T) {
	tr := parallelTrack(t, 12, 1)
	start := 1 + 3*3 + 1
	blocked := map[int]bool{1 + 4*3 + 1: true}

	if menu := BuildMenu(tr, MenuParams{Start: start, Roll: 1, Hitpoints: 1, Occupied: blocked}); len(menu) != 0 {
		t.Errorf("menu = %+v, want empty", menu)
	}

	menu := BuildMenu(tr, MenuParams{Start: start, Roll: 1, Hitpoints: 2, Occupied: blocked})
	if len(menu) != 1 || menu[0].Node != start || menu[0].Braking != 1 {
		t.Errorf("menu = %+v, want a single full brake", menu)
	}
}

func TestBuildMenu_ExcludesWreckingMoves(t *testing.T) {
	tr := ovalTrack(t, false)

	// One stop short in curve2: running to row 9 costs 3.
	params := MenuParams{Start: track.OvalNode(4, 1), Roll: 5, Hitpoints: 3, StopsDone: 1}
	for _, m := range BuildMenu(tr, params) {
		if m.Damage() >= params.Hitpoints {
			t.Errorf("move %+v admitted with %d hitpoints", m, params.Hitpoints)
		}
	}

	params.Hitpoints = 10
	found := false
	for _, m := range BuildMenu(tr, params) {
		if m.Node == track.OvalNode(9, 1) && m.Braking == 0 {
			found = true
			if m.Overshoot != 3 {
				t.Errorf("overshoot = %d, want 3", m.Overshoot)
			}
		}
	}
	if !found {
		t.Error("row 9 should be on the menu with enough hitpoints")
	}
}

func TestBuildMenu_Idempotent(t *testing.T) {
	tr := ovalTrack(t, true)
	params := MenuParams{
		Start:           track.OvalNode(12, 1),
		Roll:            7,
		Hitpoints:       6,
		Occupied:        map[int]bool{track.OvalNode(15, 1): true},
		StopsDone:       1,
		PitEntryAllowed: true,
	}

	first := BuildMenu(tr, params)
	for i := 0; i < 5; i++ {
		if again := BuildMenu(tr, params); !reflect.DeepEqual(first, again) {
			t.Fatalf("menu changed between builds:\n%+v\n%+v", first, again)
		}
	}
}

func TestBuildMenu_Ordered(t *testing.T) {
	tr := ovalTrack(t, false)
	menu := BuildMenu(tr, MenuParams{Start: track.OvalNode(0, 1), Roll: 3, Hitpoints: 4})

	for i := 1; i < len(menu); i++ {
		a, b := menu[i-1], menu[i]
		if a.Braking > b.Braking || (a.Braking == b.Braking && a.Node >= b.Node) {
			t.Errorf("entries %d and %d out of order: %+v, %+v", i-1, i, a, b)
		}
	}
}

func TestBuildMenu_BrakingNeverRaisesOvershoot(t *testing.T) {
	tr := ovalTrack(t, true)

	for _, id := range tr.NodeIDs() {
		if tr.MustNode(id).Type == track.Finish {
			continue
		}
		for roll := 1; roll <= 12; roll++ {
			for stops := 0; stops <= 2; stops++ {
				menu := BuildMenu(tr, MenuParams{
					Start:           id,
					Roll:            roll,
					Hitpoints:       20,
					StopsDone:       stops,
					PitEntryAllowed: true,
				})
				last := map[int]int{}
				for _, m := range menu {
					if prev, ok := last[m.Node]; ok && m.Overshoot > prev {
						t.Fatalf("start %d roll %d: node %d overshoot rose from %d to %d at braking %d",
							id, roll, m.Node, prev, m.Overshoot, m.Braking)
					}
					last[m.Node] = m.Overshoot
				}
			}
		}
	}
}

func TestBuildMenu_ZeroRoll(t *testing.T) {
	tr := ovalTrack(t, false)
	start := track.OvalNode(1, 1)

	menu := BuildMenu(tr, MenuParams{Start: start, Roll: 0, Hitpoints: 5})
	if len(menu) != 1 || menu[0].Node != start || menu[0].Damage() != 0 {
		t.Errorf("menu = %+v, want to stay put for free", menu)
	}
}
