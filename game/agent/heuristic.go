package agent

import (
	"context"
	"sync"

	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/track"
)

// Heuristic drives a car without outside input. It reads the track handed
// to OnRaceStart; without one it still answers, only less cleverly.
type Heuristic struct {
	name string

	mu    sync.RWMutex
	track *track.Track
}

// NewHeuristic returns a heuristic driver. The optional name is used as
// the car's display name.
func NewHeuristic(name ...string) *Heuristic {
	h := &Heuristic{}
	if len(name) > 0 {
		h.name = name[0]
	}
	return h
}

func (h *Heuristic) OnRaceStart(ctx context.Context, info engine.RaceInfo) (string, error) {
	h.mu.Lock()
	h.track = info.Track
	h.mu.Unlock()
	return h.name, nil
}

func (h *Heuristic) SelectGear(ctx context.Context, snap engine.RaceSnapshot) (int, error) {
	me, ok := snap.Player(snap.Current)
	if !ok {
		return 0, ErrNotOnTurn
	}
	return ChooseGear(h.currentTrack(), me), nil
}

func (h *Heuristic) SelectMove(ctx context.Context, req engine.MoveRequest) (int, error) {
	return ChooseMove(h.currentTrack(), req.Moves), nil
}

func (h *Heuristic) currentTrack() *track.Track {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.track
}

// ChooseGear picks the highest gear whose largest roll still stops short of
// trouble: before the next curve on a straight, inside the curve while
// stops are still owed. The answer is always a legal shift for me.
func ChooseGear(t *track.Track, me engine.PlayerState) int {
	if me.Gear == 0 {
		return 1
	}
	target := 3
	inPit := false
	if t != nil {
		if n, ok := t.Node(me.Node); ok {
			inPit = n.IsPit()
			target = targetGear(n, me)
		}
	}
	if inPit && target > engine.PitMaxGear {
		target = engine.PitMaxGear
	}
	return legalShift(me, target, inPit)
}

func targetGear(n *track.Node, me engine.PlayerState) int {
	switch {
	case n.IsPit():
		return engine.PitMaxGear
	case n.IsCurve() && n.StopCount-me.CurveStops > 0:
		return fastestWithin(n.NextArea - 1)
	case n.IsCurve():
		return 3
	default:
		return fastestWithin(n.NextArea + 2)
	}
}

// fastestWithin returns the highest gear whose die never exceeds steps,
// and at least first gear.
func fastestWithin(steps int) int {
	best := 1
	for g := 1; g <= engine.MaxGear; g++ {
		if engine.MaxRoll(g) <= steps {
			best = g
		}
	}
	return best
}

// legalShift moves toward target as far as the gear rules allow without
// spending more than a quarter of the remaining hitpoints.
func legalShift(me engine.PlayerState, target int, inPit bool) int {
	cur := me.Gear
	switch {
	case target > cur+1:
		target = cur + 1
	case target < cur-1:
		if cost := cur - target - 1; cost*4 > me.Hitpoints {
			target = cur - 1
		}
	}
	if target < 1 {
		target = 1
	}
	if _, ok := engine.ShiftCost(cur, target, me.Hitpoints, inPit); ok {
		return target
	}
	if _, ok := engine.ShiftCost(cur, cur-1, me.Hitpoints, inPit); ok && cur > 1 {
		return cur - 1
	}
	return cur
}

// ChooseMove picks a finishing move if there is one, then the cheapest
// move, then the one that gets furthest. Ties keep menu order.
func ChooseMove(t *track.Track, moves []engine.ValidMove) int {
	best := 0
	for i := 1; i < len(moves); i++ {
		if better(t, moves[i], moves[best]) {
			best = i
		}
	}
	return best
}

func better(t *track.Track, a, b engine.ValidMove) bool {
	if a.Finishes != b.Finishes {
		return a.Finishes
	}
	if a.Damage() != b.Damage() {
		return a.Damage() < b.Damage()
	}
	return progress(t, a) > progress(t, b)
}

func progress(t *track.Track, m engine.ValidMove) float64 {
	if t == nil {
		return float64(len(m.Path))
	}
	return m.Distance + float64(t.CountCrossings(m.Path))*t.MaxDistance()
}
