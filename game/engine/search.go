package engine

import (
	"sort"

	"github.com/wricardo/podium-rally/game/track"
)

// SearchParams describes one move search
type SearchParams struct {
	Start           int
	Budget          int
	Occupied        map[int]bool
	StopsDone       int // stops already made in the curve containing Start
	FinalLap        bool
	PitEntryAllowed bool
}

type searcher struct {
	t *track.Track
	p SearchParams
}

type frontier struct {
	node int
	path []int
}

// Search returns every node reachable in exactly p.Budget steps with the
// cheapest damage and path for each. On the final lap a branch that crosses
// the finish line ends there with no damage. The result may be empty.
func Search(t *track.Track, p SearchParams) map[int]DamageAndPath {
	s := &searcher{t: t, p: p}
	out := make(map[int]DamageAndPath)

	stops := 0
	if t.MustNode(p.Start).IsCurve() {
		stops = p.StopsDone
	}
	s.walk(p.Start, []int{p.Start}, 0, stops, true, out)
	return out
}

// walk expands from node level by level. traveled is the number of steps
// already spent on the path prefix.
func (s *searcher) walk(node int, prefix []int, traveled, stops int, curveEntry bool, out map[int]DamageAndPath) {
	settled := map[int]bool{node: true}
	level := []frontier{{node: node, path: prefix}}

	for step := traveled; step < s.p.Budget && len(level) > 0; step++ {
		var next []frontier
		inCurve := make(map[int]bool)

		for _, f := range level {
			cur := s.t.MustNode(f.node)
			for _, c := range cur.Children {
				if s.p.Occupied[c] {
					continue
				}
				child := s.t.MustNode(c)
				if child.IsPit() && !cur.IsPit() && !s.p.PitEntryAllowed {
					continue
				}
				path := extend(f.path, c)

				if s.p.FinalLap && s.t.CrossesFinish(cur.ID, c) {
					merge(out, c, DamageAndPath{Path: path, Finish: true})
					continue
				}

				switch {
				case cur.IsCurve() && child.IsCurve():
					if !inCurve[c] {
						inCurve[c] = true
						next = append(next, frontier{node: c, path: path})
					}

				case cur.IsCurve():
					owed := cur.StopCount - stops
					switch {
					case owed <= 0:
						s.exit(c, path, step+1, 0, true, out)
					case owed == 1:
						s.exit(c, path, step+1, s.p.Budget-step, false, out)
					}

				case child.IsCurve():
					if curveEntry && !inCurve[c] {
						inCurve[c] = true
						next = append(next, frontier{node: c, path: path})
					}

				default:
					if !settled[c] {
						settled[c] = true
						next = append(next, frontier{node: c, path: path})
					}
				}
			}
		}
		level = next
	}

	if len(level) == 0 {
		return
	}
	for _, f := range level {
		merge(out, f.node, DamageAndPath{Path: f.path})
	}
}

// exit continues the search on the straight after a curve, adding damage
// to every destination reached from there.
func (s *searcher) exit(node int, path []int, traveled, damage int, curveEntry bool, out map[int]DamageAndPath) {
	sub := make(map[int]DamageAndPath)
	s.walk(node, path, traveled, 0, curveEntry, sub)
	for _, id := range sortedIDs(sub) {
		dp := sub[id]
		if !dp.Finish {
			dp.Damage += damage
		}
		merge(out, id, dp)
	}
}

// merge keeps the cheaper of two ways to reach id. Ties keep the first.
func merge(out map[int]DamageAndPath, id int, dp DamageAndPath) {
	if old, ok := out[id]; ok && old.Damage <= dp.Damage {
		return
	}
	out[id] = dp
}

func extend(path []int, id int) []int {
	out := make([]int, len(path)+1)
	copy(out, path)
	out[len(path)] = id
	return out
}

func sortedIDs(m map[int]DamageAndPath) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
