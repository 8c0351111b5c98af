package track

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"
)

// buildLanes classifies the lane count from the finish fan-out and traces
// each lane from its finish-line node until it returns to the line.
func (t *Track) buildLanes() error {
	headSet := make(map[int]bool)
	for _, f := range t.finish {
		for _, c := range t.nodes[f].Children {
			headSet[c] = true
		}
	}
	heads := sortedKeys(headSet)
	sort.SliceStable(heads, func(i, j int) bool {
		return t.nodes[heads[i]].Lane < t.nodes[heads[j]].Lane
	})

	var middle map[int]bool
	switch len(heads) {
	case 3:
		middle = map[int]bool{1: true}
	case 4:
		middle = map[int]bool{1: true, 2: true}
		shared := intersect(t.nodes[t.finish[0]].Children, t.nodes[t.finish[1]].Children)
		for _, s := range shared {
			if s != heads[1] && s != heads[2] {
				return fmt.Errorf("shared finish-line node %d is not a middle lane", s)
			}
		}
	default:
		return fmt.Errorf("finish line spans %d lanes, expected 3 or 4", len(heads))
	}

	var errs error
	for i, h := range heads {
		lane := &Lane{Index: i, Nominal: t.nodes[h].Lane, Middle: middle[i]}
		nodes, err := t.traceLane(h, lane.Nominal)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("lane %d: %w", i, err))
			continue
		}
		lane.Nodes = nodes
		t.lanes = append(t.lanes, lane)
	}
	if errs != nil {
		return errs
	}

	return t.checkLaneBoundaries()
}

// traceLane follows the forward chain nearest to the lane's nominal value
func (t *Track) traceLane(head int, nominal float64) ([]int, error) {
	nodes := []int{head}
	cur := t.nodes[head]
	for {
		if len(nodes) > len(t.nodes) {
			return nil, fmt.Errorf("trace from %d never returns to the finish line", head)
		}
		var best *Node
		for _, c := range cur.Children {
			cn := t.nodes[c]
			if cn.IsPit() {
				continue
			}
			if best == nil || nearer(cn, best, nominal) {
				best = cn
			}
		}
		if best == nil {
			return nil, fmt.Errorf("trace dead-ends at node %d", cur.ID)
		}
		if best.FinishLine {
			return nodes, nil
		}
		nodes = append(nodes, best.ID)
		cur = best
	}
}

func nearer(a, b *Node, nominal float64) bool {
	da, db := math.Abs(a.Lane-nominal), math.Abs(b.Lane-nominal)
	if da != db {
		return da < db
	}
	if a.Lane != b.Lane {
		return a.Lane < b.Lane
	}
	return a.ID < b.ID
}

type boundary struct {
	area int
	dist float64
}

// boundaries lists the curve areas a lane enters, with the distance of the
// straight node it enters from.
func (t *Track) boundaries(l *Lane) []boundary {
	var out []boundary
	for i, id := range l.Nodes {
		n := t.nodes[id]
		if !n.IsCurve() || i == 0 {
			continue
		}
		prev := t.nodes[l.Nodes[i-1]]
		if prev.Area != n.Area {
			out = append(out, boundary{area: n.Area, dist: prev.Distance})
		}
	}
	return out
}

// checkLaneBoundaries requires sibling lanes to meet the same curves at
// congruent distances.
func (t *Track) checkLaneBoundaries() error {
	var ref *Lane
	for _, l := range t.lanes {
		if l.Middle {
			ref = l
			break
		}
	}
	want := t.boundaries(ref)

	var errs error
	for _, l := range t.lanes {
		if l == ref {
			continue
		}
		got := t.boundaries(l)
		if len(got) != len(want) {
			errs = multierr.Append(errs, fmt.Errorf("lane %d meets %d curves, middle lane meets %d", l.Index, len(got), len(want)))
			continue
		}
		for i := range got {
			if got[i].area != want[i].area {
				errs = multierr.Append(errs, fmt.Errorf("lane %d enters curve area %d where middle lane enters %d", l.Index, got[i].area, want[i].area))
			} else if math.Abs(got[i].dist-want[i].dist) > MaxBoundarySkew {
				errs = multierr.Append(errs, fmt.Errorf("lane %d enters curve area %d at %.2f, middle lane at %.2f",
					l.Index, got[i].area, got[i].dist, want[i].dist))
			}
		}
	}
	return errs
}

// lanePairs returns the lane index pairs checked for cross-lane contact
func (t *Track) lanePairs() [][2]int {
	if len(t.lanes) == 4 {
		return [][2]int{{0, 1}, {3, 2}, {1, 2}}
	}
	return [][2]int{{0, 1}, {2, 1}}
}

// buildAdjacency derives the symmetric may-collide relation
func (t *Track) buildAdjacency() {
	adj := make(map[int]map[int]bool)
	link := func(a, b int) {
		if a == b {
			return
		}
		if adj[a] == nil {
			adj[a] = make(map[int]bool)
		}
		if adj[b] == nil {
			adj[b] = make(map[int]bool)
		}
		adj[a][b] = true
		adj[b][a] = true
	}

	for _, l := range t.lanes {
		for i := 1; i < len(l.Nodes); i++ {
			link(l.Nodes[i-1], l.Nodes[i])
		}
	}

	for _, pair := range t.lanePairs() {
		a, b := t.lanes[pair[0]], t.lanes[pair[1]]
		t.overlap(a.Nodes, b.Nodes, link)
	}

	// Pit nodes only touch the main loop, never each other
	if t.pit != nil {
		link(t.pit.Entry, t.pit.Nodes[0])
		link(t.pit.Nodes[len(t.pit.Nodes)-1], t.pit.Exit)
	}

	t.adjacency = make(map[int][]int, len(adj))
	for id, set := range adj {
		t.adjacency[id] = sortedKeys(set)
	}
}

// overlap walks two lanes in distance order and links nodes whose
// [distance, next distance) ranges intersect.
func (t *Track) overlap(a, b []int, link func(int, int)) {
	rangeOf := func(lane []int, i int) (float64, float64) {
		start := t.nodes[lane[i]].Distance
		if i+1 < len(lane) {
			return start, t.nodes[lane[i+1]].Distance
		}
		return start, start + 1
	}

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		as, ae := rangeOf(a, i)
		bs, be := rangeOf(b, j)
		if math.Max(as, bs) < math.Min(ae, be) {
			link(a[i], b[j])
		}
		switch {
		case ae < be:
			i++
		case be < ae:
			j++
		default:
			i++
			j++
		}
	}
}
