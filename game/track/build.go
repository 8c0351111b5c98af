package track

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/multierr"
)

// Track is an immutable, validated race track. It is built once and shared
// read-only by every turn of every race that uses it.
type Track struct {
	Name        string
	Description string
	Laps        int

	nodes     map[int]*Node
	order     []int
	finish    []int
	grid      []int
	areas     []*CurveArea
	lanes     []*Lane
	pit       *PitLane
	adjacency map[int][]int
	crossings map[edge]bool
	maxDist   float64
}

// BuildError reports every structural problem found while building a track
type BuildError struct {
	Track string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrInvalidTrack, e.Track, e.Err)
}

func (e *BuildError) Unwrap() []error {
	return []error{ErrInvalidTrack, e.Err}
}

// Problems lists the individual validation failures
func (e *BuildError) Problems() []error {
	return multierr.Errors(e.Err)
}

// Build validates the parsed track data and derives distances, curve areas,
// lanes and the collision map.
func Build(data *Data) (*Track, error) {
	if data == nil {
		return nil, &BuildError{Err: fmt.Errorf("track data is nil")}
	}

	t := &Track{
		Name:        data.Name,
		Description: data.Description,
		Laps:        data.Laps,
		nodes:       make(map[int]*Node, len(data.Nodes)),
		crossings:   make(map[edge]bool),
	}
	if t.Laps <= 0 {
		t.Laps = 1
	}

	// Each phase depends on the previous one being sound, so stop at the
	// first phase that reports problems.
	phases := []func(*Data) error{
		t.index,
		func(*Data) error { return t.checkFinish() },
		func(*Data) error { return t.checkReachable() },
		func(*Data) error { return t.checkPit() },
		t.buildAreas,
		t.assignDistances,
		func(*Data) error { return t.checkDistances() },
		t.checkGrid,
		func(*Data) error { return t.buildLanes() },
	}
	for _, phase := range phases {
		if err := phase(data); err != nil {
			return nil, &BuildError{Track: data.Name, Err: err}
		}
	}

	t.computeNextArea()
	t.buildAdjacency()

	return t, nil
}

// index creates nodes and parent links
func (t *Track) index(data *Data) error {
	var errs error

	for _, nd := range data.Nodes {
		if _, dup := t.nodes[nd.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("node %d: duplicate id", nd.ID))
			continue
		}
		if nd.ID < 0 {
			errs = multierr.Append(errs, fmt.Errorf("node %d: ids must not be negative", nd.ID))
			continue
		}
		if !nd.Type.Valid() {
			errs = multierr.Append(errs, fmt.Errorf("node %d: unknown type %q", nd.ID, nd.Type))
			continue
		}
		t.nodes[nd.ID] = &Node{
			ID:        nd.ID,
			Type:      nd.Type,
			Lane:      nd.Lane,
			StopCount: nd.Type.StopCount(),
			Garage:    nd.Garage,
			Area:      NoArea,
			Children:  append([]int(nil), nd.Children...),
		}
		t.order = append(t.order, nd.ID)
	}
	sort.Ints(t.order)

	for _, id := range t.order {
		n := t.nodes[id]
		for _, c := range n.Children {
			child, ok := t.nodes[c]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("node %d: unknown child %d", id, c))
				continue
			}
			if c == id {
				errs = multierr.Append(errs, fmt.Errorf("node %d: edge to itself", id))
				continue
			}
			child.Parents = append(child.Parents, id)
		}
	}

	if len(t.nodes) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("track has no nodes"))
	}
	return errs
}

// checkFinish validates the finish-line fan-out: one finish node with three
// children, or two finish nodes with three children each sharing two.
func (t *Track) checkFinish() error {
	for _, id := range t.order {
		if t.nodes[id].Type == Finish {
			t.finish = append(t.finish, id)
		}
	}

	switch len(t.finish) {
	case 1:
		f := t.nodes[t.finish[0]]
		if len(f.Children) != 3 {
			return fmt.Errorf("finish node %d must have 3 forward edges, has %d", f.ID, len(f.Children))
		}
	case 2:
		a, b := t.nodes[t.finish[0]], t.nodes[t.finish[1]]
		if len(a.Children) != 3 || len(b.Children) != 3 {
			return fmt.Errorf("finish nodes %d and %d must have 3 forward edges each", a.ID, b.ID)
		}
		if shared := len(intersect(a.Children, b.Children)); shared != 2 {
			return fmt.Errorf("finish nodes %d and %d must share 2 children, share %d", a.ID, b.ID, shared)
		}
	default:
		return fmt.Errorf("expected 1 or 2 finish nodes, found %d", len(t.finish))
	}

	var errs error
	for _, fid := range t.finish {
		if len(t.nodes[fid].Parents) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("finish node %d must not have predecessors", fid))
		}
		for _, c := range t.nodes[fid].Children {
			child := t.nodes[c]
			if child.IsCurve() || child.IsPit() || child.Type == Finish {
				errs = multierr.Append(errs, fmt.Errorf("finish-line node %d must be a straight", c))
			}
			child.FinishLine = true
		}
	}
	return errs
}

// checkReachable ensures every node can be reached from the finish line
func (t *Track) checkReachable() error {
	seen := make(map[int]bool, len(t.nodes))
	queue := append([]int(nil), t.finish...)
	for _, id := range queue {
		seen[id] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range t.nodes[id].Children {
			if !seen[c] {
				seen[c] = true
				queue = append(queue, c)
			}
		}
	}

	var errs error
	for _, id := range t.order {
		if !seen[id] {
			errs = multierr.Append(errs, fmt.Errorf("node %d is unreachable from the finish line", id))
		}
	}
	return errs
}

// checkPit validates that pit nodes form a single non-branching chain
// leaving and rejoining the main loop.
func (t *Track) checkPit() error {
	var errs error
	var pitNodes []int
	for _, id := range t.order {
		n := t.nodes[id]
		if !n.IsPit() {
			continue
		}
		pitNodes = append(pitNodes, id)
		if len(n.Children) != 1 {
			errs = multierr.Append(errs, fmt.Errorf("pit node %d must have exactly 1 child, has %d", id, len(n.Children)))
		}
		if len(n.Parents) != 1 {
			errs = multierr.Append(errs, fmt.Errorf("pit node %d must have exactly 1 parent, has %d", id, len(n.Parents)))
		}
	}
	if errs != nil || len(pitNodes) == 0 {
		return errs
	}

	var entries []int
	for _, id := range pitNodes {
		if !t.nodes[t.nodes[id].Parents[0]].IsPit() {
			entries = append(entries, id)
		}
	}
	if len(entries) != 1 {
		return fmt.Errorf("expected a single pit lane, found %d entries", len(entries))
	}

	pit := &PitLane{Entry: t.nodes[entries[0]].Parents[0]}
	for cur := entries[0]; ; {
		pit.Nodes = append(pit.Nodes, cur)
		next := t.nodes[cur].Children[0]
		if !t.nodes[next].IsPit() {
			pit.Exit = next
			break
		}
		if len(pit.Nodes) > len(pitNodes) {
			return fmt.Errorf("pit lane starting at %d loops", entries[0])
		}
		cur = next
	}
	if len(pit.Nodes) != len(pitNodes) {
		return fmt.Errorf("pit lane covers %d of %d pit nodes", len(pit.Nodes), len(pitNodes))
	}
	if t.nodes[pit.Entry].IsCurve() || t.nodes[pit.Exit].IsCurve() {
		return fmt.Errorf("pit lane must leave and rejoin on straights")
	}

	t.pit = pit
	return nil
}

// buildAreas groups curve nodes into connected areas
func (t *Track) buildAreas(data *Data) error {
	offsets := make(map[int]*float64, len(data.Nodes))
	for _, nd := range data.Nodes {
		offsets[nd.ID] = nd.Distance
	}

	var errs error
	for _, id := range t.order {
		n := t.nodes[id]
		if !n.IsCurve() || n.Area != NoArea {
			continue
		}
		area := &CurveArea{ID: len(t.areas), Type: n.Type, StopCount: n.StopCount}
		stack := []int{id}
		n.Area = area.ID
		for len(stack) > 0 {
			cur := t.nodes[stack[len(stack)-1]]
			stack = stack[:len(stack)-1]
			area.Nodes = append(area.Nodes, cur.ID)
			if cur.Type != area.Type {
				errs = multierr.Append(errs, fmt.Errorf("curve area %d mixes %s and %s at node %d", area.ID, area.Type, cur.Type, cur.ID))
			}
			for _, nb := range append(append([]int(nil), cur.Children...), cur.Parents...) {
				other := t.nodes[nb]
				if other.IsCurve() && other.Area == NoArea {
					other.Area = area.ID
					stack = append(stack, nb)
				}
			}
		}
		sort.Ints(area.Nodes)
		t.areas = append(t.areas, area)
	}

	for _, id := range t.order {
		n := t.nodes[id]
		if !n.IsCurve() {
			continue
		}
		off := offsets[id]
		if off == nil {
			errs = multierr.Append(errs, fmt.Errorf("curve node %d has no distance attribute", id))
		} else if *off <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("curve node %d has non-positive distance %.2f", id, *off))
		}
	}
	if errs != nil {
		return errs
	}

	for _, id := range t.order {
		if n := t.nodes[id]; n.IsCurve() {
			n.Distance = *offsets[id]
		}
	}
	return nil
}

// isLoop reports whether the edge closes the lap by re-entering the finish line
func (t *Track) isLoop(from, to int) bool {
	return t.nodes[to].FinishLine && t.nodes[from].Type != Finish
}

// mainEdge reports whether the edge belongs to the acyclic main graph
func (t *Track) mainEdge(from, to int) bool {
	return !t.nodes[from].IsPit() && !t.nodes[to].IsPit() && !t.isLoop(from, to)
}

func isHalfLane(l float64) bool {
	return l != math.Floor(l)
}

// step is the progress gained moving from p to n: one per node, half when
// the edge crosses a 3-wide/2-wide lane transition.
func step(p, n *Node) float64 {
	if isHalfLane(p.Lane) != isHalfLane(n.Lane) {
		return 0.5
	}
	return 1
}

// assignDistances propagates progress values from the finish line. Curve
// areas are resolved as a unit from the current maximum plus each node's
// relative offset.
func (t *Track) assignDistances(*Data) error {
	unit := func(id int) int {
		if a := t.nodes[id].Area; a != NoArea {
			return -1 - a
		}
		return id
	}

	indegree := make(map[int]int)
	for _, id := range t.order {
		n := t.nodes[id]
		if n.IsPit() {
			continue
		}
		if _, ok := indegree[unit(id)]; !ok {
			indegree[unit(id)] = 0
		}
		for _, c := range n.Children {
			if t.mainEdge(id, c) && unit(id) != unit(c) {
				indegree[unit(c)]++
			}
		}
	}

	queue := make([]int, 0, len(indegree))
	for _, f := range t.finish {
		queue = append(queue, unit(f))
	}

	assigned := make(map[int]bool, len(t.nodes))
	maxDist := 0.0
	release := func(id int) {
		for _, c := range t.nodes[id].Children {
			if !t.mainEdge(id, c) || unit(id) == unit(c) {
				continue
			}
			indegree[unit(c)]--
			if indegree[unit(c)] == 0 {
				queue = append(queue, unit(c))
			}
		}
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		if u >= 0 {
			n := t.nodes[u]
			if n.Type != Finish {
				best := math.Inf(-1)
				for _, p := range n.Parents {
					if t.mainEdge(p, u) {
						best = math.Max(best, t.nodes[p].Distance+step(t.nodes[p], n))
					}
				}
				n.Distance = best
			}
			assigned[u] = true
			maxDist = math.Max(maxDist, n.Distance)
			release(u)
			continue
		}

		area := t.areas[-1-u]
		base := maxDist
		for _, id := range area.Nodes {
			n := t.nodes[id]
			n.Distance += base
			assigned[id] = true
		}
		for _, id := range area.Nodes {
			maxDist = math.Max(maxDist, t.nodes[id].Distance)
		}
		for _, id := range area.Nodes {
			release(id)
		}
	}

	var errs error
	for _, id := range t.order {
		if !t.nodes[id].IsPit() && !assigned[id] {
			errs = multierr.Append(errs, fmt.Errorf("node %d is on a cycle outside the lap loop", id))
		}
	}
	if errs != nil {
		return errs
	}

	if t.pit != nil {
		prev := t.nodes[t.pit.Entry].Distance
		for _, id := range t.pit.Nodes {
			prev += PitOffset
			t.nodes[id].Distance = prev
		}
		t.pit.Straddles = t.nodes[t.pit.Exit].Distance < t.nodes[t.pit.Entry].Distance
		if t.pit.Straddles {
			last := t.pit.Nodes[len(t.pit.Nodes)-1]
			t.crossings[edge{last, t.pit.Exit}] = true
		}
	}

	for _, area := range t.areas {
		in := make(map[int]bool, len(area.Nodes))
		for _, id := range area.Nodes {
			in[id] = true
		}
		entries := make(map[int]bool)
		exits := make(map[int]bool)
		for _, id := range area.Nodes {
			for _, p := range t.nodes[id].Parents {
				if !in[p] && !t.nodes[p].IsPit() {
					entries[p] = true
				}
			}
			for _, c := range t.nodes[id].Children {
				if in[c] || t.nodes[c].IsCurve() {
					continue
				}
				onlyArea := true
				for _, p := range t.nodes[c].Parents {
					if !in[p] && !t.nodes[p].IsPit() {
						onlyArea = false
						break
					}
				}
				if onlyArea {
					exits[c] = true
				}
			}
		}
		area.Entries = sortedKeys(entries)
		area.Exits = sortedKeys(exits)
	}

	for _, id := range t.order {
		for _, c := range t.nodes[id].Children {
			if t.isLoop(id, c) {
				t.crossings[edge{id, c}] = true
			}
		}
	}

	t.maxDist = maxDist
	return nil
}

// checkDistances verifies progress strictly increases along main edges
func (t *Track) checkDistances() error {
	var errs error
	for _, id := range t.order {
		n := t.nodes[id]
		for _, c := range n.Children {
			if !t.mainEdge(id, c) {
				continue
			}
			if child := t.nodes[c]; child.Distance <= n.Distance {
				errs = multierr.Append(errs, fmt.Errorf("distance does not increase from node %d (%.2f) to %d (%.2f)",
					id, n.Distance, c, child.Distance))
			}
		}
	}
	return errs
}

// checkGrid validates the starting grid
func (t *Track) checkGrid(data *Data) error {
	if len(data.Grid) == 0 {
		return fmt.Errorf("starting grid is empty")
	}
	var errs error
	seen := make(map[int]bool, len(data.Grid))
	for i, id := range data.Grid {
		n, ok := t.nodes[id]
		switch {
		case !ok:
			errs = multierr.Append(errs, fmt.Errorf("grid slot %d: unknown node %d", i+1, id))
		case seen[id]:
			errs = multierr.Append(errs, fmt.Errorf("grid slot %d: node %d used twice", i+1, id))
		case n.IsCurve() || n.IsPit() || n.Type == Finish:
			errs = multierr.Append(errs, fmt.Errorf("grid slot %d: node %d is a %s", i+1, id, n.Type))
		}
		seen[id] = true
	}
	if errs == nil {
		t.grid = append([]int(nil), data.Grid...)
	}
	return errs
}

// computeNextArea stores, for every main node, the number of steps to the
// nearest node on the other side of a straight/curve boundary.
func (t *Track) computeNextArea() {
	unreachable := len(t.nodes) + 1
	dist := func(curve bool) map[int]int {
		d := make(map[int]int, len(t.nodes))
		var queue []int
		for _, id := range t.order {
			n := t.nodes[id]
			if !n.IsPit() && n.Type != Finish && n.IsCurve() == curve {
				d[id] = 0
				queue = append(queue, id)
			}
		}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, p := range t.nodes[id].Parents {
				pn := t.nodes[p]
				if pn.IsPit() || pn.Type == Finish {
					continue
				}
				if _, ok := d[p]; !ok {
					d[p] = d[id] + 1
					queue = append(queue, p)
				}
			}
		}
		return d
	}

	toCurve, toStraight := dist(true), dist(false)
	for _, id := range t.order {
		n := t.nodes[id]
		target := toCurve
		if n.IsCurve() {
			target = toStraight
		}
		if v, ok := target[id]; ok {
			n.NextArea = v
		} else {
			n.NextArea = unreachable
		}
	}
}

func intersect(a, b []int) []int {
	in := make(map[int]bool, len(a))
	for _, v := range a {
		in[v] = true
	}
	var out []int
	for _, v := range b {
		if in[v] {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
