package track

import (
	"slices"
	"sort"
)

// Summary is a compact, copyable description of a track handed to agents
// before a race starts.
type Summary struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Laps        int     `json:"laps"`
	Nodes       int     `json:"nodes"`
	Lanes       int     `json:"lanes"`
	Curves      int     `json:"curves"`
	LapLength   float64 `json:"lap_length"`
	HasPit      bool    `json:"has_pit"`
	GridSize    int     `json:"grid_size"`
}

// Node returns a copy of the node with the given id
func (t *Track) Node(id int) (*Node, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// MustNode returns the track's own node with the given id and panics on
// unknown ids. Callers only pass ids that came out of this track and must
// not modify the result: a built track is shared between races.
func (t *Track) MustNode(id int) *Node {
	n, ok := t.nodes[id]
	if !ok {
		panic("track: unknown node id")
	}
	return n
}

// NodeIDs returns every node id in ascending order
func (t *Track) NodeIDs() []int {
	return append([]int(nil), t.order...)
}

// Grid returns the ordered starting grid
func (t *Track) Grid() []int {
	return append([]int(nil), t.grid...)
}

// FinishNodes returns the finish node ids
func (t *Track) FinishNodes() []int {
	return append([]int(nil), t.finish...)
}

// Areas returns copies of the curve areas in id order
func (t *Track) Areas() []*CurveArea {
	out := make([]*CurveArea, len(t.areas))
	for i, a := range t.areas {
		out[i] = a.clone()
	}
	return out
}

// Area returns a copy of the curve area with the given id
func (t *Track) Area(id int) (*CurveArea, bool) {
	if id < 0 || id >= len(t.areas) {
		return nil, false
	}
	return t.areas[id].clone(), true
}

// Lanes returns copies of the traced lanes ordered by lane value
func (t *Track) Lanes() []*Lane {
	out := make([]*Lane, len(t.lanes))
	for i, l := range t.lanes {
		c := *l
		c.Nodes = slices.Clone(l.Nodes)
		out[i] = &c
	}
	return out
}

// LaneCount is 3 or 4
func (t *Track) LaneCount() int {
	return len(t.lanes)
}

// PitLane returns a copy of the pit lane, or nil when the track has none
func (t *Track) PitLane() *PitLane {
	if t.pit == nil {
		return nil
	}
	c := *t.pit
	c.Nodes = slices.Clone(t.pit.Nodes)
	return &c
}

// Neighbours returns the nodes a car on id may collide with
func (t *Track) Neighbours(id int) []int {
	return slices.Clone(t.adjacency[id])
}

// Adjacent reports whether cars on a and b may collide
func (t *Track) Adjacent(a, b int) bool {
	nbs := t.adjacency[a]
	i := sort.SearchInts(nbs, b)
	return i < len(nbs) && nbs[i] == b
}

// CrossesFinish reports whether moving along from->to crosses the finish
// line, either over the lap loop or out of a pit lane that straddles it.
func (t *Track) CrossesFinish(from, to int) bool {
	return t.crossings[edge{from, to}]
}

// CountCrossings counts finish-line crossings along a path
func (t *Track) CountCrossings(path []int) int {
	count := 0
	for i := 1; i < len(path); i++ {
		if t.CrossesFinish(path[i-1], path[i]) {
			count++
		}
	}
	return count
}

// MaxDistance is the largest progress value on the main loop
func (t *Track) MaxDistance() float64 {
	return t.maxDist
}

// Summary describes the track for agents and listings
func (t *Track) Summary() Summary {
	return Summary{
		Name:        t.Name,
		Description: t.Description,
		Laps:        t.Laps,
		Nodes:       len(t.nodes),
		Lanes:       len(t.lanes),
		Curves:      len(t.areas),
		LapLength:   t.maxDist,
		HasPit:      t.pit != nil,
		GridSize:    len(t.grid),
	}
}
