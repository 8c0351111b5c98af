package track

import (
	"errors"
	"slices"
)

// NodeType is the kind of space a node represents on the board
type NodeType string

const (
	Straight NodeType = "straight"
	Curve1   NodeType = "curve1"
	Curve2   NodeType = "curve2"
	Curve3   NodeType = "curve3"
	Start    NodeType = "start"
	Finish   NodeType = "finish"
	Pit      NodeType = "pit"

	// PitOffset keeps pit-lane distances ordered behind their predecessor
	// without colliding with main-loop values.
	PitOffset = 0.01

	// MaxBoundarySkew is the largest distance a sibling lane's curve boundary
	// may differ from the middle lane's.
	MaxBoundarySkew = 1.0

	// NoArea marks nodes that are not part of a curve area.
	NoArea = -1
)

var (
	ErrInvalidTrack  = errors.New("invalid track")
	ErrTrackNotFound = errors.New("track not found")
)

// IsCurve reports whether the node type is one of the curve types
func (t NodeType) IsCurve() bool {
	return t == Curve1 || t == Curve2 || t == Curve3
}

// StopCount returns the number of turns a car must end inside a curve of
// this type before it may leave it freely.
func (t NodeType) StopCount() int {
	switch t {
	case Curve1:
		return 1
	case Curve2:
		return 2
	case Curve3:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is a known node type
func (t NodeType) Valid() bool {
	switch t {
	case Straight, Curve1, Curve2, Curve3, Start, Finish, Pit:
		return true
	}
	return false
}

// NodeData is a single node as supplied by a track file
type NodeData struct {
	ID       int      `json:"id" yaml:"id"`
	Type     NodeType `json:"type" yaml:"type"`
	Lane     float64  `json:"lane" yaml:"lane"`
	Children []int    `json:"children,omitempty" yaml:"children,omitempty"`
	Distance *float64 `json:"distance,omitempty" yaml:"distance,omitempty"` // relative offset inside a curve area
	Garage   bool     `json:"garage,omitempty" yaml:"garage,omitempty"`
}

// Data is the parsed, not yet validated content of a track file
type Data struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Laps        int        `json:"laps" yaml:"laps"`
	Grid        []int      `json:"grid" yaml:"grid"`
	Nodes       []NodeData `json:"nodes" yaml:"nodes"`
}

// Node is a built, immutable track node
type Node struct {
	ID         int      `json:"id"`
	Type       NodeType `json:"type"`
	Lane       float64  `json:"lane"`
	Distance   float64  `json:"distance"`
	StopCount  int      `json:"stop_count"`
	Garage     bool     `json:"garage,omitempty"`
	FinishLine bool     `json:"finish_line,omitempty"`
	Area       int      `json:"area"`
	NextArea   int      `json:"next_area"` // steps to the next straight/curve boundary
	Children   []int    `json:"children"`
	Parents    []int    `json:"parents"`
}

func (n *Node) clone() *Node {
	c := *n
	c.Children = slices.Clone(n.Children)
	c.Parents = slices.Clone(n.Parents)
	return &c
}

// IsCurve reports whether the node lies inside a curve
func (n *Node) IsCurve() bool {
	return n.Type.IsCurve()
}

// IsPit reports whether the node belongs to the pit lane
func (n *Node) IsPit() bool {
	return n.Type == Pit
}

// CurveArea is a connected group of curve nodes resolved as one corner
type CurveArea struct {
	ID        int      `json:"id"`
	Type      NodeType `json:"type"`
	StopCount int      `json:"stop_count"`
	Nodes     []int    `json:"nodes"`
	Entries   []int    `json:"entries"` // straight nodes leading into the area
	Exits     []int    `json:"exits"`   // straight nodes whose only predecessors are in the area
}

func (a *CurveArea) clone() *CurveArea {
	c := *a
	c.Nodes = slices.Clone(a.Nodes)
	c.Entries = slices.Clone(a.Entries)
	c.Exits = slices.Clone(a.Exits)
	return &c
}

// Lane is one traced chain of nodes across the finish line
type Lane struct {
	Index   int     `json:"index"`
	Nominal float64 `json:"nominal"`
	Middle  bool    `json:"middle"`
	Nodes   []int   `json:"nodes"`
}

// PitLane describes the pit-lane chain
type PitLane struct {
	Nodes     []int `json:"nodes"`
	Entry     int   `json:"entry"` // main node leading into the pit
	Exit      int   `json:"exit"`  // main node the pit leads back to
	Straddles bool  `json:"straddles"`
}

type edge struct {
	from, to int
}
