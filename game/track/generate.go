package track

import "fmt"

// Section is one stretch of a generated oval: a straight or a curve of the
// given type spanning Rows rows of three lanes.
type Section struct {
	Type NodeType `json:"type" yaml:"type"`
	Rows int      `json:"rows" yaml:"rows"`
}

// OvalSpec describes a three-lane circuit made of consecutive sections.
// Every node moves forward to the same lane or a neighbouring lane of the
// next row. The first GridRows rows hold the starting grid.
type OvalSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Laps        int       `json:"laps" yaml:"laps"`
	Sections    []Section `json:"sections" yaml:"sections"`
	GridRows    int       `json:"grid_rows" yaml:"grid_rows"`
	PitLength   int       `json:"pit_length" yaml:"pit_length"` // 0 disables the pit lane
	GarageAt    int       `json:"garage_at" yaml:"garage_at"`
}

const ovalLanes = 3

// OvalNode returns the id Oval assigns to the node at row and lane
func OvalNode(row, lane int) int {
	return 1 + row*ovalLanes + lane
}

// Oval generates track data for the spec. The finish node is id 0 and pit
// nodes follow the last row.
func Oval(spec OvalSpec) (*Data, error) {
	rows := 0
	for _, s := range spec.Sections {
		if s.Rows <= 0 {
			return nil, fmt.Errorf("section %s must have at least one row", s.Type)
		}
		rows += s.Rows
	}
	if len(spec.Sections) == 0 || spec.Sections[0].Type.IsCurve() || spec.Sections[len(spec.Sections)-1].Type.IsCurve() {
		return nil, fmt.Errorf("oval must start and end with a straight")
	}
	gridRows := spec.GridRows
	if gridRows <= 0 {
		gridRows = 1
	}
	if gridRows > spec.Sections[0].Rows {
		return nil, fmt.Errorf("grid rows (%d) exceed the first straight (%d)", gridRows, spec.Sections[0].Rows)
	}
	if spec.PitLength > 0 && (spec.Sections[0].Rows < 2 || spec.Sections[len(spec.Sections)-1].Rows < 2) {
		return nil, fmt.Errorf("pit lane needs two straight rows on each side of the line")
	}

	data := &Data{
		Name:        spec.Name,
		Description: spec.Description,
		Laps:        spec.Laps,
		Nodes: []NodeData{{
			ID:       0,
			Type:     Finish,
			Lane:     1,
			Children: []int{OvalNode(0, 0), OvalNode(0, 1), OvalNode(0, 2)},
		}},
	}

	row := 0
	for _, s := range spec.Sections {
		for k := 0; k < s.Rows; k++ {
			next := (row + 1) % rows
			for lane := 0; lane < ovalLanes; lane++ {
				nd := NodeData{ID: OvalNode(row, lane), Type: s.Type, Lane: float64(lane)}
				if s.Type == Straight && row < gridRows {
					nd.Type = Start
				}
				if s.Type.IsCurve() {
					offset := float64(k + 1)
					nd.Distance = &offset
				}
				for l := lane - 1; l <= lane+1; l++ {
					if l >= 0 && l < ovalLanes {
						nd.Children = append(nd.Children, OvalNode(next, l))
					}
				}
				data.Nodes = append(data.Nodes, nd)
			}
			row++
		}
	}

	for r := gridRows - 1; r >= 0; r-- {
		data.Grid = append(data.Grid, OvalNode(r, 1), OvalNode(r, 0), OvalNode(r, 2))
	}

	if spec.PitLength > 0 {
		first := 1 + rows*ovalLanes
		entry := OvalNode(rows-2, 2)
		for i := range data.Nodes {
			if data.Nodes[i].ID == entry {
				data.Nodes[i].Children = append(data.Nodes[i].Children, first)
			}
		}
		for k := 0; k < spec.PitLength; k++ {
			nd := NodeData{ID: first + k, Type: Pit, Lane: -1, Garage: k == spec.GarageAt}
			if k+1 < spec.PitLength {
				nd.Children = []int{first + k + 1}
			} else {
				nd.Children = []int{OvalNode(1, 2)}
			}
			data.Nodes = append(data.Nodes, nd)
		}
	}

	return data, nil
}
