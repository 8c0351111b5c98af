package engine

import "github.com/wricardo/podium-rally/game/track"

// MenuParams is the board state a move menu is built from
type MenuParams struct {
	Start           int
	Roll            int
	Hitpoints       int
	Occupied        map[int]bool
	StopsDone       int
	FinalLap        bool
	PitEntryAllowed bool
}

// BuildMenu lists every legal move for a roll. Braking b trades b
// hitpoints for b fewer steps; a move is legal only while its total damage
// leaves the car with at least one hitpoint. Entries are ordered by braking
// and then node id. An empty menu means the car cannot move.
func BuildMenu(t *track.Track, p MenuParams) []ValidMove {
	var menu []ValidMove

	maxBrake := min(p.Roll, p.Hitpoints-1)
	for b := 0; b <= maxBrake; b++ {
		found := Search(t, SearchParams{
			Start:           p.Start,
			Budget:          p.Roll - b,
			Occupied:        p.Occupied,
			StopsDone:       p.StopsDone,
			FinalLap:        p.FinalLap,
			PitEntryAllowed: p.PitEntryAllowed,
		})

		for _, id := range sortedIDs(found) {
			dp := found[id]
			if dp.Damage+b >= p.Hitpoints {
				continue
			}
			n := t.MustNode(id)
			menu = append(menu, ValidMove{
				Node:      id,
				Type:      n.Type,
				Distance:  n.Distance,
				Overshoot: dp.Damage,
				Braking:   b,
				Finishes:  dp.Finish,
				Path:      dp.Path,
			})
		}
	}

	return menu
}
