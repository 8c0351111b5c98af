package engine

import (
	"sort"

	"github.com/wricardo/podium-rally/game/track"
)

// Ahead reports whether a takes its turn before b. Active cars come first,
// ordered by laps to go, progress, gear, the inside line through a curve
// and finally seat. Stopped cars follow in the order they left the race.
func Ahead(t *track.Track, a, b *PlayerState) bool {
	if a.Stopped != b.Stopped {
		return !a.Stopped
	}
	if a.Stopped {
		return a.RetiredSeq < b.RetiredSeq
	}

	if a.LapsToGo != b.LapsToGo {
		return a.LapsToGo < b.LapsToGo
	}
	na, nb := t.MustNode(a.Node), t.MustNode(b.Node)
	if na.Distance != nb.Distance {
		return na.Distance > nb.Distance
	}
	if a.Gear != b.Gear {
		return a.Gear > b.Gear
	}
	if na.IsCurve() != nb.IsCurve() {
		return na.IsCurve()
	}
	if na.NextArea != nb.NextArea {
		return na.NextArea < nb.NextArea
	}
	return a.Seat < b.Seat
}

// SortPlayers orders players by Ahead
func SortPlayers(t *track.Track, players []*PlayerState) {
	sort.SliceStable(players, func(i, j int) bool {
		return Ahead(t, players[i], players[j])
	})
}
