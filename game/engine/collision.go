package engine

import (
	"math/rand/v2"

	"github.com/wricardo/podium-rally/game/track"
)

// Hit is one point of damage dealt by the collision or engine rules
type Hit struct {
	Seat  int `json:"seat"`
	Cause int `json:"cause"` // seat of the other car, or -1 for engine damage
}

// ResolveCollisions rolls proximity damage after mover lands. Every other
// active car on an adjacent node is checked in seat order; the mover and
// that car each take a point with the given chance, independently.
func ResolveCollisions(t *track.Track, rng *rand.Rand, chance float64, mover *PlayerState, players []*PlayerState) []Hit {
	var hits []Hit
	for _, other := range players {
		if other.Seat == mover.Seat || !other.Active() {
			continue
		}
		if !t.Adjacent(mover.Node, other.Node) {
			continue
		}
		if rng.Float64() < chance {
			hits = append(hits, Hit{Seat: mover.Seat, Cause: other.Seat})
		}
		if rng.Float64() < chance {
			hits = append(hits, Hit{Seat: other.Seat, Cause: mover.Seat})
		}
	}
	return hits
}

// ResolveEngineDamage rolls a point of damage for every active car in gear
// 5 or 6, in seat order.
func ResolveEngineDamage(rng *rand.Rand, chance float64, players []*PlayerState) []Hit {
	var hits []Hit
	for _, p := range players {
		if !p.Active() || p.Gear < 5 {
			continue
		}
		if rng.Float64() < chance {
			hits = append(hits, Hit{Seat: p.Seat, Cause: -1})
		}
	}
	return hits
}
