package engine

// ShiftCost checks a gear change. Going up one gear or down one gear is
// free; dropping k > 1 gears costs k-1 hitpoints and must leave the car
// with at least one. Gear 0 is only kept, never selected, and the pit lane
// caps the gear at PitMaxGear.
func ShiftCost(current, requested, hitpoints int, inPit bool) (int, bool) {
	if requested < MinGear || requested > MaxGear {
		return 0, false
	}
	if requested == 0 {
		return 0, current == 0
	}
	if inPit && requested > PitMaxGear {
		return 0, false
	}
	if requested-current > 1 {
		return 0, false
	}
	down := current - requested
	if down <= 1 {
		return 0, true
	}
	cost := down - 1
	if hitpoints-cost < 1 {
		return 0, false
	}
	return cost, true
}

// PitEntryAllowed reports whether p may turn into the pit lane this turn
func PitEntryAllowed(p *PlayerState) bool {
	return p.Gear <= PitMaxGear && !p.FinalLap()
}
