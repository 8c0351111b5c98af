package engine

import "math/rand/v2"

// faces lists every face of the die thrown in each gear. Gear 0 does not
// roll.
var faces = [MaxGear + 1][]int{
	0: {0},
	1: {1, 1, 2, 2},
	2: {2, 3, 3, 4, 4, 4},
	3: {4, 5, 6, 6, 7, 7, 8, 8},
	4: repeatRange(7, 12, 2),
	5: repeatRange(11, 20, 2),
	6: repeatRange(21, 30, 3),
}

func repeatRange(lo, hi, times int) []int {
	var out []int
	for v := lo; v <= hi; v++ {
		for i := 0; i < times; i++ {
			out = append(out, v)
		}
	}
	return out
}

// Faces returns a copy of the die faces for gear
func Faces(gear int) []int {
	if gear < MinGear || gear > MaxGear {
		return nil
	}
	return append([]int(nil), faces[gear]...)
}

// MaxRoll is the highest face of the gear's die
func MaxRoll(gear int) int {
	f := faces[gear]
	return f[len(f)-1]
}

// Roll throws the die for gear
func Roll(rng *rand.Rand, gear int) int {
	f := faces[gear]
	return f[rng.IntN(len(f))]
}

// TriggersEngineDamage reports whether the roll is the top face of the gear
// 5 or 6 die, which no lower gear can produce.
func TriggersEngineDamage(gear, roll int) bool {
	return (gear == 5 || gear == 6) && roll == MaxRoll(gear)
}

// newRand returns the race's deterministic generator
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
