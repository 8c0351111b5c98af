// Package engine implements the rules of Podium Rally.
//
// The engine package covers everything that happens between the starting
// grid and the final standings:
//   - Dice per gear and gear-shift costs
//   - MoveSearch: every node reachable with a roll and the damage it costs
//   - Move menus: the braking trade-off on top of the search
//   - Collision and engine damage
//   - The turn-order comparator
//   - Governed agent calls with per-player time budgets
//   - Race, the turn scheduler tying it all together
//
// Core Types:
//
// Race owns the PlayerState of every car and is the only code that changes
// it. Agents receive RaceSnapshot and MoveRequest copies and answer with a
// gear or a menu index. Every state change is reported to the configured
// Notifier as an Event, in the order it happens.
//
// Usage:
//
//	tr, err := track.LoadFile("tracks/oval.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := engine.DefaultConfig()
//	cfg.Seed = 42
//	race, err := engine.NewRace(tr, []engine.Entrant{
//		{Name: "Ada", Agent: agent.NewHeuristic()},
//		{Name: "Bo", Agent: agent.NewHeuristic()},
//	}, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	standings, err := race.Run(ctx)
//
// Determinism:
//
// All randomness comes from a PCG generator seeded with Config.Seed, and
// every fallback for a failed agent call is fixed (keep the gear, take the
// first move), so a seed and a sequence of decisions replay the same race.
package engine
