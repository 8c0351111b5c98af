package engine

import "context"

// Agent makes the decisions for one car. Calls are governed by the race's
// time budget; errors and late answers fall back to keeping the current
// gear and taking the first move of the menu. Agents must not modify what
// they are handed.
type Agent interface {
	// OnRaceStart is called once before the first turn and returns the
	// display name for the car.
	OnRaceStart(ctx context.Context, info RaceInfo) (string, error)

	// SelectGear returns the gear for the coming roll
	SelectGear(ctx context.Context, snap RaceSnapshot) (int, error)

	// SelectMove returns an index into req.Moves. Only called with a
	// non-empty menu.
	SelectMove(ctx context.Context, req MoveRequest) (int, error)
}

// Liveness is implemented by agents behind a connection that can drop
type Liveness interface {
	Alive() bool
}

// Entrant is a car entered into a race
type Entrant struct {
	Name  string
	Agent Agent
}
