package engine

import (
	"errors"
	"time"

	"github.com/wricardo/podium-rally/game/track"
)

const (
	// Gear limits
	MinGear    = 0
	MaxGear    = 6
	PitMaxGear = 4

	// Rule defaults
	DefaultMaxHitpoints       = 18
	DefaultBaseTimeout        = 3 * time.Second
	DefaultLeeway             = 10 * time.Second
	DefaultCollisionChance    = 0.2
	DefaultEngineDamageChance = 0.2
	DefaultMaxTurns           = 5000
	MaxPlayers                = 10
)

var (
	ErrRaceNotStarted     = errors.New("race not started")
	ErrRaceAlreadyStarted = errors.New("race already started")
	ErrRaceFinished       = errors.New("race finished")
	ErrInvariant          = errors.New("engine invariant violated")
	ErrTooManyPlayers     = errors.New("more entrants than grid slots")
	ErrNoPlayers          = errors.New("race needs at least one entrant")
)

// PlayerState is a car in the race. The scheduler is its only writer.
type PlayerState struct {
	Seat         int           `json:"seat"`
	Name         string        `json:"name"`
	Node         int           `json:"node"`
	Hitpoints    int           `json:"hitpoints"`
	MaxHitpoints int           `json:"max_hitpoints"`
	Gear         int           `json:"gear"`
	CurveStops   int           `json:"curve_stops"`
	LapsToGo     int           `json:"laps_to_go"`
	Leeway       time.Duration `json:"leeway"`
	TimeUsed     time.Duration `json:"time_used"`
	Exceptions   int           `json:"exceptions"`
	Turns        int           `json:"turns"`
	Stopped      bool          `json:"stopped"`
	Finished     bool          `json:"finished"`
	Disconnected bool          `json:"disconnected,omitempty"`
	RetiredSeq   int           `json:"retired_seq,omitempty"` // 1-based order of leaving the race
	Reason       string        `json:"reason,omitempty"`
}

// Active reports whether the player still takes turns
func (p *PlayerState) Active() bool {
	return !p.Stopped
}

// FinalLap reports whether the next finish crossing ends the race for p
func (p *PlayerState) FinalLap() bool {
	return p.LapsToGo <= 1
}

// ValidMove is one entry of a move menu
type ValidMove struct {
	Node      int            `json:"node"`
	Type      track.NodeType `json:"type"`
	Distance  float64        `json:"distance"`
	Overshoot int            `json:"overshoot"`
	Braking   int            `json:"braking"`
	Finishes  bool           `json:"finishes,omitempty"`
	Path      []int          `json:"path"`
}

// Damage is the total hitpoint cost of taking the move
func (m ValidMove) Damage() int {
	return m.Overshoot + m.Braking
}

// DamageAndPath is the cheapest known way to reach a search destination
type DamageAndPath struct {
	Damage int   `json:"damage"`
	Path   []int `json:"path"`
	Finish bool  `json:"finish,omitempty"` // branch ended on the finish line during the final lap
}

// Standing is one row of the race classification
type Standing struct {
	Position  int    `json:"position"`
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	Finished  bool   `json:"finished"`
	Active    bool   `json:"active"`
	Reason    string `json:"reason,omitempty"`
	LapsToGo  int    `json:"laps_to_go"`
	Hitpoints int    `json:"hitpoints"`
	Turns     int    `json:"turns"`
}

// RaceSnapshot is a deep copy of the race state handed to agents and
// readers outside the scheduler.
type RaceSnapshot struct {
	Track    track.Summary `json:"track"`
	Turn     int           `json:"turn"`
	Round    int           `json:"round"`
	Current  int           `json:"current"` // seat taking the turn, -1 between turns
	Started  bool          `json:"started"`
	Finished bool          `json:"finished"`
	Players  []PlayerState `json:"players"`
	Order    []int         `json:"order"` // seats still waiting this round
	Retired  []int         `json:"retired"`
}

// Clone returns a copy sharing nothing with s
func (s RaceSnapshot) Clone() RaceSnapshot {
	out := s
	out.Players = append([]PlayerState(nil), s.Players...)
	out.Order = append([]int(nil), s.Order...)
	out.Retired = append([]int(nil), s.Retired...)
	return out
}

// Player returns the state of the given seat
func (s RaceSnapshot) Player(seat int) (PlayerState, bool) {
	if seat < 0 || seat >= len(s.Players) {
		return PlayerState{}, false
	}
	return s.Players[seat], true
}

// MoveRequest is what an agent sees when choosing a move
type MoveRequest struct {
	Seat      int          `json:"seat"`
	Gear      int          `json:"gear"`
	Roll      int          `json:"roll"`
	Hitpoints int          `json:"hitpoints"`
	Moves     []ValidMove  `json:"moves"`
	Snapshot  RaceSnapshot `json:"snapshot"`
}

// RaceInfo is handed to each agent once before the race starts
type RaceInfo struct {
	Seat    int           `json:"seat"`
	Players int           `json:"players"`
	Laps    int           `json:"laps"`
	Summary track.Summary `json:"summary"`
	Track   *track.Track  `json:"-"` // read-only; nil for agents across a wire
}
