package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/podium-rally/game/engine"
)

var (
	ErrNotOnTurn         = errors.New("snapshot has no player on turn")
	ErrNoPendingDecision = errors.New("no decision pending")
	ErrWrongDecision     = errors.New("pending decision is of another kind")
	ErrInvalidAnswer     = errors.New("answer out of range")
	ErrNotConnected      = errors.New("remote agent not connected")
)

// DecisionKind tells which question a pending decision asks
type DecisionKind string

const (
	GearDecision DecisionKind = "gear"
	MoveDecision DecisionKind = "move"
)

// Decision is a question waiting for a human answer
type Decision struct {
	Kind     DecisionKind        `json:"kind"`
	Seat     int                 `json:"seat"`
	Since    time.Time           `json:"since"`
	Snapshot engine.RaceSnapshot `json:"snapshot"`
	Move     *engine.MoveRequest `json:"move,omitempty"`

	answer chan int
}

// Manual is driven from outside the race goroutine: each call publishes a
// pending decision and blocks until Submit answers it or the call's
// context ends.
type Manual struct {
	name string

	mu      sync.Mutex
	pending *Decision
	onAsk   func(Decision)
}

// NewManual returns a manual agent. onAsk, if set, is called with every new
// decision before the agent starts waiting.
func NewManual(name string, onAsk func(Decision)) *Manual {
	return &Manual{name: name, onAsk: onAsk}
}

// OnAsk replaces the hook called with every new decision
func (m *Manual) OnAsk(fn func(Decision)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAsk = fn
}

func (m *Manual) OnRaceStart(ctx context.Context, info engine.RaceInfo) (string, error) {
	return m.name, nil
}

func (m *Manual) SelectGear(ctx context.Context, snap engine.RaceSnapshot) (int, error) {
	return m.ask(ctx, &Decision{Kind: GearDecision, Seat: snap.Current, Snapshot: snap})
}

func (m *Manual) SelectMove(ctx context.Context, req engine.MoveRequest) (int, error) {
	return m.ask(ctx, &Decision{Kind: MoveDecision, Seat: req.Seat, Snapshot: req.Snapshot, Move: &req})
}

func (m *Manual) ask(ctx context.Context, d *Decision) (int, error) {
	d.Since = time.Now()
	d.answer = make(chan int, 1)

	m.mu.Lock()
	m.pending = d
	onAsk := m.onAsk
	m.mu.Unlock()

	if onAsk != nil {
		onAsk(*d)
	}

	select {
	case v := <-d.answer:
		return v, nil
	case <-ctx.Done():
		m.mu.Lock()
		if m.pending == d {
			m.pending = nil
		}
		m.mu.Unlock()
		return 0, ctx.Err()
	}
}

// Pending returns the decision waiting for an answer, if any
func (m *Manual) Pending() (Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Decision{}, false
	}
	return *m.pending, true
}

// Submit answers the pending decision. kind must match the question.
func (m *Manual) Submit(kind DecisionKind, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return ErrNoPendingDecision
	}
	if m.pending.Kind != kind {
		return fmt.Errorf("%w: waiting for %s, got %s", ErrWrongDecision, m.pending.Kind, kind)
	}
	if kind == MoveDecision && (value < 0 || value >= len(m.pending.Move.Moves)) {
		return fmt.Errorf("%w: move index %d not in [0,%d)", ErrInvalidAnswer, value, len(m.pending.Move.Moves))
	}
	m.pending.answer <- value
	m.pending = nil
	return nil
}
